package daemonctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/api"
	"summify/internal/deps"
)

func statusServer(t *testing.T, pid int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: pid})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deadClient(t *testing.T) *api.Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return api.NewClient(url, "")
}

func TestWaitForClientReturnsStatus(t *testing.T) {
	srv := statusServer(t, 4242)
	status, err := WaitForClient(context.Background(), api.NewClient(srv.URL, ""), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4242, status.PID)
}

func TestWaitForClientTimesOut(t *testing.T) {
	_, err := WaitForClient(context.Background(), deadClient(t), 300*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon failed to start")
}

func TestEnsureStartedReportsRunningDaemon(t *testing.T) {
	srv := statusServer(t, 99)
	result, err := EnsureStarted(context.Background(), api.NewClient(srv.URL, ""), "", LaunchOptions{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StartStateAlreadyRunning, result.State)
	assert.False(t, result.Launched)
	assert.Equal(t, 99, result.PID)
}

func TestEnsureStartedRequiresExecutable(t *testing.T) {
	_, err := EnsureStarted(context.Background(), deadClient(t), " ", LaunchOptions{}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable path is empty")
}

func TestStopWithoutDaemon(t *testing.T) {
	_, err := StopAndTerminate(context.Background(), deadClient(t), "", time.Second)
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestStopRefusesOwnProcess(t *testing.T) {
	srv := statusServer(t, os.Getpid())
	_, err := StopAndTerminate(context.Background(), api.NewClient(srv.URL, ""), "", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to signal current process")
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summify.pid")
	assert.Zero(t, readPID(path))

	require.NoError(t, os.WriteFile(path, []byte("1234\n"), 0o644))
	assert.Equal(t, 1234, readPID(path))

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	assert.Zero(t, readPID(path))
}

func TestBuildDependencySummary(t *testing.T) {
	summary := BuildDependencySummary(nil)
	assert.Equal(t, "info", summary.Severity)

	summary = BuildDependencySummary([]deps.Status{
		{Name: "FFmpeg", Available: true},
		{Name: "Transcriber (whisper)", Available: true},
	})
	assert.Equal(t, "ok", summary.Severity)
	assert.Equal(t, "2/2 available", summary.Detail)

	summary = BuildDependencySummary([]deps.Status{
		{Name: "FFmpeg", Available: true},
		{Name: "Transcriber (whisperx)", Optional: true},
	})
	assert.Equal(t, "warn", summary.Severity)

	summary = BuildDependencySummary([]deps.Status{
		{Name: "FFmpeg"},
		{Name: "Transcriber (paraformer)", Optional: true},
	})
	assert.Equal(t, "error", summary.Severity)
	assert.Equal(t, 1, summary.MissingRequired)
	assert.Equal(t, 1, summary.MissingOptional)
	assert.True(t, strings.HasPrefix(summary.Detail, "0/2 available"))
}
