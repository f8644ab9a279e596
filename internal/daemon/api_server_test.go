package daemon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/api"
	"summify/internal/config"
	"summify/internal/services"
	"summify/internal/testsupport"
)

func newTestClient(t *testing.T, f *fixture, token string) *api.Client {
	t.Helper()
	srv := httptest.NewServer(f.daemon.api.handler)
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, token)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func requireCode(t *testing.T, err error, code services.Code) {
	t.Helper()
	require.Error(t, err)
	var coded *services.Error
	require.True(t, errors.As(err, &coded), "expected coded error, got %v", err)
	assert.Equal(t, code, coded.Code)
}

func TestAPIUploadAutoStartRunsJob(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f, "")
	ctx := context.Background()

	resp, err := client.Upload(ctx, writeTemp(t, "talk.txt", "hello"), api.UploadOptions{AutoStart: true, Steps: "34"})
	require.NoError(t, err)
	assert.Equal(t, "talk.txt", resp.File.Name)
	assert.Equal(t, "talk", resp.File.BaseName)
	assert.Equal(t, int64(5), resp.File.SizeBytes)
	require.NotEmpty(t, resp.JobID)

	waitIdle(t, f.daemon)

	jobs, err := client.History(ctx, resp.File.ID, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, resp.JobID, jobs[0].JobID)
	assert.Equal(t, "completed", jobs[0].Status)
	assert.Equal(t, "34", jobs[0].Steps)

	page, err := client.Events(ctx, 0, false)
	require.NoError(t, err)
	var types []string
	for _, evt := range page.Events {
		if evt.JobID == resp.JobID {
			types = append(types, evt.EventType)
		}
	}
	assert.Equal(t, []string{"job_queued", "job_progress", "job_complete"}, types)
	assert.NotZero(t, page.Next)
}

func TestAPIUploadWithoutAutoStartQueuesNothing(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f, "")

	resp, err := client.Upload(context.Background(), writeTemp(t, "talk.mp3", "audio"), api.UploadOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.JobID)

	files, err := client.Files(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, resp.File.ID, files[0].ID)
}

func TestAPIUploadRejectsUnsupportedType(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f, "")

	_, err := client.Upload(context.Background(), writeTemp(t, "tool.exe", "MZ"), api.UploadOptions{})
	requireCode(t, err, services.CodeUnsupportedInput)
}

func TestAPIUploadRejectsOversizedBody(t *testing.T) {
	f := newFixture(t)
	f.daemon.api.maxUploadBytes = 1024
	client := newTestClient(t, f, "")

	path := filepath.Join(t.TempDir(), "big.mp3")
	testsupport.WriteFile(t, path, 8*1024)

	_, err := client.Upload(context.Background(), path, api.UploadOptions{})
	requireCode(t, err, services.CodeUploadFailed)
}

func TestAPISubmitValidation(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f, "")
	ctx := context.Background()
	rec := testsupport.ImportFile(t, f.cfg, f.records, "a.txt", "x")

	_, err := client.Submit(ctx, api.JobRequest{FileID: rec.ID, Steps: "31"})
	requireCode(t, err, services.CodeInvalidSteps)

	_, err = client.Submit(ctx, api.JobRequest{FileID: "nope", Steps: "1"})
	requireCode(t, err, services.CodeInputNotFound)

	id, err := client.Submit(ctx, api.JobRequest{FileID: rec.ID, Steps: "3", ModelType: "whisper"})
	require.NoError(t, err)
	assert.Len(t, id, 32)
	waitIdle(t, f.daemon)
}

func TestAPIRenameSyncAndDelete(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f, "")
	ctx := context.Background()
	rec := testsupport.ImportFile(t, f.cfg, f.records, "a.txt", "x")

	entry, err := client.RenameFile(ctx, rec.ID, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", entry.Name)

	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.Paths.UploadDir, "dropped.wav"), []byte("w"), 0o644))
	synced, err := client.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	require.NoError(t, client.DeleteFile(ctx, rec.ID))
	files, err := client.Files(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "dropped.wav", files[0].Name)

	err = client.DeleteFile(ctx, rec.ID)
	requireCode(t, err, services.CodeInputNotFound)
}

func TestAPIStatus(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f, "")
	testsupport.ImportFile(t, f.cfg, f.records, "a.txt", "x")

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Files)
	assert.Equal(t, f.cfg.Paths.RecordsPath, status.RecordsPath)
	assert.NotNil(t, status.Queue.Queued)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "secret"
	})

	_, err := newTestClient(t, f, "").Status(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidArgs)
	assert.Contains(t, err.Error(), "unauthorized")

	_, err = newTestClient(t, f, "wrong").Files(context.Background())
	assert.Error(t, err)

	_, err = newTestClient(t, f, "secret").Status(context.Background())
	assert.NoError(t, err)
}

func TestAPIUnknownRouteIsNotFound(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.daemon.api.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/nothing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPITagsRequestID(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.daemon.api.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-1", resp.Header.Get("X-Request-ID"))
}

func TestClientReportsUnavailableDaemon(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := api.NewClient(url, "").Status(context.Background())
	assert.ErrorIs(t, err, api.ErrUnavailable)
}
