package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "summify.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, result.Lines)
	assert.Equal(t, int64(6), result.Offset)
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "none.log"), logs.TailOptions{Offset: -1, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, result.Lines)
	assert.Zero(t, result.Offset)
}

func TestTailFiltersByJob(t *testing.T) {
	path := writeLog(t, ""+
		"2026-01-02 10:00:00 INFO  scheduler job started job_id=abc\n"+
		"2026-01-02 10:00:01 INFO  scheduler job started job_id=abcdef\n"+
		`{"msg":"step finished","job_id":"abc"}`+"\n"+
		"2026-01-02 10:00:02 INFO  daemon unrelated\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{
		Offset: -1,
		Limit:  10,
		Match:  logs.FieldFilter("job_id", "abc"),
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)
	assert.Contains(t, result.Lines[0], "job_id=abc")
	assert.Contains(t, result.Lines[1], `"job_id":"abc"`)
}

func TestFieldFilterEmptyValueKeepsAll(t *testing.T) {
	assert.Nil(t, logs.FieldFilter("job_id", " "))
}

func TestTailResumesFromOffset(t *testing.T) {
	path := writeLog(t, "one\n")
	first, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 5})
	require.NoError(t, err)

	appendLog(t, path, "two\nthree\n")
	next, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: first.Offset})
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, next.Lines)
}

func TestTailRestartsAfterRotation(t *testing.T) {
	path := writeLog(t, "a long line from before rotation\n")
	first, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 5})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("fresh\n"), 0o644))
	next, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: first.Offset})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, next.Lines)
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)

	type outcome struct {
		res logs.TailResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: result.Offset, Follow: true, Wait: 5 * time.Second})
		done <- outcome{res, err}
	}()

	time.Sleep(200 * time.Millisecond)
	appendLog(t, path, "later\n")

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, []string{"later"}, got.res.Lines)
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}
