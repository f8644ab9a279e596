package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/logging"
)

func makeWorkDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name, "split")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, "chunk_001.txt")
	require.NoError(t, os.WriteFile(file, []byte("chunk text"), 0o644))
	stamp := time.Now().Add(-age)
	for _, path := range []string{file, dir, filepath.Join(root, name)} {
		require.NoError(t, os.Chtimes(path, stamp, stamp))
	}
	return filepath.Join(root, name)
}

func TestCleanInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := Clean(context.Background(), dir, Policy{MaxAge: time.Hour}, logging.NewNop())
		assert.Empty(t, result.Removed, "path %q", dir)
		assert.Empty(t, result.Errors, "path %q", dir)
	}
}

func TestCleanRemovesStaleDirectories(t *testing.T) {
	root := t.TempDir()
	old := makeWorkDir(t, root, "old", 2*time.Hour)
	recent := makeWorkDir(t, root, "recent", 0)

	result := Clean(context.Background(), root, Policy{MaxAge: time.Hour}, logging.NewNop())

	require.Equal(t, []string{old}, result.Removed)
	assert.Equal(t, int64(len("chunk text")), result.FreedBytes)
	assert.NoDirExists(t, old)
	assert.DirExists(t, recent)
}

func TestCleanRemovesOrphansAndHonorsProtect(t *testing.T) {
	root := t.TempDir()
	live := makeWorkDir(t, root, "live", 0)
	orphan := makeWorkDir(t, root, "gone", 0)
	busy := makeWorkDir(t, root, "busy", 3*time.Hour)

	result := Clean(context.Background(), root, Policy{
		MaxAge:  time.Hour,
		Live:    map[string]struct{}{"live": {}},
		Protect: map[string]struct{}{"busy": {}},
	}, nil)

	assert.Equal(t, []string{orphan}, result.Removed)
	assert.DirExists(t, live)
	assert.DirExists(t, busy)
}

func TestCleanDryRunKeepsDirectories(t *testing.T) {
	root := t.TempDir()
	old := makeWorkDir(t, root, "old", 2*time.Hour)

	result := Clean(context.Background(), root, Policy{MaxAge: time.Hour, DryRun: true}, nil)

	assert.Equal(t, []string{old}, result.Removed)
	assert.DirExists(t, old)
}

func TestCleanRecentChildKeepsDirectoryAlive(t *testing.T) {
	root := t.TempDir()
	dir := makeWorkDir(t, root, "rec", 2*time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "split", "chunk_002.txt"), []byte("new"), 0o644))

	result := Clean(context.Background(), root, Policy{MaxAge: time.Hour}, nil)
	assert.Empty(t, result.Removed)
}

func TestListDirectoriesOrdersOldestFirst(t *testing.T) {
	root := t.TempDir()
	makeWorkDir(t, root, "b", time.Minute)
	makeWorkDir(t, root, "a", time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	dirs, err := ListDirectories(root)
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	assert.Equal(t, "a", dirs[0].Name)
	assert.Equal(t, "b", dirs[1].Name)
	assert.Equal(t, int64(len("chunk text")), dirs[0].Size)
}
