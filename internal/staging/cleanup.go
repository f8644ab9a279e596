package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"summify/internal/logging"
)

// CleanResult contains the outcome of a work directory sweep.
type CleanResult struct {
	Removed    []string
	FreedBytes int64
	Errors     []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Policy selects which per-record work directories a sweep removes.
type Policy struct {
	// MaxAge removes directories last modified before now-MaxAge. Zero disables it.
	MaxAge time.Duration
	// Live holds record ids that still exist. When non-nil, directories for
	// any other id are orphans and removed regardless of age.
	Live map[string]struct{}
	// Protect holds record ids with a queued or running job; they are never removed.
	Protect map[string]struct{}
	// DryRun reports what would be removed without touching disk.
	DryRun bool
}

// Clean sweeps workDir, which holds one directory per record id with the
// chunk debug files of the fix and summarize steps.
func Clean(ctx context.Context, workDir string, policy Policy, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	dirs, err := ListDirectories(workDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: workDir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-policy.MaxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: ctx.Err()})
			return result
		}
		if _, busy := policy.Protect[dir.Name]; busy {
			continue
		}
		reason := ""
		if policy.Live != nil {
			if _, live := policy.Live[dir.Name]; !live {
				reason = "orphaned"
			}
		}
		if reason == "" && policy.MaxAge > 0 && dir.ModTime.Before(cutoff) {
			reason = "stale"
		}
		if reason == "" {
			continue
		}

		if !policy.DryRun {
			if err := os.RemoveAll(dir.Path); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
				logger.Warn("failed to remove work directory",
					logging.String("path", dir.Path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "work_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check work_dir permissions"),
					logging.String("impact", "disk space not reclaimed"),
				)
				continue
			}
		}
		result.Removed = append(result.Removed, dir.Path)
		result.FreedBytes += dir.Size
		logger.Info("removed work directory",
			logging.String("path", dir.Path),
			logging.String("reason", reason),
			logging.Bool("dry_run", policy.DryRun),
			logging.Duration("age", time.Since(dir.ModTime).Round(time.Second)),
			logging.String(logging.FieldFileID, dir.Name),
			logging.String(logging.FieldEventType, "work_cleanup"),
		)
	}
	return result
}

// DirInfo contains metadata about a per-record work directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns the directories under workDir, oldest first. A
// missing workDir yields no entries.
func ListDirectories(workDir string) ([]DirInfo, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(workDir, entry.Name())
		size, modTime := walkDir(dirPath)
		if modTime.IsZero() {
			continue
		}
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: modTime,
			Size:    size,
		})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].ModTime.Before(dirs[j].ModTime) })
	return dirs, nil
}

// walkDir returns the total file size under path and the newest
// modification time of anything in it, so a directory whose children
// were rewritten recently is not considered stale.
func walkDir(path string) (int64, time.Time) {
	var size int64
	var newest time.Time
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, newest
}
