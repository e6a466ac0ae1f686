package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"demoarchive/internal/logging"
)

// CleanStaleResult lists the workspaces a sweep removed and the ones it
// could not.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo describes one staging workspace.
type DirInfo struct {
	Name    string
	Demo    string
	Path    string
	ModTime time.Time
	Size    int64
}

// IsWorkspace reports whether the directory name carries a workspace suffix.
func (d DirInfo) IsWorkspace() bool { return d.Demo != d.Name }

// CleanStale removes every directory under stagingDir last modified more than
// maxAge ago. Interrupted writes leave these behind; the archive they
// targeted is untouched.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, stagingDir, logger, "stale", func(d DirInfo) bool {
		return d.ModTime.Before(cutoff)
	})
}

// CleanOrphaned removes workspaces whose demonstration is not in active.
// Directories that are not workspaces are left alone.
func CleanOrphaned(ctx context.Context, stagingDir string, active map[string]struct{}, logger *slog.Logger) CleanStaleResult {
	return sweep(ctx, stagingDir, logger, "orphaned", func(d DirInfo) bool {
		if !d.IsWorkspace() {
			return false
		}
		_, busy := active[d.Demo]
		return !busy
	})
}

func sweep(ctx context.Context, stagingDir string, logger *slog.Logger, reason string, remove func(DirInfo) bool) CleanStaleResult {
	var result CleanStaleResult
	dirs, err := ListDirectories(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if !remove(dir) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logger, "staging workspace not removed", "staging_cleanup_failed",
				logging.String("path", dir.Path),
				logging.String("reason", reason),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on paths.staging_dir"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed staging workspace",
			logging.String(logging.FieldEventType, "staging_cleanup"),
			logging.String(logging.FieldDemo, dir.Demo),
			logging.String("reason", reason),
			logging.String("path", dir.Path),
			logging.Duration("age", time.Since(dir.ModTime)),
			logging.Int64("bytes", dir.Size),
		)
	}
	return result
}

// ListDirectories returns every directory under stagingDir with its size and
// age. A missing or unset staging directory lists nothing.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(stagingDir, entry.Name())
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Demo:    DemoFromDir(entry.Name()),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    treeSize(path),
		})
	}
	return dirs, nil
}

// treeSize sums regular file sizes below root, skipping unreadable entries.
func treeSize(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
