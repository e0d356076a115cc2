package filesystem

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/config"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/faults"
)

// FileInfo represents information about a file to be transferred
type FileInfo struct {
	Name     string
	Size     int64
	Path     string
	IsDir    bool
	Modified time.Time
}

// ValidateFilePath checks if a file path can name a transferable file
func ValidateFilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return faults.NewFileSystemError("validate", path, errors.New("empty path"))
	}
	return nil
}

// GetFileInfo returns information about a file
func GetFileInfo(path string) (*FileInfo, error) {
	if err := ValidateFilePath(path); err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, faults.NewFileSystemError("stat", path, err)
	}

	return &FileInfo{
		Name:     stat.Name(),
		Size:     stat.Size(),
		Path:     path,
		IsDir:    stat.IsDir(),
		Modified: stat.ModTime(),
	}, nil
}

// EnsureDirectoryExists creates a directory if it doesn't exist
func EnsureDirectoryExists(dir string) error {
	if err := ValidateFilePath(dir); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, config.LogDirPerms); err != nil {
		return faults.NewFileSystemError("mkdir", dir, err)
	}

	return nil
}

// RemoveEmptyDirs removes empty directories under root, deepest first, so a
// directory holding nothing but empty subdirectories collapses in one sweep.
// The root itself is always kept. With dryRun set, candidates are logged and
// counted but left in place; parents that would only become empty after their
// children are removed are not counted in that case.
//
// Returns the number of directories removed and the number of failures; only
// a missing or non-directory root is reported as an error.
func RemoveEmptyDirs(root string, dryRun bool) (removed, failed int, err error) {
	stat, err := os.Stat(root)
	if err != nil {
		return 0, 0, faults.NewFileSystemError("sweep", root, err)
	}
	if !stat.IsDir() {
		return 0, 0, faults.NewFileSystemError("sweep", root, errors.New("not a directory"))
	}

	// Collect in walk order; reversed, children come before their parents.
	var dirs []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			failed++
			slog.Warn("Sweep cannot enter path", "path", path, "error", werr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if walkErr != nil {
		return removed, failed, faults.NewFileSystemError("sweep", root, walkErr)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]

		entries, rerr := os.ReadDir(dir)
		if rerr != nil {
			failed++
			slog.Warn("Sweep cannot read directory", "path", dir, "error", rerr)
			continue
		}
		if len(entries) > 0 {
			continue
		}

		if dryRun {
			slog.Info("Would remove empty directory", "path", dir)
			removed++
			continue
		}

		if rerr := os.Remove(dir); rerr != nil {
			failed++
			slog.Warn("Failed to remove empty directory", "path", dir, "error", rerr)
			continue
		}
		slog.Info("Removed empty directory", "path", dir)
		removed++
	}

	return removed, failed, nil
}
