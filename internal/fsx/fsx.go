// Package fsx holds write-then-rename file helpers.
//
// Readers of a path written through this package observe either the old
// content or the new content, never a partial file. The same holds for the
// stable symlink: it is replaced by renaming a fully created link over it.
package fsx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// WriteFileAtomic writes content to a temp file beside path and renames it into place.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	return writeAtomic(path, mode, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
}

// CopyAtomic streams r into path through a temp file beside it. Every byte
// read is also written to tee when tee is non-nil, so callers can hash while
// copying.
func CopyAtomic(path string, r io.Reader, mode os.FileMode, tee io.Writer) (int64, error) {
	tempPath, n, err := Stage(filepath.Dir(path), tempPattern(path), r, mode, tee)
	if err != nil {
		return 0, err
	}
	if err := Commit(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return 0, err
	}
	return n, nil
}

func writeAtomic(path string, mode os.FileMode, fill func(io.Writer) error) error {
	tempPath, err := stage(filepath.Dir(path), tempPattern(path), mode, fill)
	if err != nil {
		return err
	}
	if err := Commit(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}

// Stage streams r into a new temp file in dir, synced and chmodded, and
// returns its path. Nothing else is touched: the caller either Commits the
// temp file to its final name or removes it.
func Stage(dir, pattern string, r io.Reader, mode os.FileMode, tee io.Writer) (string, int64, error) {
	var n int64
	tempPath, err := stage(dir, pattern, mode, func(w io.Writer) error {
		if tee != nil {
			w = io.MultiWriter(w, tee)
		}
		var copyErr error
		n, copyErr = io.Copy(w, r)
		return copyErr
	})
	return tempPath, n, err
}

func stage(dir, pattern string, mode os.FileMode, fill func(io.Writer) error) (string, error) {
	tempFile, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempPath)
		}
	}()

	if err := fill(tempFile); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Chmod(mode); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	cleanup = false
	return tempPath, nil
}

// tempPattern names temp files ".<base>.tmp-*" beside path.
func tempPattern(path string) string {
	return "." + filepath.Base(path) + ".tmp-*"
}

// Commit renames a staged file to path, replacing any existing file.
func Commit(tempPath, path string) error {
	if err := renameReplace(tempPath, path); err != nil {
		return err
	}
	syncDir(filepath.Dir(path))
	return nil
}

// ReplaceSymlink points link at target. A temp link is created beside link
// and renamed over it, so link never dangles mid-update.
func ReplaceSymlink(target, link string) error {
	parent := filepath.Dir(link)
	tempLink, err := tempName(parent, "."+filepath.Base(link)+".link-")
	if err != nil {
		return err
	}
	if err := os.Symlink(target, tempLink); err != nil {
		return fmt.Errorf("create temp symlink: %w", err)
	}
	if err := renameReplace(tempLink, link); err != nil {
		_ = os.Remove(tempLink)
		return err
	}
	syncDir(parent)
	return nil
}

// tempName reserves an unused name in dir by creating and removing a temp file.
func tempName(dir, prefix string) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"*")
	if err != nil {
		return "", fmt.Errorf("reserve temp name: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return "", fmt.Errorf("reserve temp name: %w", err)
	}
	return name, nil
}

func renameReplace(from, to string) error {
	if err := os.Rename(from, to); err != nil {
		if runtime.GOOS != "windows" {
			return fmt.Errorf("rename temp file: %w", err)
		}
		if removeErr := os.Remove(to); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("remove destination before rename: %w", removeErr)
		}
		if renameErr := os.Rename(from, to); renameErr != nil {
			return fmt.Errorf("rename temp file after remove: %w", renameErr)
		}
	}
	return nil
}

func syncDir(dir string) {
	// #nosec G304 -- directory path is derived from the caller-provided destination.
	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}
}
