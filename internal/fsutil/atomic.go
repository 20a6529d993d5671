// Package fsutil holds the file-system primitives shared by the
// registry stores and the artifact writer.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirPerm and FilePerm are the permissions used for everything pomgen writes.
const (
	DirPerm  os.FileMode = 0750
	FilePerm os.FileMode = 0644
)

// WriteFileAtomic writes data to a temporary file next to path and
// renames it into place, so readers see either the old or the new
// content and never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	name, err := StageFile(path, data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to rename %s to %s: %w", name, path, err)
	}
	return nil
}

// StageFile writes data to a synced temporary file next to path and
// returns its name. Renaming it onto path publishes the content.
func StageFile(path string, data []byte, perm os.FileMode) (string, error) {
	tmp, err := CreateSibling(path)
	if err != nil {
		return "", err
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to chmod %s: %w", name, err)
	}
	return name, nil
}

// CreateSibling creates the parent directory of path and an empty
// temporary file in it. The caller owns the returned file.
func CreateSibling(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	return tmp, nil
}
