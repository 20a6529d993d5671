package ux

import (
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/pomgen/internal/config"
)

// DiscoverRoot walks up from start looking for a directory containing
// .pomgen. The walk stops at the first directory holding .git or at
// the filesystem root; start is returned when nothing was found.
func DiscoverRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	dir := abs
	for {
		if isDir(filepath.Join(dir, config.Dir)) {
			return dir, nil
		}
		if isDir(filepath.Join(dir, ".git")) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return abs, nil
}

// EnsureDir creates .pomgen and its elements directory under root.
func EnsureDir(root string, elementsDir string) error {
	for _, d := range []string{filepath.Join(root, config.Dir), filepath.Join(root, elementsDir)} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return err
		}
	}
	return nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
