package cachedir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/typedock-labs/typedock/internal/branding"
)

// Directory and file name constants for the TypeDock home layout.
const (
	CacheDir      = "cache"
	PackagesDir   = "node_modules"
	StagingDir    = ".staging"
	IndexSnapshot = "registry-index.json"
)

// Permission constants.
const (
	DirPermNormal os.FileMode = 0755
)

// HomeRoot returns the TypeDock home directory. It checks the TYPEDOCK_HOME
// environment variable first, then falls back to ~/.typedock.
func HomeRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HomeDir()), nil
}

// CacheRoot returns the shared global typings cache directory. It checks the
// TYPEDOCK_CACHE environment variable first, then falls back to
// ~/.typedock/cache.
func CacheRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("CACHE")); v != "" {
		return v, nil
	}
	root, err := HomeRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, CacheDir), nil
}

// SnapshotPath returns the on-disk location of the registry index snapshot.
func SnapshotPath() (string, error) {
	root, err := HomeRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, IndexSnapshot), nil
}

// PackagesRoot returns the directory declaration packages materialize into
// for a given cache root.
func PackagesRoot(cacheRoot string) string {
	return filepath.Join(cacheRoot, PackagesDir)
}

// StagingRoot returns the staging area for in-flight installs under a cache
// root. Contents are invisible to consumers until finalized.
func StagingRoot(cacheRoot string) string {
	return filepath.Join(cacheRoot, StagingDir)
}

// PackageDir returns the installed location of a (possibly scoped) package
// under a cache root.
func PackageDir(cacheRoot, name string) string {
	return filepath.Join(PackagesRoot(cacheRoot), filepath.FromSlash(name))
}

// EnsureCacheRoot creates the cache root and its packages directory.
func EnsureCacheRoot(cacheRoot string) error {
	if err := os.MkdirAll(PackagesRoot(cacheRoot), DirPermNormal); err != nil {
		return fmt.Errorf("creating cache root %s: %w", cacheRoot, err)
	}
	return nil
}
