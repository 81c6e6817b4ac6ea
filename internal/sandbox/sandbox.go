// Package sandbox confines filesystem access to a single root directory.
//
// Catalog paths are absolute host paths ("/etc/nginx/nginx.conf",
// "/proc/sys/net/core/somaxconn"). A Root maps them under its directory,
// which is "/" on a real host and a scratch directory in tests or staged
// runs. Every resolution checks symlink containment so a crafted symlink
// inside the root cannot redirect a write outside it.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Root is a filesystem root under which all probe reads and apply writes happen.
type Root struct {
	dir string
}

// New returns a Root for dir. An empty dir means the real host root.
func New(dir string) Root {
	if dir == "" {
		dir = "/"
	}
	return Root{dir: dir}
}

// Dir returns the root directory.
func (r Root) Dir() string { return r.dir }

// Resolve maps an absolute host path into the root and verifies containment.
func (r Root) Resolve(hostPath string) (string, error) {
	absRoot, err := filepath.Abs(r.dir)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving root symlinks: %w", err)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, strings.TrimPrefix(hostPath, "/")))

	// The target may not exist yet; resolve the longest existing prefix.
	resolved, err := resolveExistingPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", hostPath, err)
	}

	rootPrefix := realRoot + string(filepath.Separator)
	if realRoot == string(filepath.Separator) {
		rootPrefix = realRoot
	}
	if resolved != realRoot && !strings.HasPrefix(resolved, rootPrefix) {
		return "", fmt.Errorf("path '%s' resolves to '%s' which is outside the root '%s'", hostPath, resolved, realRoot)
	}

	return resolved, nil
}

// resolveExistingPath resolves symlinks for the longest existing prefix of
// the path, then appends the non-existing suffix.
func resolveExistingPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(path)
	if dir == path {
		return path, nil
	}

	resolvedDir, err := resolveExistingPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(path)), nil
}

// ReadFile reads a host path within the root.
func (r Root) ReadFile(hostPath string) ([]byte, error) {
	resolved, err := r.Resolve(hostPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(resolved)
}

// Stat stats a host path within the root.
func (r Root) Stat(hostPath string) (os.FileInfo, error) {
	resolved, err := r.Resolve(hostPath)
	if err != nil {
		return nil, err
	}
	return os.Stat(resolved)
}

// WriteFile atomically writes a host path within the root: temp file in the
// same directory, fsync, then rename over the target.
func (r Root) WriteFile(hostPath string, content []byte, perm os.FileMode) error {
	resolved, err := r.Resolve(hostPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tunectl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, resolved); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", resolved, err)
	}

	success = true
	return nil
}

// WriteFileInPlace writes without the temp-and-rename step, for virtual
// filesystems like /proc/sys where rename is not supported.
func (r Root) WriteFileInPlace(hostPath string, content []byte, perm os.FileMode) error {
	resolved, err := r.Resolve(hostPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(resolved, content, perm)
}

// Remove removes a host path within the root. Missing files are not an error.
func (r Root) Remove(hostPath string) error {
	resolved, err := r.Resolve(hostPath)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
