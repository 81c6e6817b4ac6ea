// Package backup stores pre-change configuration artifacts by content hash.
//
// During transaction snapshotting the file-backed appliers deposit the
// current artifact here before anything is mutated. The store is the audit
// trail for "what did this file look like before tunectl touched it" and
// the durable source for manual restoration when an automatic rollback
// fails. Entries are immutable and verified on retrieval.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Store provides content-addressed artifact storage.
type Store struct {
	dir string
}

// Open creates or opens a Store at the given directory.
func Open(dir string) (*Store, error) {
	objDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory %s: %w", objDir, err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the default backup directory.
func DefaultDir() string {
	if os.Geteuid() == 0 {
		return "/var/lib/tunectl/backups"
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "tunectl", "backups")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tunectl-backups")
	}
	return filepath.Join(home, ".local", "state", "tunectl", "backups")
}

// Put stores content and returns its SHA256 hash. Storing the same content
// twice is a no-op.
func (s *Store) Put(content []byte) (string, error) {
	hash := Hash(content)
	path := s.objectPath(hash)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating backup temp file: %w", err)
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
		return "", fmt.Errorf("writing backup temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("syncing backup temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing backup temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("renaming backup temp file: %w", err)
	}

	success = true
	return hash, nil
}

// Get retrieves an artifact by hash. Returns the content and true when
// present and verified. A corrupt entry is removed and reported as absent.
func (s *Store) Get(hash string) ([]byte, bool, error) {
	path := s.objectPath(hash)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading backup %s: %w", hash, err)
	}

	if Hash(data) != hash {
		_ = os.Remove(path)
		return nil, false, nil
	}

	return data, true, nil
}

// Has checks whether a hash is stored without reading its content.
func (s *Store) Has(hash string) bool {
	_, err := os.Stat(s.objectPath(hash))
	return err == nil
}

// Size returns the total size of stored artifacts in bytes.
func (s *Store) Size() (int64, error) {
	var total int64
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Path returns the store directory.
func (s *Store) Path() string { return s.dir }

func (s *Store) objectPath(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(s.dir, "objects", hash)
	}
	return filepath.Join(s.dir, "objects", hash[:2], hash)
}

// Hash computes the SHA256 hex digest of content.
func Hash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
