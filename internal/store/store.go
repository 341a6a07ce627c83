package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/letsur-dev/claude-peak/internal/types"
)

const credentialsFile = "credentials.json"

// FileStore persists the token record as a JSON file in the
// application config directory. Saves replace the file atomically via
// a temp file and rename; no cross-process locking is attempted since
// the refresh procedure is the only expected writer.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, credentialsFile)
}

// Load reads the persisted record. A missing file maps to
// types.ErrNoCredential so callers can distinguish "never logged in"
// from a real I/O failure.
func (s *FileStore) Load() (types.TokenRecord, error) {
	var rec types.TokenRecord
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return rec, types.ErrNoCredential
		}
		return rec, types.StoreError{Op: "load", Err: err}
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, types.StoreError{Op: "load", Err: err}
	}
	return rec, nil
}

func (s *FileStore) Save(rec types.TokenRecord) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return types.StoreError{Op: "save", Err: fmt.Errorf("create dir: %w", err)}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return types.StoreError{Op: "save", Err: err}
	}
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return types.StoreError{Op: "save", Err: fmt.Errorf("write temp: %w", err)}
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return types.StoreError{Op: "save", Err: err}
	}
	return nil
}

// Clear removes the persisted record. Clearing an absent record is not
// an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return types.StoreError{Op: "clear", Err: err}
	}
	return nil
}
