// Package cache stores timestamped JSON payloads on disk.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	tcerrors "tcphotos/pkg/errors"
)

// DirName is the directory created under the user cache directory
const DirName = "transparent-classroom-cache"

// Entry is the on-disk envelope
type Entry struct {
	// Timestamp is the write time in unix seconds
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// now is replaced in tests
var now = time.Now

// Read returns the payload stored at path when it is younger than maxAge.
// A missing, expired or future-dated entry is a miss, not an error.
func Read(path string, maxAge time.Duration) (json.RawMessage, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, tcerrors.IO(err, "failed to read cache %s: %v", path, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, tcerrors.Parse("failed to parse cache %s: %v", path, err)
	}

	age := now().Sub(time.Unix(entry.Timestamp, 0))
	if age < 0 || age > maxAge {
		return nil, false, nil
	}
	return entry.Payload, true, nil
}

// Write stores payload at path stamped with the current time. Parent
// directories are created and the file is replaced atomically.
func Write(path string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return tcerrors.Parse("failed to encode cache payload: %v", err)
	}

	data, err := json.MarshalIndent(Entry{Timestamp: now().Unix(), Payload: raw}, "", "  ")
	if err != nil {
		return tcerrors.Parse("failed to encode cache entry: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return tcerrors.IO(err, "failed to create cache directory: %v", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		os.Remove(tempPath)
		return tcerrors.IO(err, "failed to write cache %s: %v", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return tcerrors.IO(err, "failed to replace cache %s: %v", path, err)
	}
	return nil
}

// DefaultDir returns the cache directory under the user cache directory
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", tcerrors.IO(err, "failed to resolve user cache directory: %v", err)
	}
	return filepath.Join(base, DirName), nil
}

// Store is a cache rooted at one directory
type Store struct {
	dir    string
	maxAge time.Duration
}

// NewStore returns a store in dir. An empty dir selects DefaultDir.
func NewStore(dir string, maxAge time.Duration) (*Store, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return &Store{dir: dir, maxAge: maxAge}, nil
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file used for key
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get decodes the entry for key into v. It reports false on a miss.
func (s *Store) Get(key string, v interface{}) (bool, error) {
	raw, ok, err := Read(s.Path(key), s.maxAge)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, tcerrors.Parse("failed to decode cache %s: %v", key, err)
	}
	return true, nil
}

// Put stores v under key
func (s *Store) Put(key string, v interface{}) error {
	return Write(s.Path(key), v)
}
