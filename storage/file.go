package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// FileStore persists one origin as a single JSON object on disk.
// Every change rewrites the file through a temp file and a rename.
type FileStore struct {
	mu       sync.Mutex
	fs       afero.Fs
	path     string
	entries  map[string]string
	used     int64
	maxBytes int64
}

// NewFileStore opens (or creates) the store file at path on fs.
func NewFileStore(fs afero.Fs, path string, maxBytes int64) (*FileStore, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{
		fs:       fs,
		path:     path,
		entries:  make(map[string]string),
		maxBytes: maxBytes,
	}

	data, err := afero.ReadFile(fs, path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, &ParseError{Key: path, Err: err}
		}
	}
	for k, v := range s.entries {
		s.used += entrySize(k, v)
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.entries[key]
	used := s.used
	if existed {
		used -= entrySize(key, old)
	}
	used += entrySize(key, value)
	if s.maxBytes > 0 && used > s.maxBytes {
		return quotaError(key, used, s.maxBytes)
	}

	s.entries[key] = value
	if err := s.flush(); err != nil {
		if existed {
			s.entries[key] = old
		} else {
			delete(s.entries, key)
		}
		return err
	}
	s.used = used
	return nil
}

func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.entries[key]
	if !ok {
		return nil
	}
	delete(s.entries, key)
	if err := s.flush(); err != nil {
		s.entries[key] = old
		return err
	}
	s.used -= entrySize(key, old)
	return nil
}

func (s *FileStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Close() error {
	return nil
}

// flush must be called with s.mu held.
func (s *FileStore) flush() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
