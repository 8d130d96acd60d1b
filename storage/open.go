package storage

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	DataPath string
	Origin   string
	MaxBytes int64
	Logger   *zap.Logger

	// Fs overrides the filesystem used by the file backend.
	Fs afero.Fs
}

// Open returns a ready-to-use backend.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(opts.MaxBytes), nil

	case BackendFile:
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		path := filepath.Join(opts.DataPath, "origins", opts.Origin+".json")
		return NewFileStore(fs, path, opts.MaxBytes)

	case BackendSQLite, "":
		s := NewSQLiteStorage(opts.DataPath, opts.Origin, opts.MaxBytes, opts.Logger)
		if err := s.Initialize(); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
