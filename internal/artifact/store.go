// Package artifact stores generated files in a flat local directory, with an
// optional best-effort mirror to object storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/common/fsutil"
)

// ErrNotFound is returned when a named artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Mirror copies saved artifacts somewhere else. Failures never fail a save.
type Mirror interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Config configures a Store.
type Config struct {
	Dir    string
	Mirror Mirror
	// Prefix is prepended to mirror object keys, for example "imagegen/".
	Prefix string
	Logger *zerolog.Logger
}

// Store is a directory of flat, uniquely named files.
type Store struct {
	dir    string
	mirror Mirror
	prefix string
	log    zerolog.Logger
}

// NewStore creates the directory if needed.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("artifact: directory is required")
	}
	dir, err := fsutil.ExpandHome(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	s := &Store{dir: dir, mirror: cfg.Mirror, prefix: cfg.Prefix, log: zerolog.Nop()}
	if cfg.Logger != nil {
		s.log = *cfg.Logger
	}
	return s, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the location of name inside the store.
func (s *Store) Path(name string) (string, error) {
	n, err := fsutil.SafeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, n), nil
}

// Save writes data under name atomically and mirrors it if configured.
func (s *Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	p, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	if s.mirror != nil {
		ct := mime.TypeByExtension(filepath.Ext(name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := s.mirror.Put(ctx, s.prefix+name, data, ct); err != nil {
			s.log.Warn().Err(err).Str("artifact", name).Msg("artifact mirror failed")
		}
	}
	return p, nil
}

// Exists reports whether name is a stored file.
func (s *Store) Exists(name string) bool {
	p, err := s.Path(name)
	return err == nil && fsutil.IsRegularFile(p)
}

// File is an open artifact. The caller must Close it.
type File struct {
	*os.File
	Name    string
	Size    int64
	ModTime time.Time
}

var _ io.ReadSeekCloser = (*File)(nil)

// Open opens name for reading. Unknown or unsafe names return ErrNotFound.
func (s *Store) Open(name string) (*File, error) {
	p, err := s.Path(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &File{File: f, Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Remove deletes name. Missing files are not an error.
func (s *Store) Remove(name string) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every stored file.
func (s *Store) Clear() (int, error) {
	return fsutil.ClearDir(s.dir)
}
