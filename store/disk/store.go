// Package disk provides the filesystem reference implementation of the
// store backend.
//
// Entries live at <root>/<fn>/<key>/ and are built under
// <root>/<fn>/<key>.staging-<rand>/. Publication is a single os.Rename of
// the staging directory onto the published path; the success token is
// written as the last staging step, so an entry is valid if and only if
// the published directory exists and contains the token. The whole root
// uses relative addressing only and can be copied between machines.
package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/memo/store"
)

const (
	// tokenName is the completion marker. Its presence distinguishes a
	// committed entry from a leftover of a crashed writer.
	tokenName = "success_token"

	// resultName holds the serialized return value. Absent for entries
	// whose computation returns nothing.
	resultName = "return_value.bin"

	// stagingPattern suffixes staging directories. Published keys never
	// contain '.', so a staging directory can never be addressed as an
	// entry.
	stagingPattern = ".staging-"

	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
)

// Store implements store.Store on the local filesystem.
type Store struct {
	dir      string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// Interface compliance.
var _ store.Store = (*Store)(nil)

// Option configures a disk store.
type Option func(*Store)

// WithDirPerm sets the permissions used for created directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(s *Store) {
		s.dirPerm = mode
	}
}

// WithFilePerm sets the permissions used for created files.
func WithFilePerm(mode os.FileMode) Option {
	return func(s *Store) {
		s.filePerm = mode
	}
}

// New creates a disk store rooted at dir.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("disk: store dir is empty")
	}
	s := &Store{
		dir:      dir,
		dirPerm:  defaultDirPerm,
		filePerm: defaultFilePerm,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Lookup implements store.Store.
func (s *Store) Lookup(fn, key string) (store.Entry, store.Status, error) {
	path, err := s.entryPath(fn, key)
	if err != nil {
		return nil, store.StatusAbsent, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.StatusAbsent, nil
		}
		return nil, store.StatusAbsent, err
	}
	if _, err := os.Stat(filepath.Join(path, tokenName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.StatusInvalid, nil
		}
		return nil, store.StatusAbsent, err
	}
	return &entry{dir: path}, store.StatusValid, nil
}

// Stage implements store.Store. The random suffix keeps concurrent stagings
// for the same key from colliding with each other.
func (s *Store) Stage(fn, key string) (store.Staging, error) {
	final, err := s.entryPath(fn, key)
	if err != nil {
		return nil, err
	}
	fnDir := filepath.Dir(final)
	if err := os.MkdirAll(fnDir, s.dirPerm); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(fnDir, key+stagingPattern)
	if err != nil {
		return nil, err
	}
	return &staging{
		dir:      dir,
		final:    final,
		dirPerm:  s.dirPerm,
		filePerm: s.filePerm,
	}, nil
}

// Remove implements store.Store.
func (s *Store) Remove(fn, key string) error {
	path, err := s.entryPath(fn, key)
	if err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// entryPath joins the published address, refusing path elements that would
// escape the root.
func (s *Store) entryPath(fn, key string) (string, error) {
	if err := validElement(fn); err != nil {
		return "", fmt.Errorf("disk: function name %q: %w", fn, err)
	}
	if err := validElement(key); err != nil {
		return "", fmt.Errorf("disk: key %q: %w", key, err)
	}
	return filepath.Join(s.dir, fn, key), nil
}

func validElement(name string) error {
	if name == "" {
		return errors.New("empty path element")
	}
	if name == "." || name == ".." {
		return errors.New("relative path element")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("path element contains a separator")
	}
	return nil
}

type entry struct {
	dir string
}

func (e *entry) Result() ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(e.dir, resultName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}
	return data, true, nil
}

func (e *entry) OutputDir(name string) string {
	return filepath.Join(e.dir, name)
}

func (e *entry) Path() string { return e.dir }

type staging struct {
	dir      string
	final    string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func (st *staging) Path() string { return st.final }

func (st *staging) MakeOutputDir(name string) (string, error) {
	if err := validElement(name); err != nil {
		return "", fmt.Errorf("disk: output dir %q: %w", name, err)
	}
	path := filepath.Join(st.dir, name)
	if err := os.MkdirAll(path, st.dirPerm); err != nil {
		return "", err
	}
	return path, nil
}

func (st *staging) WriteResult(data []byte) error {
	return os.WriteFile(filepath.Join(st.dir, resultName), data, st.filePerm)
}

// Commit writes the success token, then publishes the staging directory
// with a single rename. The token comes first so that a crash between the
// two steps leaves either an invisible staging directory or a complete,
// valid entry — never a published entry missing its marker.
func (st *staging) Commit() (store.Entry, error) {
	token := filepath.Join(st.dir, tokenName)
	f, err := os.OpenFile(token, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, st.filePerm)
	if err != nil {
		_ = st.Discard()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = st.Discard()
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = st.Discard()
		return nil, err
	}

	if err := os.Rename(st.dir, st.final); err != nil {
		_ = st.Discard()
		if _, statErr := os.Stat(st.final); statErr == nil {
			return nil, fmt.Errorf("%w: %s", store.ErrConflict, st.final)
		}
		return nil, err
	}
	return &entry{dir: st.final}, nil
}

func (st *staging) Discard() error {
	return os.RemoveAll(st.dir)
}
