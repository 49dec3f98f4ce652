// Package lockstore is a small JSON key-value file shared between
// processes.
//
// Every read holds a shared flock on "<path>.lock" and every write holds an
// exclusive one for the whole read-modify-write. Writes go to a temp file in
// the same directory and are renamed over the store, so readers never see a
// torn file.
package lockstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/agentwatch/internal/errors"
)

// envelope is the on-disk layout: {"locks": {"<key>": <value>}}.
type envelope[V any] struct {
	Locks map[string]V `json:"locks"`
}

// Store persists a map of V keyed by string.
type Store[V any] struct {
	path string
}

// New returns a Store backed by path. Nothing is created until the first
// access.
func New[V any](path string) *Store[V] {
	return &Store[V]{path: path}
}

// Path returns the store file path.
func (s *Store[V]) Path() string { return s.path }

// LockPath returns the sidecar lock file path.
func (s *Store[V]) LockPath() string { return s.path + ".lock" }

// Get returns the value for key.
func (s *Store[V]) Get(key string) (V, bool, error) {
	var zero V
	all, err := s.All()
	if err != nil {
		return zero, false, err
	}
	v, ok := all[key]
	return v, ok, nil
}

// All returns a copy of every entry.
func (s *Store[V]) All() (map[string]V, error) {
	fl := newFileLock(s.LockPath())
	if err := fl.lock(unix.LOCK_SH); err != nil {
		return nil, s.lockError(err)
	}
	defer func() { _ = fl.unlock() }()
	return s.read()
}

// Update runs fn on the current contents under the exclusive lock and
// writes the map back. fn may add, change or delete entries. If fn returns
// an error nothing is written and that error is returned unchanged.
func (s *Store[V]) Update(fn func(m map[string]V) error) error {
	fl := newFileLock(s.LockPath())
	if err := fl.lock(unix.LOCK_EX); err != nil {
		return s.lockError(err)
	}
	defer func() { _ = fl.unlock() }()

	m, err := s.read()
	if err != nil {
		if !errors.Is(err, errors.ErrStoreCorrupted) {
			return err
		}
		// A corrupt store is replaced rather than blocking every write.
		m = make(map[string]V)
	}
	if err := fn(m); err != nil {
		return err
	}
	if m == nil {
		m = make(map[string]V)
	}
	return s.write(m)
}

// Delete removes key. It reports whether the key existed.
func (s *Store[V]) Delete(key string) (bool, error) {
	var existed bool
	err := s.Update(func(m map[string]V) error {
		_, existed = m[key]
		delete(m, key)
		return nil
	})
	return existed, err
}

// read loads the store. A missing or empty file is an empty map.
func (s *Store[V]) read() (map[string]V, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]V), nil
		}
		return nil, errors.NewPersistenceError("read store", errors.Join(errors.ErrStoreRead, err)).WithPath(s.path)
	}
	var env envelope[V]
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, errors.NewPersistenceError("decode store", errors.Join(errors.ErrStoreCorrupted, err)).WithPath(s.path)
		}
	}
	if env.Locks == nil {
		env.Locks = make(map[string]V)
	}
	return env.Locks, nil
}

func (s *Store[V]) write(m map[string]V) error {
	data, err := json.MarshalIndent(envelope[V]{Locks: m}, "", "  ")
	if err != nil {
		return s.writeError("encode store", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.writeError("create store dir", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return s.writeError("create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return s.writeError("write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return s.writeError("close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return s.writeError("rename temp file", err)
	}
	return nil
}

func (s *Store[V]) lockError(err error) error {
	return errors.NewPersistenceError("lock store", errors.Join(errors.ErrLockAcquire, err)).WithPath(s.LockPath())
}

func (s *Store[V]) writeError(msg string, err error) error {
	return errors.NewPersistenceError(msg, errors.Join(errors.ErrStoreWrite, err)).WithPath(s.path)
}
