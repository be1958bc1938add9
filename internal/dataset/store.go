package dataset

import (
	"slices"
	"sync"

	logx "github.com/retail-analyst/server/pkg/logger"
)

// Store holds the current dataset snapshot. Readers get an immutable
// *Dataset; Replace and Reload swap the snapshot and notify subscribers.
type Store struct {
	mu          sync.RWMutex
	path        string
	current     *Dataset
	version     uint64
	subscribers []func(*Dataset)
}

// NewStore wraps an already loaded dataset. path is used by Reload.
func NewStore(path string, ds *Dataset) *Store {
	return &Store{path: path, current: ds, version: 1}
}

// OpenStore loads path and wraps the result.
func OpenStore(path string) (*Store, error) {
	ds, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewStore(path, ds), nil
}

// Current returns the active snapshot.
func (s *Store) Current() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version increases every time the snapshot changes.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers fn to run after every snapshot change.
func (s *Store) Subscribe(fn func(*Dataset)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Replace installs ds as the active snapshot.
func (s *Store) Replace(ds *Dataset) {
	s.mu.Lock()
	s.current = ds
	s.version++
	version := s.version
	subs := slices.Clone(s.subscribers)
	s.mu.Unlock()

	logx.Info().Uint64("version", version).Int("rows", ds.Len()).Msg("dataset snapshot replaced")
	for _, fn := range subs {
		fn(ds)
	}
}

// Reload reads the backing file again. On failure the previous snapshot stays active.
func (s *Store) Reload() (*Dataset, error) {
	ds, err := Load(s.path)
	if err != nil {
		logx.Error().Err(err).Str("path", s.path).Msg("dataset reload failed")
		return nil, err
	}
	s.Replace(ds)
	return ds, nil
}
