// Package kv provides TypedKeyValueStore implementations for hosts that do
// not bring their own.
package kv

import (
	"context"
	"sort"
	"sync"

	prefs "github.com/goliatone/go-prefs"
)

// MemoryStore is an in-memory TypedKeyValueStore intended for tests,
// examples and short-lived processes. Each key space is guarded by its own
// lock.
type MemoryStore struct {
	booleans *Space[bool]
	bytes    *Space[byte]
	shorts   *Space[int16]
	integers *Space[int32]
	longs    *Space[int64]
	strings  *Space[string]
}

var _ prefs.TypedKeyValueStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		booleans: NewSpace[bool](),
		bytes:    NewSpace[byte](),
		shorts:   NewSpace[int16](),
		integers: NewSpace[int32](),
		longs:    NewSpace[int64](),
		strings:  NewSpace[string](),
	}
}

func (s *MemoryStore) Booleans() prefs.KeySpace[bool] {
	return s.booleans
}

func (s *MemoryStore) Bytes() prefs.KeySpace[byte] {
	return s.bytes
}

func (s *MemoryStore) Shorts() prefs.KeySpace[int16] {
	return s.shorts
}

func (s *MemoryStore) Integers() prefs.KeySpace[int32] {
	return s.integers
}

func (s *MemoryStore) Longs() prefs.KeySpace[int64] {
	return s.longs
}

func (s *MemoryStore) Strings() prefs.KeySpace[string] {
	return s.strings
}

// Len returns the number of keys across every space.
func (s *MemoryStore) Len() int {
	return s.booleans.Len() + s.bytes.Len() + s.shorts.Len() +
		s.integers.Len() + s.longs.Len() + s.strings.Len()
}

// Space is a single map-backed key space. It is safe for concurrent use.
type Space[T prefs.Scalar] struct {
	mu     sync.RWMutex
	values map[string]T
}

func NewSpace[T prefs.Scalar]() *Space[T] {
	return &Space[T]{values: map[string]T{}}
}

func (s *Space[T]) Get(_ context.Context, key string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *Space[T]) Set(_ context.Context, key string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]T{}
	}
	s.values[key] = value
	return nil
}

func (s *Space[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Keys returns the keys in ascending order.
func (s *Space[T]) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Space[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Snapshot returns a copy of the stored values.
func (s *Space[T]) Snapshot() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]T, len(s.values))
	for key, value := range s.values {
		out[key] = value
	}
	return out
}

// Replace swaps the stored values for a copy of values.
func (s *Space[T]) Replace(values map[string]T) {
	next := make(map[string]T, len(values))
	for key, value := range values {
		next[key] = value
	}
	s.mu.Lock()
	s.values = next
	s.mu.Unlock()
}
