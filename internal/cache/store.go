// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/staranto/tdctl/internal/notify"
)

// Entry represents the last known value of a single entity.
type Entry[K comparable, V any] struct {
	// Key identifies the entity, for example an insight id.
	Key K
	// Value is the entity as returned by the remote API.
	Value V
	// StoredAt is when Value was written into the store.
	StoredAt time.Time
}

// Age returns how long ago the entry was stored, relative to now.
func (e Entry[K, V]) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Store is a keyed mapping from entity key to its last known value. Entries
// are only ever replaced whole. Staleness is judged on read.
type Store[K comparable, V any] struct {
	name     string
	clock    clock.Clock
	notifier *notify.Notifier

	mu      sync.RWMutex
	entries map[K]Entry[K, V]
}

// New creates an empty store. name is reported as the Source of change
// events. A nil clock means wall time; a nil notifier disables events.
func New[K comparable, V any](name string, clk clock.Clock, n *notify.Notifier) *Store[K, V] {
	if clk == nil {
		clk = clock.New()
	}
	return &Store[K, V]{
		name:     name,
		clock:    clk,
		notifier: n,
		entries:  make(map[K]Entry[K, V]),
	}
}

// Get returns the stored entry, fresh or not.
func (s *Store[K, V]) Get(key K) (Entry[K, V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// IsStale reports whether key is absent or was stored more than maxAge ago.
func (s *Store[K, V]) IsStale(key K, maxAge time.Duration) bool {
	e, ok := s.Get(key)
	if !ok {
		return true
	}
	return e.Age(s.clock.Now()) > maxAge
}

// Set inserts or replaces the entry for key, stamping it with the current
// time.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	s.entries[key] = Entry[K, V]{Key: key, Value: value, StoredAt: s.clock.Now()}
	s.mu.Unlock()

	s.notifier.Notify(notify.Event{Source: s.name, Key: key, Kind: notify.EntryStored})
}

// Remove deletes the entry for key. Removing an absent key is a no-op and
// does not notify.
func (s *Store[K, V]) Remove(key K) {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if ok {
		s.notifier.Notify(notify.Event{Source: s.name, Key: key, Kind: notify.EntryRemoved})
	}
}

// Len returns the number of stored entries.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

