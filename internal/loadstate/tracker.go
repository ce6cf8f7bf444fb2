// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package loadstate

import (
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/benbjohnson/clock"

	"github.com/staranto/tdctl/internal/notify"
)

// Cooldown is how long an Error state holds before the key becomes
// retryable again.
const Cooldown = 60 * time.Second

// Tracker maps entity keys to their current State.
type Tracker[K comparable] struct {
	name     string
	clock    clock.Clock
	notifier *notify.Notifier

	mu     sync.RWMutex
	states map[K]State
}

// NewTracker creates a tracker where every key starts Idle.
func NewTracker[K comparable](name string, clk clock.Clock, n *notify.Notifier) *Tracker[K] {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker[K]{
		name:     name,
		clock:    clk,
		notifier: n,
		states:   make(map[K]State),
	}
}

// Get returns the stored state without applying the cooldown.
func (t *Tracker[K]) Get(key K) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.states[key]; ok {
		return s
	}
	return Idle{}
}

// Set overwrites the state for key.
func (t *Tracker[K]) Set(key K, s State) {
	t.mu.Lock()
	t.states[key] = s
	t.mu.Unlock()

	t.notifier.Notify(notify.Event{Source: t.name, Key: key, Kind: notify.StateChanged})
}

// Remove forgets key, making it Idle.
func (t *Tracker[K]) Remove(key K) {
	t.mu.Lock()
	_, ok := t.states[key]
	delete(t.states, key)
	t.mu.Unlock()

	if ok {
		t.notifier.Notify(notify.Event{Source: t.name, Key: key, Kind: notify.StateChanged})
	}
}

// Effective returns the state for key after applying the cooldown: an Error
// older than Cooldown is reset to Idle and Idle is returned.
func (t *Tracker[K]) Effective(key K) State {
	s := t.Get(key)

	e, ok := s.(Error)
	if !ok || t.clock.Now().Sub(e.At) <= Cooldown {
		return s
	}

	t.mu.Lock()
	// Only reset if nobody replaced the error in the meantime.
	if cur, ok := t.states[key].(Error); !ok || cur != e {
		s = t.states[key]
		t.mu.Unlock()
		if s == nil {
			return Idle{}
		}
		return s
	}
	t.states[key] = Idle{}
	t.mu.Unlock()

	log.Debugf("%s: error cooldown elapsed for %v", t.name, key)
	t.notifier.Notify(notify.Event{Source: t.name, Key: key, Kind: notify.StateChanged})
	return Idle{}
}
