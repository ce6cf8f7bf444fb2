// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gammazero/channelqueue"
)

// Kind identifies what changed.
type Kind int

const (
	EntryStored Kind = iota
	EntryRemoved
	StateChanged
)

func (k Kind) String() string {
	switch k {
	case EntryStored:
		return "stored"
	case EntryRemoved:
		return "removed"
	case StateChanged:
		return "state"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event describes a single mutation of an entity store or load-state tracker.
// Source is the entity class name the mutation belongs to.
type Event struct {
	Source string
	Key    any
	Kind   Kind
}

// Sink receives change notifications.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Notify(e Event) { f(e) }

// Executor decides on which execution context sinks are invoked. The host
// supplies one that marshals onto its UI loop.
type Executor func(func())

// Synchronous runs fn on the notifying goroutine.
func Synchronous(fn func()) { fn() }

// Serial returns an Executor that runs every fn, in order, on one dedicated
// goroutine. Submitting never blocks. The returned stop function ends the
// goroutine once everything submitted so far has run; later submissions are
// dropped.
func Serial() (Executor, func()) {
	cq := channelqueue.New[func()](-1)
	in := cq.In()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for fn := range cq.Out() {
			fn()
		}
	}()

	var (
		mu      sync.RWMutex
		stopped bool
	)

	ex := func(fn func()) {
		mu.RLock()
		defer mu.RUnlock()
		if stopped {
			return
		}
		in <- fn
	}

	stop := func() {
		mu.Lock()
		if !stopped {
			stopped = true
			close(in)
		}
		mu.Unlock()
		<-done
	}

	return ex, stop
}

// Notifier fans events out to its subscribers.
type Notifier struct {
	mu      sync.RWMutex
	next    int
	sinks   map[int]Sink
	deliver Executor
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithExecutor sets the execution context sinks are invoked on.
func WithExecutor(ex Executor) Option {
	return func(n *Notifier) {
		if ex != nil {
			n.deliver = ex
		}
	}
}

func New(opts ...Option) *Notifier {
	n := &Notifier{
		sinks:   make(map[int]Sink),
		deliver: Synchronous,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers s and returns a function that unregisters it.
func (n *Notifier) Subscribe(s Sink) (cancel func()) {
	if n == nil || s == nil {
		return func() {}
	}

	n.mu.Lock()
	id := n.next
	n.next++
	n.sinks[id] = s
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.sinks, id)
		n.mu.Unlock()
	}
}

// Notify delivers e to every current subscriber. A nil Notifier is a no-op so
// stores can be used without observers.
func (n *Notifier) Notify(e Event) {
	if n == nil {
		return
	}

	n.mu.RLock()
	if len(n.sinks) == 0 {
		n.mu.RUnlock()
		return
	}
	sinks := make([]Sink, 0, len(n.sinks))
	for _, s := range n.sinks {
		sinks = append(sinks, s)
	}
	n.mu.RUnlock()

	n.deliver(func() {
		for _, s := range sinks {
			s.Notify(e)
		}
	})
}

// Debounce wraps s so that a burst of events results in a single call
// carrying the last event, once no event arrived for the given interval.
func Debounce(after time.Duration, s Sink) Sink {
	if after <= 0 {
		return s
	}

	var (
		mu   sync.Mutex
		last Event
	)
	debounced := debounce.New(after)

	return SinkFunc(func(e Event) {
		mu.Lock()
		last = e
		mu.Unlock()

		debounced(func() {
			mu.Lock()
			e := last
			mu.Unlock()
			s.Notify(e)
		})
	})
}
