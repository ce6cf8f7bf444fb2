// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/benbjohnson/clock"
	"github.com/gammazero/channelqueue"

	"github.com/staranto/tdctl/internal/cache"
	"github.com/staranto/tdctl/internal/loadstate"
	"github.com/staranto/tdctl/internal/notify"
)

// DefaultMaxAge is used when no WithMaxAge option is given.
const DefaultMaxAge = 60 * time.Second

var (
	ErrClosed   = errors.New("coordinator closed")
	ErrReadOnly = errors.New("entity class does not support mutation")
)

// Fetcher retrieves a single entity from the remote API.
type Fetcher[K comparable, V any] interface {
	Fetch(ctx context.Context, key K) (V, error)
}

// Mutator is implemented by gateways of entity classes that can be created,
// updated and deleted. A Fetcher that also implements Mutator enables the
// coordinator's mutation methods.
type Mutator[K comparable, V any] interface {
	Create(ctx context.Context, value V) (K, error)
	Update(ctx context.Context, key K, value V) (V, error)
	Delete(ctx context.Context, key K) error
}

// Reporter receives fetch failures for centralized handling. Report must not
// block for long; it is invoked on its own goroutine.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(error)

func (f ReporterFunc) Report(err error) { f(err) }

type options struct {
	maxAge       time.Duration
	fetchTimeout time.Duration
	clock        clock.Clock
	notifier     *notify.Notifier
	reporter     Reporter
}

// Option customizes a Coordinator.
type Option func(*options)

// WithMaxAge sets how old a cached entry may get before it is refetched.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// WithFetchTimeout bounds each gateway call. Zero means no bound beyond the
// coordinator's base context.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchTimeout = d }
}

func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithNotifier shares a notifier between coordinators, for example so a
// dashboard can observe several entity classes through one subscription.
func WithNotifier(n *notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithReporter(r Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// Coordinator serves one entity class. It owns that class's entity store and
// load-state tracker and guarantees at most one in-flight fetch per key.
//
// All mutations of the store and tracker, apart from the cooldown reset done
// by the tracker itself, happen on a single goroutine that drains a FIFO work
// queue.
type Coordinator[K comparable, V any] struct {
	name         string
	maxAge       time.Duration
	fetchTimeout time.Duration
	clock        clock.Clock
	fetcher      Fetcher[K, V]
	mutator      Mutator[K, V]
	reporter     Reporter
	notifier     *notify.Notifier

	store  *cache.Store[K, V]
	states *loadstate.Tracker[K]

	ctx context.Context

	// dirty is only touched on the work queue goroutine.
	dirty map[K]struct{}

	in      chan<- func()
	out     <-chan func()
	done    chan struct{}
	fetches sync.WaitGroup

	mu      sync.RWMutex
	closing bool
	closed  bool
}

// New starts a coordinator for the entity class name. ctx is the parent of
// every gateway call.
func New[K comparable, V any](ctx context.Context, name string, f Fetcher[K, V], opts ...Option) *Coordinator[K, V] {
	o := options{maxAge: DefaultMaxAge}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.notifier == nil {
		o.notifier = notify.New()
	}

	cq := channelqueue.New[func()](-1)

	c := &Coordinator[K, V]{
		name:         name,
		maxAge:       o.maxAge,
		fetchTimeout: o.fetchTimeout,
		clock:        o.clock,
		fetcher:      f,
		reporter:     o.reporter,
		notifier:     o.notifier,
		store:        cache.New[K, V](name, o.clock, o.notifier),
		states:       loadstate.NewTracker[K](name, o.clock, o.notifier),
		ctx:          ctx,
		dirty:        make(map[K]struct{}),
		in:           cq.In(),
		out:          cq.Out(),
		done:         make(chan struct{}),
	}
	if m, ok := f.(Mutator[K, V]); ok {
		c.mutator = m
	}

	go c.run()

	return c
}

func (c *Coordinator[K, V]) run() {
	defer close(c.done)
	for fn := range c.out {
		fn()
	}
}

// Name returns the entity class name.
func (c *Coordinator[K, V]) Name() string { return c.name }

// Request returns the cached value for key, if any, and schedules a fetch
// when the value is missing or stale. It never waits for the network.
func (c *Coordinator[K, V]) Request(key K) (V, bool) {
	entry, ok := c.store.Get(key)

	if loadstate.IsBusy(c.states.Effective(key)) {
		return entry.Value, ok
	}

	if ok && entry.Age(c.clock.Now()) <= c.maxAge {
		return entry.Value, true
	}

	c.retrieve(key, false)
	return entry.Value, ok
}

// Refresh fetches key regardless of freshness or error cooldown. If a fetch
// is already in flight, another one follows once it completes.
func (c *Coordinator[K, V]) Refresh(key K) {
	c.retrieve(key, true)
}

// EffectiveState returns the load state of key with the error cooldown
// applied. An expired Error is reset to Idle on the caller's goroutine, not on
// the work queue; the tracker's compare-and-reset keeps that safe.
func (c *Coordinator[K, V]) EffectiveState(key K) loadstate.State {
	return c.states.Effective(key)
}

// Peek returns the cached entry for key without triggering a fetch.
func (c *Coordinator[K, V]) Peek(key K) (cache.Entry[K, V], bool) {
	return c.store.Get(key)
}

// Len returns the number of cached entries.
func (c *Coordinator[K, V]) Len() int {
	return c.store.Len()
}

// Subscribe registers s for change notifications of this class. Unless the
// notifier was built with an Executor, sinks run on the work queue goroutine
// and must not wait on the coordinator.
func (c *Coordinator[K, V]) Subscribe(s notify.Sink) (cancel func()) {
	return c.notifier.Subscribe(s)
}

// Create creates value remotely and then fetches the created entity.
func (c *Coordinator[K, V]) Create(ctx context.Context, value V) (K, error) {
	var zero K
	if err := c.canMutate(); err != nil {
		return zero, err
	}

	key, err := c.mutator.Create(ctx, value)
	if err != nil {
		return zero, err
	}

	// Derived fields are computed server side; refetch rather than store value.
	c.Refresh(key)
	return key, nil
}

// Update replaces key remotely and then refetches it.
func (c *Coordinator[K, V]) Update(ctx context.Context, key K, value V) (V, error) {
	var zero V
	if err := c.canMutate(); err != nil {
		return zero, err
	}

	updated, err := c.mutator.Update(ctx, key, value)
	if err != nil {
		return zero, err
	}

	c.Refresh(key)
	return updated, nil
}

// Delete removes key remotely and, on success, forgets it locally. It returns
// once the local removal has been applied.
func (c *Coordinator[K, V]) Delete(ctx context.Context, key K) error {
	if err := c.canMutate(); err != nil {
		return err
	}

	if err := c.mutator.Delete(ctx, key); err != nil {
		return err
	}

	applied := make(chan struct{})
	if !c.submit(func() {
		c.forget(key)
		close(applied)
	}) {
		return ErrClosed
	}

	select {
	case <-applied:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync returns once every piece of work queued before the call has run.
func (c *Coordinator[K, V]) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	if !c.submit(func() { close(barrier) }) {
		return ErrClosed
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Await blocks until key is no longer Loading and returns its state. It does
// not trigger a fetch by itself; call Request first.
func (c *Coordinator[K, V]) Await(ctx context.Context, key K) (loadstate.State, error) {
	changed := make(chan struct{}, 1)
	cancel := c.notifier.Subscribe(notify.SinkFunc(func(e notify.Event) {
		if e.Kind != notify.StateChanged {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	defer cancel()

	for {
		if err := c.Sync(ctx); err != nil {
			return c.states.Get(key), err
		}

		s := c.states.Effective(key)
		if _, loading := s.(loadstate.Loading); !loading {
			return s, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

// Close stops accepting work, waits for in-flight fetches and drains the work
// queue. Calling Close more than once is safe.
func (c *Coordinator[K, V]) Close() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closing = true
	c.mu.Unlock()

	// Everything queued before closing has to have started its fetches
	// before we can wait on them.
	barrier := make(chan struct{})
	c.enqueue(func() { close(barrier) })
	<-barrier
	c.fetches.Wait()

	c.mu.Lock()
	c.closed = true
	close(c.in)
	c.mu.Unlock()

	<-c.done
	log.Debugf("%s: coordinator closed", c.name)
}

func (c *Coordinator[K, V]) canMutate() error {
	if c.mutator == nil {
		return ErrReadOnly
	}
	if c.isClosing() {
		return ErrClosed
	}
	return nil
}

func (c *Coordinator[K, V]) isClosing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closing
}

// submit queues public work. It fails once Close has been called.
func (c *Coordinator[K, V]) submit(fn func()) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closing {
		return false
	}
	c.in <- fn
	return true
}

// enqueue queues internal work, which is still accepted while closing.
func (c *Coordinator[K, V]) enqueue(fn func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		log.Warnf("%s: work queued after close was dropped", c.name)
		return
	}
	c.in <- fn
}

func (c *Coordinator[K, V]) retrieve(key K, force bool) {
	if !c.submit(func() { c.performRetrieval(key, force) }) {
		log.Debugf("%s: not retrieving %v, coordinator closed", c.name, key)
	}
}

// performRetrieval runs on the work queue goroutine.
func (c *Coordinator[K, V]) performRetrieval(key K, force bool) {
	switch c.states.Effective(key).(type) {
	case loadstate.Loading:
		if force {
			c.dirty[key] = struct{}{}
		}
		return
	case loadstate.Error:
		if !force {
			return
		}
	}

	// Another request may have been satisfied while this one was queued.
	if !force && !c.store.IsStale(key, c.maxAge) {
		return
	}

	c.states.Set(key, loadstate.Loading{})
	log.WithFields(log.Fields{"class": c.name, "key": key, "forced": force}).Debug("fetching")

	c.fetches.Add(1)
	go c.fetch(key)
}

func (c *Coordinator[K, V]) fetch(key K) {
	defer c.fetches.Done()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.fetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.fetchTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}
	defer cancel()

	value, err := c.fetcher.Fetch(ctx, key)
	c.enqueue(func() { c.complete(key, value, err) })
}

// complete runs on the work queue goroutine, exactly once per fetch.
func (c *Coordinator[K, V]) complete(key K, value V, err error) {
	if err != nil {
		log.WithFields(log.Fields{"class": c.name, "key": key}).WithError(err).Debug("fetch failed")
		c.states.Set(key, loadstate.Error{Message: err.Error(), At: c.clock.Now()})
		c.report(err)
	} else {
		c.store.Set(key, value)
		c.states.Set(key, loadstate.Finished{At: c.clock.Now()})
	}

	if _, ok := c.dirty[key]; ok {
		delete(c.dirty, key)
		if !c.isClosing() {
			c.performRetrieval(key, true)
		}
	}
}

// forget runs on the work queue goroutine. A key with a fetch in flight keeps
// its Loading state so the dedup guard still holds, and is marked dirty so a
// refetch after that fetch settles it to what the server now has.
func (c *Coordinator[K, V]) forget(key K) {
	c.store.Remove(key)
	if _, loading := c.states.Get(key).(loadstate.Loading); loading {
		c.dirty[key] = struct{}{}
		return
	}
	delete(c.dirty, key)
	c.states.Remove(key)
}

func (c *Coordinator[K, V]) report(err error) {
	if c.reporter == nil {
		return
	}
	go c.reporter.Report(err)
}
