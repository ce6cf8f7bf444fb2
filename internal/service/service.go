// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package service binds the analytics API's entity classes to coordinators.
// Each class gets its own cache, load-state tracker and work queue; all of
// them share one notifier and one error reporter.
package service

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/benbjohnson/clock"

	"github.com/staranto/tdctl/internal/api"
	"github.com/staranto/tdctl/internal/config"
	"github.com/staranto/tdctl/internal/coordinator"
	"github.com/staranto/tdctl/internal/notify"
)

// AllKey is the single key of the list-shaped entity classes.
const AllKey = "all"

// Config holds the freshness window of every class.
type Config struct {
	Insights      time.Duration
	Organizations time.Duration
	BetaRequests  time.Duration
	FetchTimeout  time.Duration
}

// DefaultConfig uses coordinator.DefaultMaxAge for every class.
func DefaultConfig() Config {
	return Config{
		Insights:      coordinator.DefaultMaxAge,
		Organizations: coordinator.DefaultMaxAge,
		BetaRequests:  coordinator.DefaultMaxAge,
		FetchTimeout:  30 * time.Second,
	}
}

// ConfigFromFile overlays the cache.* and timeout keys of the config file on
// DefaultConfig. Unparseable values are logged and ignored.
func ConfigFromFile() Config {
	cfg := DefaultConfig()

	for key, d := range map[string]*time.Duration{
		"cache.insights":      &cfg.Insights,
		"cache.organizations": &cfg.Organizations,
		"cache.betarequests":  &cfg.BetaRequests,
		"timeout":             &cfg.FetchTimeout,
	} {
		v, err := config.GetDuration(key, *d)
		if err != nil {
			log.WithError(err).Warnf("ignoring config key %s", key)
			continue
		}
		*d = v
	}

	return cfg
}

type options struct {
	cfg      Config
	clock    clock.Clock
	notifier *notify.Notifier
	reporter coordinator.Reporter
}

// Option customizes Services.
type Option func(*options)

func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithNotifier sets the notifier every class publishes its changes on. By
// default a notifier delivering on its own goroutine is created and stopped
// by Close.
func WithNotifier(n *notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithReporter sets where fetch failures are sent.
func WithReporter(r coordinator.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// Services is the set of entity classes of one API host.
type Services struct {
	Insights      *Insights
	Organizations *Organizations
	BetaRequests  *BetaRequests

	notifier   *notify.Notifier
	stopNotify func()
}

// New creates the entity classes. ctx bounds every fetch they run.
func New(ctx context.Context, client *api.Client, opts ...Option) *Services {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	stopNotify := func() {}
	if o.notifier == nil {
		// Sinks must not run on the coordinators' work queues.
		var ex notify.Executor
		ex, stopNotify = notify.Serial()
		o.notifier = notify.New(notify.WithExecutor(ex))
	}

	common := func(maxAge time.Duration) []coordinator.Option {
		co := []coordinator.Option{
			coordinator.WithMaxAge(maxAge),
			coordinator.WithFetchTimeout(o.cfg.FetchTimeout),
			coordinator.WithClock(o.clock),
			coordinator.WithNotifier(o.notifier),
		}
		if o.reporter != nil {
			co = append(co, coordinator.WithReporter(o.reporter))
		}
		return co
	}

	return &Services{
		Insights:      newInsights(ctx, client, o.reporter, common(o.cfg.Insights)...),
		Organizations: newOrganizations(ctx, client, common(o.cfg.Organizations)...),
		BetaRequests:  newBetaRequests(ctx, client, common(o.cfg.BetaRequests)...),
		notifier:      o.notifier,
		stopNotify:    stopNotify,
	}
}

// Subscribe registers s for changes of any class.
func (s *Services) Subscribe(sink notify.Sink) (cancel func()) {
	return s.notifier.Subscribe(sink)
}

// Close shuts down every class, waits for in-flight fetches and then for the
// pending change notifications.
func (s *Services) Close() {
	s.Insights.Close()
	s.Organizations.Close()
	s.BetaRequests.Close()
	s.stopNotify()
}
