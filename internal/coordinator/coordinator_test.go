// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/tdctl/internal/loadstate"
	"github.com/staranto/tdctl/internal/transfer"
)

type result struct {
	value string
	err   error
}

// fakeGateway hands out queued results to Fetch calls and records every call.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []string
	results chan result
	started chan string

	createKey string
	createErr error
	updateErr error
	deleteErr error
	deleted   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		results: make(chan result, 16),
		started: make(chan string, 16),
	}
}

func (g *fakeGateway) Fetch(ctx context.Context, key string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, key)
	g.mu.Unlock()
	g.started <- key

	select {
	case r := <-g.results:
		return r.value, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *fakeGateway) Create(_ context.Context, _ string) (string, error) {
	return g.createKey, g.createErr
}

func (g *fakeGateway) Update(_ context.Context, _ string, value string) (string, error) {
	if g.updateErr != nil {
		return "", g.updateErr
	}
	return value, nil
}

func (g *fakeGateway) Delete(_ context.Context, key string) error {
	if g.deleteErr != nil {
		return g.deleteErr
	}
	g.mu.Lock()
	g.deleted = append(g.deleted, key)
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) succeed(v string) { g.results <- result{value: v} }
func (g *fakeGateway) fail(err error)   { g.results <- result{err: err} }

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// readOnlyGateway only fetches.
type readOnlyGateway struct{ g *fakeGateway }

func (r readOnlyGateway) Fetch(ctx context.Context, key string) (string, error) {
	return r.g.Fetch(ctx, key)
}

func newTestCoordinator(t *testing.T, f Fetcher[string, string], opts ...Option) (*Coordinator[string, string], *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	opts = append([]Option{
		WithClock(clk),
		WithMaxAge(time.Minute),
		WithFetchTimeout(2 * time.Second),
	}, opts...)
	c := New[string, string](context.Background(), "test", f, opts...)
	t.Cleanup(c.Close)
	return c, clk
}

func settle(t *testing.T, c *Coordinator[string, string]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Sync(ctx))
}

func await(t *testing.T, c *Coordinator[string, string], key string) loadstate.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.Await(ctx, key)
	require.NoError(t, err)
	return s
}

// load runs a full successful fetch cycle for key.
func load(t *testing.T, c *Coordinator[string, string], g *fakeGateway, key, value string) {
	t.Helper()
	c.Request(key)
	g.succeed(value)
	require.IsType(t, loadstate.Finished{}, await(t, c, key))
}

func TestScenarioA_AbsentKey(t *testing.T) {
	g := newFakeGateway()
	c, clk := newTestCoordinator(t, g)

	assert.Equal(t, loadstate.Idle{}, c.EffectiveState("k"))

	v, ok := c.Request("k")
	assert.False(t, ok)
	assert.Empty(t, v)

	settle(t, c)
	assert.Equal(t, loadstate.Loading{}, c.EffectiveState("k"))

	g.succeed("V1")
	assert.Equal(t, loadstate.Finished{At: clk.Now()}, await(t, c, "k"))

	v, ok = c.Request("k")
	assert.True(t, ok)
	assert.Equal(t, "V1", v)
	assert.Equal(t, 1, g.callCount())
}

func TestScenarioB_StaleEntryIsServedAndRefetched(t *testing.T) {
	g := newFakeGateway()
	c, clk := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	clk.Add(120 * time.Second)

	v, ok := c.Request("k")
	assert.True(t, ok)
	assert.Equal(t, "V0", v, "stale value is returned immediately")

	settle(t, c)
	assert.Equal(t, loadstate.Loading{}, c.EffectiveState("k"))

	g.succeed("V2")
	await(t, c, "k")

	v, ok = c.Request("k")
	assert.True(t, ok)
	assert.Equal(t, "V2", v)
	assert.Equal(t, 2, g.callCount())
}

func TestScenarioC_ErrorCooldown(t *testing.T) {
	g := newFakeGateway()
	c, clk := newTestCoordinator(t, g)

	c.Request("k")
	g.fail(&transfer.Error{Kind: transfer.Network, Err: errors.New("connection refused")})
	s := await(t, c, "k")
	require.IsType(t, loadstate.Error{}, s)
	assert.Contains(t, s.(loadstate.Error).Message, "connection refused")

	clk.Add(30 * time.Second)
	_, ok := c.Request("k")
	assert.False(t, ok)
	settle(t, c)
	assert.Equal(t, 1, g.callCount(), "no refetch within cooldown")
	assert.IsType(t, loadstate.Error{}, c.EffectiveState("k"))

	clk.Add(31 * time.Second)
	c.Request("k")
	settle(t, c)
	assert.Equal(t, loadstate.Loading{}, c.EffectiveState("k"))

	g.succeed("V1")
	await(t, c, "k")
	assert.Equal(t, 2, g.callCount())
}

func TestScenarioD_ConcurrentRequestsFetchOnce(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Request("k")
		}()
	}
	wg.Wait()
	settle(t, c)

	g.succeed("V1")
	await(t, c, "k")
	c.Close()

	assert.Equal(t, 1, g.callCount())
}

func TestDedup_RequestsWhileLoading(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)

	c.Request("k")
	settle(t, c)
	for i := 0; i < 5; i++ {
		_, ok := c.Request("k")
		assert.False(t, ok)
	}
	settle(t, c)

	g.succeed("V1")
	await(t, c, "k")
	c.Close()

	assert.Equal(t, 1, g.callCount())
}

func TestFreshness_Boundary(t *testing.T) {
	g := newFakeGateway()
	c, clk := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	clk.Add(time.Minute)
	v, _ := c.Request("k")
	settle(t, c)
	assert.Equal(t, "V0", v)
	assert.Equal(t, 1, g.callCount(), "entry exactly maxAge old is fresh")

	clk.Add(time.Second)
	c.Request("k")
	settle(t, c)
	assert.Equal(t, loadstate.Loading{}, c.EffectiveState("k"))

	g.succeed("V1")
	await(t, c, "k")
	assert.Equal(t, 2, g.callCount())
}

func TestFailure_LeavesStoreUntouched(t *testing.T) {
	reported := make(chan error, 1)
	g := newFakeGateway()
	c, clk := newTestCoordinator(t, g, WithReporter(ReporterFunc(func(err error) { reported <- err })))
	load(t, c, g, "k", "V0")
	before, _ := c.Peek("k")

	clk.Add(2 * time.Minute)
	c.Request("k")
	boom := transfer.FromStatus("GET", "https://x/api/v2/insights/k/", 500, nil)
	g.fail(boom)

	assert.Equal(t, loadstate.Error{Message: boom.Error(), At: clk.Now()}, await(t, c, "k"))

	after, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, before, after)

	v, ok := c.Request("k")
	assert.True(t, ok)
	assert.Equal(t, "V0", v, "stale data stays visible during cooldown")

	select {
	case err := <-reported:
		assert.ErrorIs(t, err, transfer.ErrStatus)
	case <-time.After(5 * time.Second):
		t.Fatal("error was not reported")
	}
}

func TestUpdate_ForcesRefetchOfFreshEntry(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	g.succeed("V1-server")
	updated, err := c.Update(context.Background(), "k", "V1")
	require.NoError(t, err)
	assert.Equal(t, "V1", updated)

	await(t, c, "k")
	v, _ := c.Request("k")
	assert.Equal(t, "V1-server", v)
	assert.Equal(t, 2, g.callCount())
}

func TestUpdate_FailureIsReturnedNotRecorded(t *testing.T) {
	g := newFakeGateway()
	c, clk := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	g.updateErr = transfer.FromStatus("PATCH", "https://x", 403, nil)
	_, err := c.Update(context.Background(), "k", "V1")
	assert.ErrorIs(t, err, transfer.ErrForbidden)

	settle(t, c)
	assert.Equal(t, loadstate.Finished{At: clk.Now()}, c.EffectiveState("k"))
	assert.Equal(t, 1, g.callCount())
}

func TestUpdate_SucceedsButRefetchFails(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	g.fail(&transfer.Error{Kind: transfer.Network})
	updated, err := c.Update(context.Background(), "k", "V1")
	require.NoError(t, err)
	assert.Equal(t, "V1", updated)

	assert.IsType(t, loadstate.Error{}, await(t, c, "k"))
	v, ok := c.Request("k")
	assert.True(t, ok)
	assert.Equal(t, "V0", v)
}

func TestRefresh_WhileLoadingRefetchesAfterCompletion(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)

	c.Request("k")
	settle(t, c)
	c.Refresh("k")
	settle(t, c)
	assert.Equal(t, 1, g.callCount())

	g.succeed("before-mutation")
	<-g.started
	<-g.started
	g.succeed("after-mutation")
	await(t, c, "k")

	v, _ := c.Request("k")
	assert.Equal(t, "after-mutation", v)
	assert.Equal(t, 2, g.callCount())
}

func TestRefresh_BypassesCooldown(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)

	c.Request("k")
	g.fail(errors.New("boom"))
	require.IsType(t, loadstate.Error{}, await(t, c, "k"))

	c.Refresh("k")
	g.succeed("V1")
	settle(t, c)
	assert.IsType(t, loadstate.Finished{}, await(t, c, "k"))
	assert.Equal(t, 2, g.callCount())
}

func TestCreate_FetchesNewKey(t *testing.T) {
	g := newFakeGateway()
	g.createKey = "new"
	c, _ := newTestCoordinator(t, g)

	g.succeed("created")
	key, err := c.Create(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, "new", key)

	await(t, c, "new")
	v, ok := c.Request("new")
	assert.True(t, ok)
	assert.Equal(t, "created", v)
}

func TestCreate_Failure(t *testing.T) {
	g := newFakeGateway()
	g.createErr = errors.New("nope")
	c, _ := newTestCoordinator(t, g)

	_, err := c.Create(context.Background(), "draft")
	assert.EqualError(t, err, "nope")
	settle(t, c)
	assert.Equal(t, 0, g.callCount())
}

func TestDelete_RemovesFromBothMaps(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	require.NoError(t, c.Delete(context.Background(), "k"))

	_, ok := c.Peek("k")
	assert.False(t, ok)
	assert.Equal(t, loadstate.Idle{}, c.EffectiveState("k"))
	assert.Equal(t, []string{"k"}, g.deleted)
}

func TestDelete_WhileLoadingRefetchesAfterCompletion(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	c.Refresh("k")
	settle(t, c)
	require.NoError(t, c.Delete(context.Background(), "k"))

	_, ok := c.Peek("k")
	assert.False(t, ok)
	assert.Equal(t, loadstate.Loading{}, c.EffectiveState("k"))

	// The fetch that started before the delete still completes with the old
	// value; the refetch that follows sees the entity is gone.
	g.succeed("V0-stale")
	g.fail(errors.New("404 not found"))

	s := await(t, c, "k")
	require.IsType(t, loadstate.Error{}, s)
	assert.Contains(t, s.(loadstate.Error).Message, "not found")
	assert.Equal(t, 3, g.callCount())
}

func TestDelete_Failure(t *testing.T) {
	g := newFakeGateway()
	g.deleteErr = errors.New("nope")
	c, _ := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	assert.EqualError(t, c.Delete(context.Background(), "k"), "nope")
	_, ok := c.Peek("k")
	assert.True(t, ok)
}

func TestReadOnly(t *testing.T) {
	c, _ := newTestCoordinator(t, readOnlyGateway{newFakeGateway()})

	_, err := c.Create(context.Background(), "x")
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = c.Update(context.Background(), "k", "x")
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, c.Delete(context.Background(), "k"), ErrReadOnly)
}

func TestClose(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)
	load(t, c, g, "k", "V0")

	c.Close()
	c.Close()

	assert.ErrorIs(t, c.Sync(context.Background()), ErrClosed)
	assert.NotPanics(t, func() { c.Request("other") })
	_, err := c.Update(context.Background(), "k", "V1")
	assert.ErrorIs(t, err, ErrClosed)

	v, ok := c.Request("k")
	assert.True(t, ok, "cached data is still readable after close")
	assert.Equal(t, "V0", v)
}

func TestClose_WaitsForInFlightFetch(t *testing.T) {
	g := newFakeGateway()
	c, _ := newTestCoordinator(t, g)

	c.Request("k")
	<-g.started

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned with a fetch in flight")
	case <-time.After(50 * time.Millisecond):
	}

	g.succeed("V1")
	<-closed

	e, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, "V1", e.Value)
}
