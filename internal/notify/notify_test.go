// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_FanOut(t *testing.T) {
	n := New()

	var a, b []Event
	n.Subscribe(SinkFunc(func(e Event) { a = append(a, e) }))
	n.Subscribe(SinkFunc(func(e Event) { b = append(b, e) }))

	n.Notify(Event{Source: "insights", Key: "k1", Kind: EntryStored})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, "k1", a[0].Key)
	assert.Equal(t, EntryStored, b[0].Kind)
}

func TestNotifier_Cancel(t *testing.T) {
	n := New()

	count := 0
	cancel := n.Subscribe(SinkFunc(func(Event) { count++ }))
	n.Notify(Event{})
	cancel()
	n.Notify(Event{})

	assert.Equal(t, 1, count)
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.Notify(Event{})
		n.Subscribe(SinkFunc(func(Event) {}))()
	})
}

func TestNotifier_CustomExecutor(t *testing.T) {
	var queued []func()
	n := New(WithExecutor(func(fn func()) { queued = append(queued, fn) }))

	got := 0
	n.Subscribe(SinkFunc(func(Event) { got++ }))
	n.Notify(Event{})

	assert.Equal(t, 0, got, "delivery must wait for the executor")
	require.Len(t, queued, 1)
	queued[0]()
	assert.Equal(t, 1, got)
}

func TestSerial_PreservesOrder(t *testing.T) {
	ex, stop := Serial()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		ex(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	stop()

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSerial_DropsAfterStop(t *testing.T) {
	ex, stop := Serial()
	n := New(WithExecutor(ex))

	count := 0
	n.Subscribe(SinkFunc(func(Event) { count++ }))
	n.Notify(Event{})
	stop()

	assert.NotPanics(t, func() {
		n.Notify(Event{})
		stop()
	})
	assert.Equal(t, 1, count)
}

func TestDebounce_CoalescesBurst(t *testing.T) {
	calls := make(chan Event, 10)
	s := Debounce(20*time.Millisecond, SinkFunc(func(e Event) { calls <- e }))

	for i := 0; i < 5; i++ {
		s.Notify(Event{Key: i})
	}

	select {
	case e := <-calls:
		assert.Equal(t, 4, e.Key)
	case <-time.After(time.Second):
		t.Fatal("debounced sink was never called")
	}

	select {
	case e := <-calls:
		t.Fatalf("unexpected second call: %v", e)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebounce_ZeroIsPassthrough(t *testing.T) {
	inner := SinkFunc(func(Event) {})
	assert.NotNil(t, Debounce(0, inner))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "stored", EntryStored.String())
	assert.Equal(t, "removed", EntryRemoved.String())
	assert.Equal(t, "state", StateChanged.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
