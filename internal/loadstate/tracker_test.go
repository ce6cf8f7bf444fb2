// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package loadstate

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/staranto/tdctl/internal/notify"
)

func TestTracker_DefaultsToIdle(t *testing.T) {
	tr := NewTracker[string]("test", clock.NewMock(), nil)
	assert.Equal(t, Idle{}, tr.Get("k"))
	assert.Equal(t, Idle{}, tr.Effective("k"))
}

func TestTracker_SetOverwrites(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTracker[string]("test", clk, nil)

	tr.Set("k", Loading{})
	assert.Equal(t, Loading{}, tr.Get("k"))

	tr.Set("k", Finished{At: clk.Now()})
	assert.Equal(t, Finished{At: clk.Now()}, tr.Get("k"))
}

func TestTracker_Cooldown(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		idle    bool
	}{
		{name: "fresh error", elapsed: 0, idle: false},
		{name: "within cooldown", elapsed: 30 * time.Second, idle: false},
		{name: "exactly cooldown", elapsed: Cooldown, idle: false},
		{name: "past cooldown", elapsed: Cooldown + time.Second, idle: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewMock()
			tr := NewTracker[string]("test", clk, nil)
			failed := Error{Message: "boom", At: clk.Now()}
			tr.Set("k", failed)

			clk.Add(tt.elapsed)
			got := tr.Effective("k")

			if tt.idle {
				assert.Equal(t, Idle{}, got)
				assert.Equal(t, Idle{}, tr.Get("k"), "cooldown reset must be stored")
			} else {
				assert.Equal(t, failed, got)
				assert.Equal(t, failed, tr.Get("k"))
			}
		})
	}
}

func TestTracker_CooldownIgnoresOtherStates(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTracker[string]("test", clk, nil)
	done := Finished{At: clk.Now()}
	tr.Set("k", done)

	clk.Add(time.Hour)
	assert.Equal(t, done, tr.Effective("k"))
}

func TestTracker_NotifiesOnResetAndRemove(t *testing.T) {
	clk := clock.NewMock()
	n := notify.New()
	count := 0
	n.Subscribe(notify.SinkFunc(func(e notify.Event) {
		assert.Equal(t, notify.StateChanged, e.Kind)
		count++
	}))

	tr := NewTracker[string]("test", clk, n)
	tr.Set("k", Error{Message: "x", At: clk.Now()})
	clk.Add(2 * Cooldown)
	tr.Effective("k")
	tr.Effective("k")
	tr.Remove("k")
	tr.Remove("k")

	// set, reset, remove
	assert.Equal(t, 3, count)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(Idle{}))
	assert.False(t, IsBusy(Finished{}))
	assert.True(t, IsBusy(Loading{}))
	assert.True(t, IsBusy(Error{}))
}

func TestStateStrings(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "idle", Idle{}.String())
	assert.Equal(t, "loading", Loading{}.String())
	assert.Equal(t, "finished at 2025-01-02T03:04:05Z", Finished{At: at}.String())
	assert.Equal(t, "error at 2025-01-02T03:04:05Z: nope", Error{Message: "nope", At: at}.String())
}
