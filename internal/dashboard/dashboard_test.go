// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package dashboard

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/tdctl/internal/loadstate"
)

type fakeSource struct {
	rows  []Row
	calls int
}

func (f *fakeSource) source() []Row {
	f.calls++
	return f.rows
}

func newTestModel(f *fakeSource, refresh func()) Model {
	m := New("Insights", f.source, refresh, time.Second)
	m.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestView_States(t *testing.T) {
	at := time.Date(2025, 1, 1, 11, 58, 0, 0, time.UTC)
	f := &fakeSource{rows: []Row{
		{Label: "daily", State: loadstate.Finished{At: at}, Content: "42 users", HasValue: true},
		{Label: "weekly", State: loadstate.Loading{}},
		{Label: "monthly", State: loadstate.Error{Message: "unauthorized", At: at}},
		{Label: "yearly", State: loadstate.Idle{}},
	}}

	view := newTestModel(f, nil).View()

	assert.Contains(t, view, "Insights")
	assert.Contains(t, view, "updated 2 minutes ago")
	assert.Contains(t, view, "42 users")
	assert.Contains(t, view, "loading")
	assert.Contains(t, view, "✗ unauthorized")
	assert.Contains(t, view, "idle")
	assert.Contains(t, view, "q quit")
}

func TestUpdate_ChangedRereadsSource(t *testing.T) {
	f := &fakeSource{rows: []Row{{Label: "a", State: loadstate.Loading{}}}}
	m := newTestModel(f, nil)
	require.Equal(t, 1, f.calls)

	f.rows = []Row{{Label: "a", State: loadstate.Finished{}, Content: "done", HasValue: true}}
	next, cmd := m.Update(changedMsg{})
	assert.Nil(t, cmd)
	assert.Equal(t, 2, f.calls)
	assert.Contains(t, next.View(), "done")
}

func TestUpdate_TickReschedules(t *testing.T) {
	f := &fakeSource{}
	m := newTestModel(f, nil)

	_, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, 2, f.calls)
}

func TestUpdate_Keys(t *testing.T) {
	refreshed := 0
	f := &fakeSource{}
	m := newTestModel(f, func() { refreshed++ })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, refreshed)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestUpdate_WindowWraps(t *testing.T) {
	f := &fakeSource{rows: []Row{{Label: "a", State: loadstate.Finished{}, Content: "one two three four five six", HasValue: true}}}
	m := newTestModel(f, nil)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 14, Height: 10})
	assert.Equal(t, 14, next.(Model).width)
	assert.Contains(t, next.View(), "\n    one two")
}
