// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package loadstate tracks where each entity is in its load cycle so the
// presentation layer can choose between a spinner, content and an error.
package loadstate

import (
	"fmt"
	"time"
)

// State is one of Idle, Loading, Finished or Error.
type State interface {
	fmt.Stringer
	state()
}

// Idle means no fetch was attempted yet, or the key was reset.
type Idle struct{}

// Loading means a fetch is in flight.
type Loading struct{}

// Finished means the most recent fetch succeeded At.
type Finished struct {
	At time.Time
}

// Error means the most recent fetch failed At with Message.
type Error struct {
	Message string
	At      time.Time
}

func (Idle) state()     {}
func (Loading) state()  {}
func (Finished) state() {}
func (Error) state()    {}

func (Idle) String() string    { return "idle" }
func (Loading) String() string { return "loading" }

func (f Finished) String() string {
	return "finished at " + f.At.Format(time.RFC3339)
}

func (e Error) String() string {
	return fmt.Sprintf("error at %s: %s", e.At.Format(time.RFC3339), e.Message)
}

// IsBusy reports whether s blocks a new automatic fetch.
func IsBusy(s State) bool {
	switch s.(type) {
	case Loading, Error:
		return true
	}
	return false
}
