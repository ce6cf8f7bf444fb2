// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package cache provides the in-memory entity store that keeps the last known
// value of each remote entity along with the time it was stored.
package cache
