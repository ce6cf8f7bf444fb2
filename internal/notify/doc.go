// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package notify propagates "something changed" events from the entity caches
// to whatever refresh mechanism the presentation layer uses.
package notify
