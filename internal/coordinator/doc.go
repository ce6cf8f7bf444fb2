// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package coordinator decides, per entity class, whether a request is served
// from cache, triggers a deduplicated background fetch, or waits on one that
// is already outstanding.
package coordinator
