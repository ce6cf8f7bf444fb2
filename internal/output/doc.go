// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package output turns cached entities into what the user sees: filtered,
// transformed and sorted rows rendered as a table, JSON, YAML or the raw
// API document.
package output
