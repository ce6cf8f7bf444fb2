// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package transfer defines the errors produced while talking to the remote
// API. The set of kinds is closed.
package transfer

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a transfer failure.
type Kind int

const (
	// Network covers connectivity problems: DNS, refused connections,
	// timeouts, broken bodies.
	Network Kind = iota + 1
	// Status is any non-2xx response that is not 401 or 403.
	Status
	// Decode means the body did not match the expected schema.
	Decode
	Unauthorized
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Status:
		return "status"
	case Decode:
		return "decode"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Sentinel errors, one per Kind, so callers can use errors.Is.
var (
	ErrNetwork      = errors.New("network failure")
	ErrStatus       = errors.New("unexpected server response")
	ErrDecode       = errors.New("failed to decode response")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Error is a failed request to the remote API.
type Error struct {
	Kind       Kind
	StatusCode int
	Method     string
	URL        string
	Err        error
}

func (e *Error) Error() string {
	msg := e.sentinel().Error()
	if e.Kind == Status {
		msg = fmt.Sprintf("%s (%d %s)", msg, e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Method != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Method, e.URL, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case Network:
		return ErrNetwork
	case Status:
		return ErrStatus
	case Decode:
		return ErrDecode
	case Unauthorized:
		return ErrUnauthorized
	case Forbidden:
		return ErrForbidden
	}
	return ErrStatus
}

// FromStatus builds the error for a non-2xx response code.
func FromStatus(method, url string, code int, body error) *Error {
	kind := Status
	switch code {
	case http.StatusUnauthorized:
		kind = Unauthorized
	case http.StatusForbidden:
		kind = Forbidden
	}
	return &Error{Kind: kind, StatusCode: code, Method: method, URL: url, Err: body}
}

// KindOf returns the Kind of err, or 0 if err is not a transfer error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
