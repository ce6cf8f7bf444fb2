// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package errorsvc is the central sink for transfer failures. It logs them
// and lets the host react to authentication problems.
package errorsvc

import (
	"errors"
	"sync"

	"github.com/apex/log"

	"github.com/staranto/tdctl/internal/transfer"
)

// Service receives errors from every entity class.
type Service struct {
	logger         log.Interface
	onUnauthorized func(error)

	mu     sync.Mutex
	last   error
	counts map[transfer.Kind]int
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger replaces the default apex logger.
func WithLogger(l log.Interface) Option {
	return func(s *Service) { s.logger = l }
}

// OnUnauthorized registers fn to be called for 401 and 403 responses, for
// example to tell the user to refresh their token.
func OnUnauthorized(fn func(error)) Option {
	return func(s *Service) { s.onUnauthorized = fn }
}

func New(opts ...Option) *Service {
	s := &Service{
		logger: log.Log,
		counts: make(map[transfer.Kind]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report records err. It never fails and returns quickly.
func (s *Service) Report(err error) {
	if err == nil {
		return
	}

	kind := transfer.KindOf(err)

	s.mu.Lock()
	s.last = err
	s.counts[kind]++
	s.mu.Unlock()

	fields := log.Fields{"kind": kind.String()}
	var te *transfer.Error
	if errors.As(err, &te) && te.StatusCode != 0 {
		fields["status"] = te.StatusCode
	}
	entry := s.logger.WithFields(fields).WithError(err)

	switch kind {
	case transfer.Unauthorized, transfer.Forbidden:
		entry.Error("request rejected, check the API token")
		if s.onUnauthorized != nil {
			s.onUnauthorized(err)
		}
	case transfer.Decode:
		entry.Error("response did not match the expected schema")
	default:
		entry.Warn("request failed")
	}
}

// Last returns the most recently reported error.
func (s *Service) Last() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Count returns how many errors of kind were reported. Kind 0 counts errors
// that are not transfer errors.
func (s *Service) Count(kind transfer.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}
