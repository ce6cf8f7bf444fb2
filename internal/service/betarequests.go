// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/staranto/tdctl/internal/api"
	"github.com/staranto/tdctl/internal/coordinator"
	"github.com/staranto/tdctl/internal/dto"
	"github.com/staranto/tdctl/internal/loadstate"
	"github.com/staranto/tdctl/internal/notify"
)

const ClassBetaRequests = "betarequests"

// BetaRequests caches the beta request list under AllKey. Individual requests
// are changed through dedicated endpoints, after which the list is refetched.
type BetaRequests struct {
	list   *coordinator.Coordinator[string, []dto.BetaRequest]
	client *api.Client
}

func newBetaRequests(ctx context.Context, client *api.Client, opts ...coordinator.Option) *BetaRequests {
	res := api.NewResource[string, []dto.BetaRequest](client, api.V1, "betarequests")
	res.KeyString = collectionKey

	return &BetaRequests{
		list:   coordinator.New[string, []dto.BetaRequest](ctx, ClassBetaRequests, res.ReadOnly(), opts...),
		client: client,
	}
}

// List returns the cached list, scheduling a fetch when it is missing or
// stale.
func (s *BetaRequests) List() ([]dto.BetaRequest, bool) {
	return s.list.Request(AllKey)
}

// Find looks id up in the cached list without fetching.
func (s *BetaRequests) Find(id uuid.UUID) (dto.BetaRequest, bool) {
	entry, ok := s.list.Peek(AllKey)
	if !ok {
		return dto.BetaRequest{}, false
	}
	for _, r := range entry.Value {
		if r.ID == id {
			return r, true
		}
	}
	return dto.BetaRequest{}, false
}

// Refresh refetches the list.
func (s *BetaRequests) Refresh() {
	s.list.Refresh(AllKey)
}

func (s *BetaRequests) State() loadstate.State {
	return s.list.EffectiveState(AllKey)
}

// Await blocks until the list is no longer loading.
func (s *BetaRequests) Await(ctx context.Context) (loadstate.State, error) {
	return s.list.Await(ctx, AllKey)
}

func (s *BetaRequests) Subscribe(sink notify.Sink) (cancel func()) {
	return s.list.Subscribe(sink)
}

func (s *BetaRequests) Close() {
	s.list.Close()
}

// Update changes the sent date and fulfilled flag of request id.
func (s *BetaRequests) Update(ctx context.Context, id uuid.UUID, body dto.BetaRequestUpdateBody) error {
	url := s.client.URLForPath(api.V1, "betarequests", id.String())
	return s.mutate(ctx, "update", http.MethodPatch, url, body)
}

// Delete removes request id.
func (s *BetaRequests) Delete(ctx context.Context, id uuid.UUID) error {
	url := s.client.URLForPath(api.V1, "betarequests", id.String())
	return s.mutate(ctx, "delete", http.MethodDelete, url, nil)
}

// SendEmail asks the server to (re)send the invitation email for request id.
func (s *BetaRequests) SendEmail(ctx context.Context, id uuid.UUID) error {
	url := s.client.URLForPath(api.V1, "betarequests", id.String(), "send_email")
	return s.mutate(ctx, "send email", http.MethodPost, url, nil)
}

func (s *BetaRequests) mutate(ctx context.Context, op, method, url string, body any) error {
	if err := s.client.Do(ctx, method, url, body, nil); err != nil {
		return fmt.Errorf("failed to %s beta request: %w", op, err)
	}
	log.Debugf("%s: %s succeeded, refreshing list", ClassBetaRequests, op)
	s.Refresh()
	return nil
}

// Partition splits requests the way they are worked through: not yet
// emailed, emailed but not fulfilled, and fulfilled.
func Partition(requests []dto.BetaRequest) (unfulfilled, emailSent, fulfilled []dto.BetaRequest) {
	for _, r := range requests {
		switch {
		case r.IsFulfilled:
			fulfilled = append(fulfilled, r)
		case r.SentAt != nil:
			emailSent = append(emailSent, r)
		default:
			unfulfilled = append(unfulfilled, r)
		}
	}
	return
}
