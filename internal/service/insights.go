// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/staranto/tdctl/internal/api"
	"github.com/staranto/tdctl/internal/coordinator"
	"github.com/staranto/tdctl/internal/dto"
)

const ClassInsights = "insights"

// Insights caches insights by id. Request, Refresh, Create, Update and Delete
// come from the embedded coordinator.
type Insights struct {
	*coordinator.Coordinator[uuid.UUID, dto.Insight]

	client   *api.Client
	reporter coordinator.Reporter
}

func newInsights(ctx context.Context, client *api.Client, reporter coordinator.Reporter, opts ...coordinator.Option) *Insights {
	res := api.NewResource[uuid.UUID, dto.Insight](client, api.V2, "insights")
	res.KeyOf = func(i dto.Insight) (uuid.UUID, bool) {
		return i.ID, i.ID != uuid.Nil
	}

	return &Insights{
		Coordinator: coordinator.New[uuid.UUID, dto.Insight](ctx, ClassInsights, res, opts...),
		client:      client,
		reporter:    reporter,
	}
}

// WidgetableInsightIDs lists the insights marked as usable in widgets. It is
// not cached. On failure the error is reported and the list is empty.
func (s *Insights) WidgetableInsightIDs(ctx context.Context) []uuid.UUID {
	var ids []uuid.UUID
	url := s.client.URLForPath(api.V2, "insights", "widgetableInsightIDs")
	if err := s.client.Do(ctx, http.MethodGet, url, nil, &ids); err != nil {
		if s.reporter != nil {
			s.reporter.Report(err)
		}
		return []uuid.UUID{}
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids
}
