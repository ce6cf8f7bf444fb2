// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"

	"github.com/staranto/tdctl/internal/api"
	"github.com/staranto/tdctl/internal/coordinator"
	"github.com/staranto/tdctl/internal/dto"
)

const ClassOrganizations = "organizations"

// Organizations caches the organization administration list under AllKey.
// The class is read-only.
type Organizations struct {
	*coordinator.Coordinator[string, []dto.OrganizationAdminEntry]
}

func newOrganizations(ctx context.Context, client *api.Client, opts ...coordinator.Option) *Organizations {
	res := api.NewResource[string, []dto.OrganizationAdminEntry](client, api.V1, "organizationadmin")
	res.KeyString = collectionKey

	return &Organizations{
		Coordinator: coordinator.New[string, []dto.OrganizationAdminEntry](ctx, ClassOrganizations, res.ReadOnly(), opts...),
	}
}

// Entries returns the cached list, scheduling a fetch when it is missing or
// stale.
func (s *Organizations) Entries() ([]dto.OrganizationAdminEntry, bool) {
	return s.Request(AllKey)
}

// collectionKey addresses the collection itself for the AllKey.
func collectionKey(key string) string {
	if key == AllKey {
		return ""
	}
	return key
}
