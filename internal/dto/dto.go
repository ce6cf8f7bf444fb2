// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package dto holds the wire representations exchanged with the analytics
// API. Field names follow the API's camelCase JSON.
package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type InsightType string

const (
	InsightTimeseries  InsightType = "timeseries"
	InsightTopN        InsightType = "topN"
	InsightCustomQuery InsightType = "customQuery"
	InsightFunnel      InsightType = "funnel"
	InsightExperiment  InsightType = "experiment"
)

// Insight is a saved query plus the hints for displaying its result.
type Insight struct {
	ID      uuid.UUID `json:"id"`
	GroupID uuid.UUID `json:"groupID"`

	// Order in which insights appear when not expanded.
	Order *float64    `json:"order,omitempty"`
	Title string      `json:"title"`
	Type  InsightType `json:"type"`

	SignalType   *string `json:"signalType,omitempty"`
	UniqueUser   bool    `json:"uniqueUser"`
	BreakdownKey *string `json:"breakdownKey,omitempty"`
	GroupBy      *string `json:"groupBy,omitempty"`
	DisplayMode  string  `json:"displayMode"`
	IsExpanded   bool    `json:"isExpanded"`

	// LastRunTime is how long the last calculation took, in seconds.
	LastRunTime *float64   `json:"lastRunTime,omitempty"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`

	// Query is passed through untouched.
	Query json.RawMessage `json:"query,omitempty"`
}

// OrganizationAdminEntry is one row of the organization administration list.
type OrganizationAdminEntry struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	FoundedAt  time.Time `json:"foundedAt"`
	SumSignals int64     `json:"sumSignals"`
	IsSuperOrg bool      `json:"isSuperOrg"`
	Email      string    `json:"email,omitempty"`
}

// BetaRequest is a request for access to the beta program.
type BetaRequest struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	RegistrationToken string     `json:"registrationToken"`
	RequestedAt       time.Time  `json:"requestedAt"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	IsFulfilled       bool       `json:"isFulfilled"`
}

// BetaRequestUpdateBody is the payload for changing a beta request.
type BetaRequestUpdateBody struct {
	SentAt      *time.Time `json:"sentAt"`
	IsFulfilled bool       `json:"isFulfilled"`
}

// Toggled returns the body that flips the fulfilled flag of r and keeps its
// sent date.
func (r BetaRequest) Toggled() BetaRequestUpdateBody {
	return BetaRequestUpdateBody{SentAt: r.SentAt, IsFulfilled: !r.IsFulfilled}
}
