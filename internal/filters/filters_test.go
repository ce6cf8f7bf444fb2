// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/staranto/tdctl/internal/attrs"
)

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		delimiter string
		want      []Filter
	}{
		{
			name: "empty spec",
			spec: "",
		},
		{
			name: "exact match",
			spec: "title=Daily users",
			want: []Filter{{Key: "title", Operand: "=", Target: "Daily users"}},
		},
		{
			name: "negated prefix",
			spec: "email!^admin",
			want: []Filter{{Key: "email", Operand: "^", Target: "admin", Negate: true}},
		},
		{
			name: "regex",
			spec: "email/@example\\.com$",
			want: []Filter{{Key: "email", Operand: "/", Target: "@example\\.com$"}},
		},
		{
			name: "multiple",
			spec: "isFulfilled=false,sumSignals>1000",
			want: []Filter{
				{Key: "isFulfilled", Operand: "=", Target: "false"},
				{Key: "sumSignals", Operand: ">", Target: "1000"},
			},
		},
		{
			name:      "custom delimiter",
			spec:      "title@a,b;type=funnel",
			delimiter: ";",
			want: []Filter{
				{Key: "title", Operand: "@", Target: "a,b"},
				{Key: "type", Operand: "=", Target: "funnel"},
			},
		},
		{
			name: "invalid entries dropped",
			spec: "nooperand,=novalue,type=funnel",
			want: []Filter{{Key: "type", Operand: "=", Target: "funnel"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TDCTL_FILTER_DELIM", tt.delimiter)
			assert.Equal(t, tt.want, BuildFilters(tt.spec))
		})
	}
}

func TestCheckStringOperand(t *testing.T) {
	tests := []struct {
		value  string
		filter Filter
		want   bool
	}{
		{"funnel", Filter{Operand: "=", Target: "funnel"}, true},
		{"funnel", Filter{Operand: "=", Target: "funnel", Negate: true}, false},
		{"Funnel", Filter{Operand: "~", Target: "funnel"}, true},
		{"timeseries", Filter{Operand: "^", Target: "time"}, true},
		{"b", Filter{Operand: ">", Target: "a"}, true},
		{"b", Filter{Operand: "<", Target: "a"}, false},
		{"a@example.com", Filter{Operand: "@", Target: "example"}, true},
		{"a@example.com", Filter{Operand: "/", Target: "^a@"}, true},
		{"a@example.com", Filter{Operand: "/", Target: "("}, false},
		{"x", Filter{Operand: "?", Target: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.value+tt.filter.Operand+tt.filter.Target, func(t *testing.T) {
			assert.Equal(t, tt.want, checkStringOperand(tt.value, tt.filter))
		})
	}
}

func TestCheckNumericOperand(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		filter Filter
		want   bool
	}{
		{"equal", 42, Filter{Operand: "=", Target: "42"}, true},
		{"not equal", 42, Filter{Operand: "=", Target: "42", Negate: true}, false},
		{"greater", 1500, Filter{Operand: ">", Target: "1000"}, true},
		{"numeric not lexical", 9, Filter{Operand: "<", Target: "10"}, true},
		{"bad target", 9, Filter{Operand: "<", Target: "ten"}, false},
		{"prefix falls back to string", 1234, Filter{Operand: "^", Target: "12"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkNumericOperand(tt.value, tt.filter))
		})
	}
}

func TestCheckContainsOperand(t *testing.T) {
	assert.True(t, checkContainsOperand([]any{"a", "b"}, Filter{Operand: "@", Target: "b"}))
	assert.False(t, checkContainsOperand([]any{"a", "b"}, Filter{Operand: "@", Target: "c"}))
	assert.True(t, checkContainsOperand([]any{"a"}, Filter{Operand: "@", Target: "c", Negate: true}))
	assert.True(t, checkContainsOperand([]any{1.0, 2.0}, Filter{Operand: "@", Target: "2"}))
	assert.True(t, checkContainsOperand(map[string]any{"k": 1}, Filter{Operand: "@", Target: "k"}))
	assert.False(t, checkContainsOperand(map[string]any{"k": 1}, Filter{Operand: "@", Target: "k", Negate: true}))
	assert.False(t, checkContainsOperand(3, Filter{Operand: "@", Target: "3"}))
}

func TestApplyFilters(t *testing.T) {
	row := gjson.Parse(`{
		"name": "Acme",
		"sumSignals": 1500,
		"isSuperOrg": false,
		"email": null,
		"tags": ["beta", "paying"]
	}`)

	al := attrs.AttrList{
		{Key: "name", OutputKey: "name", Include: true},
		{Key: "sumSignals", OutputKey: "signals", Include: true},
		{Key: "isSuperOrg", OutputKey: "isSuperOrg", Include: true},
		{Key: "email", OutputKey: "email", Include: true},
		{Key: "tags", OutputKey: "tags", Include: false},
	}

	tests := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{"no filters", nil, true},
		{"output key maps to json key", []Filter{{Key: "signals", Operand: ">", Target: "1000"}}, true},
		{"bool as string", []Filter{{Key: "isSuperOrg", Operand: "=", Target: "false"}}, true},
		{"null fails", []Filter{{Key: "email", Operand: "=", Target: "x"}}, false},
		{"unknown key skipped", []Filter{{Key: "nope", Operand: "=", Target: "x"}}, true},
		{"hidden attr still filters", []Filter{{Key: "tags", Operand: "@", Target: "paying"}}, true},
		{"one of many fails", []Filter{
			{Key: "name", Operand: "=", Target: "Acme"},
			{Key: "signals", Operand: "<", Target: "10"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyFilters(row, al, tt.filters))
		})
	}
}

func TestFilterDataset(t *testing.T) {
	data := gjson.Parse(`[
		{"email": "a@example.com", "isFulfilled": true,  "meta": {"source": "web"}},
		{"email": "b@example.com", "isFulfilled": false, "meta": {"source": "app"}},
		{"email": "c@other.org",   "isFulfilled": false, "meta": {"source": "web"}}
	]`)

	al := attrs.AttrList{
		{Key: "email", OutputKey: "email", Include: true},
		{Key: "isFulfilled", OutputKey: "fulfilled", Include: true},
		{Key: "meta.source", OutputKey: "source", Include: true},
		{Key: "*", OutputKey: "*", TransformSpec: "u"},
	}

	tests := []struct {
		name       string
		spec       string
		wantEmails []string
	}{
		{"no filter", "", []string{"a@example.com", "b@example.com", "c@other.org"}},
		{"bool", "fulfilled=false", []string{"b@example.com", "c@other.org"}},
		{"nested path", "source=web", []string{"a@example.com", "c@other.org"}},
		{"combined", "source=web,email/example", []string{"a@example.com"}},
		{"none", "email=nobody", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterDataset(data, al, tt.spec)
			assert.Len(t, got, len(tt.wantEmails))
			for i, want := range tt.wantEmails {
				assert.Equal(t, want, got[i]["email"])
				assert.NotContains(t, got[i], "*")
			}
		})
	}
}
