// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/staranto/tdctl/internal/transfer"
)

// DefaultHost is used when neither flag, env nor config names one.
const DefaultHost = "api.telemetrydeck.com"

// Version selects the API generation a path lives under.
type Version string

const (
	V1 Version = "v1"
	V2 Version = "v2"
	V3 Version = "v3"
)

var (
	ErrNoHost  = errors.New("no API host configured")
	ErrNoToken = errors.New("no API token configured")
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 256

// Client talks JSON to the analytics API.
type Client struct {
	base      string
	token     string
	userAgent string
	http      *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled client from go-cleanhttp.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient builds a client for host. A host without a scheme is assumed to
// be https.
func NewClient(host, token string, opts ...Option) (*Client, error) {
	if host == "" {
		return nil, ErrNoHost
	}
	if token == "" {
		return nil, ErrNoToken
	}

	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", host, err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/api/"

	c := &Client{
		base:      base.String(),
		token:     token,
		userAgent: "tdctl",
		http:      cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Token resolves the API token for host. The precedence is:
//  1. TDCTL_TOKEN_<host with dots as underscores>
//  2. TDCTL_TOKEN
//  3. the configured value
func Token(host, configured string) string {
	hostname := strings.ReplaceAll(host, ".", "_")
	if token := os.Getenv("TDCTL_TOKEN_" + hostname); token != "" {
		return token
	}
	if token := os.Getenv("TDCTL_TOKEN"); token != "" {
		return token
	}
	return configured
}

// URLForPath returns the absolute URL of an API path, always with a trailing
// slash. Empty parts are skipped.
func (c *Client) URLForPath(version Version, parts ...string) string {
	segments := []string{string(version)}
	for _, p := range parts {
		if p == "" {
			continue
		}
		segments = append(segments, url.PathEscape(p))
	}

	return c.base + strings.Join(segments, "/") + "/"
}

// Do sends body, JSON encoded, to rawURL and decodes the response into out.
// Either may be nil. Transport, status and decode failures are returned as
// *transfer.Error.
func (c *Client) Do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debugf("%s %s", method, rawURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return &transfer.Error{Kind: transfer.Network, Method: method, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	failed := resp.StatusCode < 200 || resp.StatusCode > 299

	var src io.Reader = resp.Body
	if failed {
		// One byte more than is kept tells bodyError to mark the truncation.
		src = io.LimitReader(resp.Body, maxErrorBody+1)
	}

	var doc bytes.Buffer
	if _, err := doc.ReadFrom(src); err != nil {
		return &transfer.Error{Kind: transfer.Network, Method: method, URL: rawURL, Err: err}
	}

	if failed {
		return transfer.FromStatus(method, rawURL, resp.StatusCode, bodyError(doc.Bytes()))
	}

	if out == nil || doc.Len() == 0 {
		return nil
	}

	if err := json.Unmarshal(doc.Bytes(), out); err != nil {
		return &transfer.Error{Kind: transfer.Decode, Method: method, URL: rawURL, Err: err}
	}

	return nil
}

// bodyError turns the server's explanation of a failure into an error, if it
// gave one. JSON bodies of the form {"reason": "..."} are unwrapped.
func bodyError(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	var reason struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal(b, &reason) == nil && reason.Reason != "" {
		return errors.New(reason.Reason)
	}

	if len(b) > maxErrorBody {
		b = append(b[:maxErrorBody:maxErrorBody], "..."...)
	}
	return errors.New(string(b))
}
