// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var ErrNoKey = errors.New("created entity carries no key")

// Resource is a REST collection of V keyed by K, living at
// <base>/api/<version>/<path>/<key>/. It satisfies the fetch and mutation
// gateway contracts of the coordinator.
type Resource[K comparable, V any] struct {
	client  *Client
	version Version
	path    []string

	// KeyString renders a key as a path segment. An empty result addresses
	// the collection itself.
	KeyString func(K) string

	// KeyOf extracts the key from an entity returned by a create.
	KeyOf func(V) (K, bool)
}

// NewResource returns a resource for path under version. Keys are rendered
// with fmt.Sprint unless KeyString is set.
func NewResource[K comparable, V any](c *Client, version Version, path ...string) *Resource[K, V] {
	return &Resource[K, V]{
		client:    c,
		version:   version,
		path:      path,
		KeyString: func(k K) string { return fmt.Sprint(k) },
	}
}

// URL returns the URL of key.
func (r *Resource[K, V]) URL(key K) string {
	return r.client.URLForPath(r.version, append(append([]string{}, r.path...), r.KeyString(key))...)
}

func (r *Resource[K, V]) collectionURL() string {
	return r.client.URLForPath(r.version, r.path...)
}

// Fetch GETs key.
func (r *Resource[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	var v V
	if err := r.client.Do(ctx, http.MethodGet, r.URL(key), nil, &v); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// Create POSTs value to the collection and returns the key of the created
// entity.
func (r *Resource[K, V]) Create(ctx context.Context, value V) (K, error) {
	var (
		zero    K
		created V
	)
	if err := r.client.Do(ctx, http.MethodPost, r.collectionURL(), value, &created); err != nil {
		return zero, err
	}

	if r.KeyOf == nil {
		return zero, ErrNoKey
	}
	key, ok := r.KeyOf(created)
	if !ok {
		return zero, ErrNoKey
	}
	return key, nil
}

// Update PATCHes key with value. When the server answers without a body the
// sent value is returned.
func (r *Resource[K, V]) Update(ctx context.Context, key K, value V) (V, error) {
	updated := value
	if err := r.client.Do(ctx, http.MethodPatch, r.URL(key), value, &updated); err != nil {
		var zero V
		return zero, err
	}
	return updated, nil
}

// Delete DELETEs key.
func (r *Resource[K, V]) Delete(ctx context.Context, key K) error {
	return r.client.Do(ctx, http.MethodDelete, r.URL(key), nil, nil)
}

// ReadOnly hides the mutation methods so a coordinator built on the result
// rejects creates, updates and deletes.
func (r *Resource[K, V]) ReadOnly() *Reader[K, V] {
	return &Reader[K, V]{r: r}
}

// Reader is a Resource that can only be fetched.
type Reader[K comparable, V any] struct {
	r *Resource[K, V]
}

func (rd *Reader[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	return rd.r.Fetch(ctx, key)
}
