// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server provides the per-request call context shared by the
// transport adapters and the agent executors of the A2A runtime.
package server

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// ExtensionsHeader is the HTTP header that carries the extension URIs a client requests.
const ExtensionsHeader = "X-A2A-Extensions"

// CallContext represents the context of one incoming call.
// It carries a free-form state bag plus the extensions requested by the
// client and the extensions an executor activated while serving it.
// CallContext is safe for concurrent use.
type CallContext struct {
	mu        sync.RWMutex
	state     map[string]any
	requested map[string]struct{}
	activated map[string]struct{}
}

// NewCallContext creates a CallContext with the given initial state and requested extensions.
// The state map is copied.
func NewCallContext(state map[string]any, requestedExtensions ...string) *CallContext {
	cc := &CallContext{
		state:     make(map[string]any, len(state)),
		requested: make(map[string]struct{}, len(requestedExtensions)),
		activated: make(map[string]struct{}),
	}
	maps.Copy(cc.state, state)
	for _, uri := range requestedExtensions {
		if uri = strings.TrimSpace(uri); uri != "" {
			cc.requested[uri] = struct{}{}
		}
	}
	return cc
}

// State returns a copy of the current state map.
func (cc *CallContext) State() map[string]any {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return maps.Clone(cc.state)
}

// SetState sets a value in the state bag.
func (cc *CallContext) SetState(key string, value any) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.state[key] = value
}

// GetState retrieves a value from the state bag.
func (cc *CallContext) GetState(key string) (any, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	value, ok := cc.state[key]
	return value, ok
}

// DeleteState removes a key from the state bag.
func (cc *CallContext) DeleteState(key string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.state, key)
}

// RequestedExtensions returns the sorted extension URIs requested by the client.
func (cc *CallContext) RequestedExtensions() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return slices.Sorted(maps.Keys(cc.requested))
}

// ExtensionRequested reports whether the client asked for the extension uri.
func (cc *CallContext) ExtensionRequested(uri string) bool {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	_, ok := cc.requested[uri]
	return ok
}

// ActivateExtension records that uri was activated for this call.
func (cc *CallContext) ActivateExtension(uri string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.activated[uri] = struct{}{}
}

// ActivatedExtensions returns the sorted extension URIs activated for this call.
func (cc *CallContext) ActivatedExtensions() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return slices.Sorted(maps.Keys(cc.activated))
}

// String returns a string representation of the CallContext for debugging.
func (cc *CallContext) String() string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	return fmt.Sprintf("CallContext{state_keys: %d, requested: %d, activated: %d}",
		len(cc.state), len(cc.requested), len(cc.activated))
}

// CallContextBuilder builds a [CallContext] from an incoming HTTP request.
type CallContextBuilder interface {
	Build(ctx context.Context, r *http.Request) (*CallContext, error)
}

// DefaultCallContextBuilder reads the requested extensions from [ExtensionsHeader]
// and records the request method and path in the state bag.
type DefaultCallContextBuilder struct{}

var _ CallContextBuilder = (*DefaultCallContextBuilder)(nil)

// NewDefaultCallContextBuilder creates a new DefaultCallContextBuilder instance.
func NewDefaultCallContextBuilder() *DefaultCallContextBuilder {
	return &DefaultCallContextBuilder{}
}

// Build implements [CallContextBuilder].
func (*DefaultCallContextBuilder) Build(ctx context.Context, r *http.Request) (*CallContext, error) {
	if r == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	state := map[string]any{
		"http_method": r.Method,
		"http_path":   r.URL.Path,
	}
	return NewCallContext(state, ParseExtensionsHeader(r.Header.Values(ExtensionsHeader))...), nil
}

// ParseExtensionsHeader splits the comma separated values of [ExtensionsHeader].
func ParseExtensionsHeader(values []string) []string {
	var uris []string
	for _, v := range values {
		for uri := range strings.SplitSeq(v, ",") {
			if uri = strings.TrimSpace(uri); uri != "" {
				uris = append(uris, uri)
			}
		}
	}
	return uris
}

type callContextKey struct{}

// WithCallContext returns a copy of ctx carrying cc.
func WithCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFrom returns the [CallContext] carried by ctx, or nil.
func CallContextFrom(ctx context.Context) *CallContext {
	cc, _ := ctx.Value(callContextKey{}).(*CallContext)
	return cc
}
