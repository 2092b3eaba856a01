// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"

	a2a "github.com/go-a2a/a2a-runtime"
)

const (
	// AgentCardPath is the well-known path of the public agent card.
	AgentCardPath = "/.well-known/agent-card.json"

	// LegacyAgentCardPath is where agents of earlier protocol versions publish their card.
	LegacyAgentCardPath = "/.well-known/agent.json"
)

// CardResolver fetches agent cards relative to a base URL.
type CardResolver struct {
	baseURL    string
	httpClient *http.Client
}

// NewCardResolver returns a resolver for baseURL. A nil hc uses [http.DefaultClient].
func NewCardResolver(baseURL string, hc *http.Client) *CardResolver {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &CardResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

// GetAgentCard fetches the card at path.
//
// With an empty path it tries [AgentCardPath] and falls back to
// [LegacyAgentCardPath] when the agent answers 404.
func (r *CardResolver) GetAgentCard(ctx context.Context, path string) (*a2a.AgentCard, error) {
	if path != "" {
		return r.fetch(ctx, path)
	}

	card, err := r.fetch(ctx, AgentCardPath)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return r.fetch(ctx, LegacyAgentCardPath)
	}
	return card, err
}

func (r *CardResolver) fetch(ctx context.Context, path string) (*a2a.AgentCard, error) {
	cardURL := r.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch agent card from %s: %w", cardURL, &HTTPError{StatusCode: resp.StatusCode})
	}

	card := new(a2a.AgentCard)
	if err := json.UnmarshalRead(resp.Body, card); err != nil {
		return nil, fmt.Errorf("decode agent card from %s: %w", cardURL, err)
	}
	return card, nil
}
