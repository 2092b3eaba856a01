// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements a JSON-RPC client for A2A agents.
package client

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-json-experiment/json"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/internal/jsonrpc2"
	"github.com/go-a2a/a2a-runtime/server"
)

// DefaultUserAgent is sent when no other user agent is configured.
const DefaultUserAgent = "a2a-runtime-client/1.0"

// Client calls the protocol methods of one agent endpoint.
type Client struct {
	url          string
	httpClient   *http.Client
	userAgent    string
	extensions   []string
	interceptors []Interceptor
	logger       *slog.Logger

	nextID atomic.Int64
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets the [*http.Client] used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithExtensions requests the given extension URIs on every call.
func WithExtensions(uris ...string) Option {
	return func(c *Client) {
		c.extensions = append(c.extensions, uris...)
	}
}

// WithInterceptors appends interceptors around the HTTP round trip.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client posting to url.
func New(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("agent url cannot be empty")
	}
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		userAgent:  DefaultUserAgent,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromCard returns a client for the endpoint advertised by card.
func NewFromCard(card *a2a.AgentCard, opts ...Option) (*Client, error) {
	if card == nil {
		return nil, fmt.Errorf("agent card cannot be nil")
	}
	return New(card.URL, opts...)
}

// SendMessage calls message/send.
func (c *Client) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.call(ctx, "message/send", params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask calls tasks/get.
func (c *Client) GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.call(ctx, "tasks/get", params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks calls tasks/list.
func (c *Client) ListTasks(ctx context.Context, params *a2a.ListTasksParams) (*a2a.ListTasksResult, error) {
	var result a2a.ListTasksResult
	if err := c.call(ctx, "tasks/list", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelTask calls tasks/cancel.
func (c *Client) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.call(ctx, "tasks/cancel", params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// SetTaskPushNotificationConfig calls tasks/pushNotificationConfig/set.
func (c *Client) SetTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	var cfg a2a.TaskPushNotificationConfig
	if err := c.call(ctx, "tasks/pushNotificationConfig/set", params, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetTaskPushNotificationConfig calls tasks/pushNotificationConfig/get.
func (c *Client) GetTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error) {
	var cfg a2a.TaskPushNotificationConfig
	if err := c.call(ctx, "tasks/pushNotificationConfig/get", params, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListTaskPushNotificationConfig calls tasks/pushNotificationConfig/list.
func (c *Client) ListTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskIDParams) ([]*a2a.TaskPushNotificationConfig, error) {
	var cfgs []*a2a.TaskPushNotificationConfig
	if err := c.call(ctx, "tasks/pushNotificationConfig/list", params, &cfgs); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// DeleteTaskPushNotificationConfig calls tasks/pushNotificationConfig/delete.
func (c *Client) DeleteTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) error {
	return c.call(ctx, "tasks/pushNotificationConfig/delete", params, nil)
}

// SendMessageStream calls message/stream. The sequence ends after the final
// event, on the first error, or when ctx is done.
func (c *Client) SendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return c.stream(ctx, "message/stream", params)
}

// Subscribe calls tasks/subscribe.
func (c *Client) Subscribe(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return c.stream(ctx, "tasks/subscribe", params)
}

// Resubscribe calls tasks/resubscribe.
func (c *Client) Resubscribe(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return c.stream(ctx, "tasks/resubscribe", params)
}

func (c *Client) newRequest(ctx context.Context, method string, params any, accept string) (*http.Request, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", method, err)
	}
	body, err := json.Marshal(&jsonrpc2.Request{
		JSONRPC: jsonrpc2.Version,
		ID:      jsonrpc2.Int64ID(c.nextID.Add(1)),
		Method:  method,
		Params:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if len(c.extensions) > 0 {
		req.Header.Set(server.ExtensionsHeader, strings.Join(c.extensions, ", "))
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	invoke := chainInterceptors(c.interceptors, func(_ context.Context, req *http.Request) (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	resp, err := invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// call performs a unary method and decodes its result into out when out is not nil.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	req, err := c.newRequest(ctx, method, params, "application/json")
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp jsonrpc2.Response
	if err := json.UnmarshalRead(resp.Body, &rpcResp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return newRPCError(rpcResp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}
