// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"mime"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/internal/jsonrpc2"
)

// maxEventSize bounds one server-sent event.
const maxEventSize = 4 << 20

func (c *Client) stream(ctx context.Context, method string, params any) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		req, err := c.newRequest(ctx, method, params, "text/event-stream")
		if err != nil {
			yield(nil, err)
			return
		}
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := c.do(ctx, req)
		if err != nil {
			yield(nil, fmt.Errorf("%s: %w", method, err))
			return
		}
		defer resp.Body.Close()

		// errors raised before the first event arrive as a plain JSON response
		if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "text/event-stream" {
			yield(nil, plainError(method, resp))
			return
		}

		for data, err := range readEvents(resp.Body) {
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				yield(nil, fmt.Errorf("%s: read stream: %w", method, err))
				return
			}

			var rpcResp jsonrpc2.Response
			if err := json.Unmarshal(data, &rpcResp); err != nil {
				yield(nil, fmt.Errorf("%s: decode event: %w", method, err))
				return
			}
			if rpcResp.Error != nil {
				yield(nil, newRPCError(rpcResp.Error))
				return
			}
			ev, err := a2a.UnmarshalEvent(rpcResp.Result)
			if err != nil {
				yield(nil, fmt.Errorf("%s: %w", method, err))
				return
			}
			if !yield(ev, nil) || a2a.IsFinalEvent(ev) {
				return
			}
		}
	}
}

func plainError(method string, resp *http.Response) error {
	var rpcResp jsonrpc2.Response
	if err := json.UnmarshalRead(resp.Body, &rpcResp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return newRPCError(rpcResp.Error)
	}
	return fmt.Errorf("%s: expected an event stream, got %q", method, resp.Header.Get("Content-Type"))
}

// readEvents yields the data payload of every event in an SSE stream.
// Multiple data lines of one event are joined with newlines.
func readEvents(r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), maxEventSize)

		var data []string
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				if len(data) > 0 {
					if !yield([]byte(strings.Join(data, "\n")), nil) {
						return
					}
					data = data[:0]
				}
				continue
			}
			if strings.HasPrefix(line, ":") {
				continue
			}
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			if field == "data" {
				data = append(data, value)
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, err)
			return
		}
		if len(data) > 0 {
			yield([]byte(strings.Join(data, "\n")), nil)
		}
	}
}
