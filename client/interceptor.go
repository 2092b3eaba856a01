// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Interceptor wraps the HTTP round trip of every call.
type Interceptor func(ctx context.Context, req *http.Request, invoker Invoker) (*http.Response, error)

// Invoker is the next step of an interceptor chain.
type Invoker func(ctx context.Context, req *http.Request) (*http.Response, error)

// chainInterceptors wraps invoker so that interceptors run in slice order.
func chainInterceptors(interceptors []Interceptor, invoker Invoker) Invoker {
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		next := invoker
		invoker = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return interceptor(ctx, req, next)
		}
	}
	return invoker
}

// HeaderInterceptor sets a fixed header on every request.
func HeaderInterceptor(key, value string) Interceptor {
	return func(ctx context.Context, req *http.Request, invoker Invoker) (*http.Response, error) {
		req.Header.Set(key, value)
		return invoker(ctx, req)
	}
}

// LoggingInterceptor logs each round trip at debug level.
func LoggingInterceptor(logger *slog.Logger) Interceptor {
	return func(ctx context.Context, req *http.Request, invoker Invoker) (*http.Response, error) {
		start := time.Now()
		resp, err := invoker(ctx, req)
		if err != nil {
			logger.DebugContext(ctx, "a2a request failed",
				slog.String("url", req.URL.String()),
				slog.Duration("elapsed", time.Since(start)),
				slog.Any("error", err),
			)
			return nil, err
		}
		logger.DebugContext(ctx, "a2a request",
			slog.String("url", req.URL.String()),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return resp, nil
	}
}
