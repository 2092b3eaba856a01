// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderExportsMetrics(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Enabled: true, ServiceName: "a2a-test", Namespace: "a2a"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(t.Context()) })

	counter, err := p.MeterProvider().Meter("test").Int64Counter("test_requests")
	require.NoError(t, err)
	counter.Add(t.Context(), 3)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "test_requests")
	assert.Contains(t, body, "go_goroutines")
}

func TestProviderDisabled(t *testing.T) {
	t.Parallel()

	p, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(t.Context()))

	counter, err := p.MeterProvider().Meter("test").Int64Counter("ignored")
	require.NoError(t, err)
	counter.Add(t.Context(), 1)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
