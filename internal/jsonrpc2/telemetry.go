// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc2

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/go-a2a/a2a-runtime/internal/jsonrpc2"

const (
	methodKey = attribute.Key("rpc.method")
	codeKey   = attribute.Key("rpc.jsonrpc.error_code")
	streamKey = attribute.Key("rpc.stream")
)

var (
	startedCounter     metric.Int64Counter
	sentBytesGauge     metric.Int64Gauge
	receivedBytesGauge metric.Int64Gauge
	latency            metric.Float64Histogram
)

var metricOnce sync.Once

func newMetrics(m metric.Meter) {
	metricOnce.Do(func() {
		var err error

		startedCounter, err = m.Int64Counter("rpc.server.started",
			metric.WithDescription("Count of started RPCs"),
		)
		if err != nil {
			otel.Handle(err)
			startedCounter = noop.Int64Counter{}
		}

		sentBytesGauge, err = m.Int64Gauge("rpc.server.sent_bytes",
			metric.WithDescription("Bytes sent"),
			metric.WithUnit("By"),
		)
		if err != nil {
			otel.Handle(err)
			sentBytesGauge = noop.Int64Gauge{}
		}

		receivedBytesGauge, err = m.Int64Gauge("rpc.server.received_bytes",
			metric.WithDescription("Bytes received"),
			metric.WithUnit("By"),
		)
		if err != nil {
			otel.Handle(err)
			receivedBytesGauge = noop.Int64Gauge{}
		}

		latency, err = m.Float64Histogram("rpc.server.duration",
			metric.WithDescription("Wall time of RPCs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
			latency = noop.Float64Histogram{}
		}
	})
}

// Call tracks the metrics of one served RPC.
type Call struct {
	method string
	stream bool
	start  time.Time
}

// StartCall records the start of method. The instruments are created from mp
// on first use; a nil mp uses the global provider.
func StartCall(ctx context.Context, mp metric.MeterProvider, method string, stream bool, received int) *Call {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	newMetrics(mp.Meter(instrumentationName))

	attrs := metric.WithAttributes(methodKey.String(method), streamKey.Bool(stream))
	startedCounter.Add(ctx, 1, attrs)
	receivedBytesGauge.Record(ctx, int64(received), attrs)

	return &Call{method: method, stream: stream, start: time.Now()}
}

// End records the outcome of the call. code is zero on success.
func (c *Call) End(ctx context.Context, code int, sent int) {
	attrs := metric.WithAttributes(
		methodKey.String(c.method),
		streamKey.Bool(c.stream),
		codeKey.String(strconv.Itoa(code)),
	)
	sentBytesGauge.Record(ctx, int64(sent), attrs)
	latency.Record(ctx, time.Since(c.start).Seconds(), attrs)
}
