// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/go-a2a/a2a-runtime/server/handler"

// attribute keys shared by spans and metrics
const (
	taskIDKey    = attribute.Key("a2a.task_id")
	contextIDKey = attribute.Key("a2a.context_id")
	stateKey     = attribute.Key("a2a.task_state")
	queueKey     = attribute.Key("a2a.queue")
)

type metrics struct {
	started   metric.Int64Counter
	finished  metric.Int64Counter
	overruns  metric.Int64Counter
	running   metric.Int64UpDownCounter
	durations metric.Float64Histogram
}

func newMetrics(m metric.Meter) *metrics {
	var (
		ms  metrics
		err error
	)

	ms.started, err = m.Int64Counter("a2a.tasks.started",
		metric.WithDescription("Count of started task executions"),
	)
	if err != nil {
		otel.Handle(err)
		ms.started = noop.Int64Counter{}
	}

	ms.finished, err = m.Int64Counter("a2a.tasks.finished",
		metric.WithDescription("Count of finished task executions by resulting state"),
	)
	if err != nil {
		otel.Handle(err)
		ms.finished = noop.Int64Counter{}
	}

	ms.overruns, err = m.Int64Counter("a2a.queue.overruns",
		metric.WithDescription("Events skipped because a subscriber lagged behind"),
	)
	if err != nil {
		otel.Handle(err)
		ms.overruns = noop.Int64Counter{}
	}

	ms.running, err = m.Int64UpDownCounter("a2a.tasks.running",
		metric.WithDescription("Task executions currently registered"),
	)
	if err != nil {
		otel.Handle(err)
		ms.running = noop.Int64UpDownCounter{}
	}

	ms.durations, err = m.Float64Histogram("a2a.tasks.duration",
		metric.WithDescription("Wall time of task executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
		ms.durations = noop.Float64Histogram{}
	}

	return &ms
}

// recordOverrun is installed on every queue the handler creates.
func (ms *metrics) recordOverrun(ctx context.Context, queue string, skipped uint64) {
	ms.overruns.Add(ctx, int64(skipped), metric.WithAttributes(queueKey.String(queue)))
}
