// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	a2a "github.com/go-a2a/a2a-runtime"
)

// ConsumerOption configures a [Consumer].
type ConsumerOption func(*Consumer)

// WithConsumerName sets the name used in log records.
func WithConsumerName(name string) ConsumerOption {
	return func(c *Consumer) {
		c.name = name
	}
}

// WithConsumerLogger sets the consumer logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Consumer reads the events of one task from a [Subscription] up to the
// first final event.
type Consumer struct {
	sub    *Subscription
	name   string
	logger *slog.Logger
}

// NewConsumer creates a Consumer reading from sub.
func NewConsumer(sub *Subscription, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		sub:    sub,
		name:   sub.queue.name,
		logger: sub.queue.logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the consumer name.
func (c *Consumer) Name() string { return c.name }

// ConsumeOne returns the next buffered event without waiting.
// It returns [ErrQueueEmpty] when nothing is buffered.
func (c *Consumer) ConsumeOne(ctx context.Context) (a2a.Event, error) {
	return c.sub.TryRecv(ctx)
}

// ConsumeAll yields events in publish order. Iteration ends after the first
// final event (see [a2a.IsFinalEvent]) or when the queue closes. A context
// error is yielded once as the last element.
func (c *Consumer) ConsumeAll(ctx context.Context) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		for {
			ev, err := c.sub.Recv(ctx)
			switch {
			case errors.Is(err, ErrQueueClosed):
				c.logger.DebugContext(ctx, "queue closed, consumer done", slog.String("consumer", c.name))
				return
			case err != nil:
				yield(nil, err)
				return
			}

			if !yield(ev, nil) {
				return
			}
			if a2a.IsFinalEvent(ev) {
				c.logger.DebugContext(ctx, "final event consumed",
					slog.String("consumer", c.name),
					slog.String("kind", ev.EventKind()),
					slog.String("task_id", ev.GetTaskID()),
				)
				return
			}
		}
	}
}

// Close detaches the underlying subscription.
func (c *Consumer) Close() {
	c.sub.Close()
}
