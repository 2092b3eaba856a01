// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the fan-out event channels that carry task lifecycle
// events from an executor to every interested consumer, and the per-task
// registry of those channels.
package event

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	a2a "github.com/go-a2a/a2a-runtime"
)

// DefaultCapacity is the default per-subscriber buffer size.
const DefaultCapacity = 1024

// OverrunFunc is called when a subscriber missed events because its buffer was full.
type OverrunFunc func(ctx context.Context, queue string, skipped uint64)

// QueueOption configures a [Queue].
type QueueOption func(*Queue)

// WithCapacity sets the per-subscriber buffer size.
func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithName sets the queue name used in logs.
func WithName(name string) QueueOption {
	return func(q *Queue) {
		q.name = name
	}
}

// WithQueueLogger sets the logger of the queue and of every child tapped from it.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithOverrunFunc registers a callback observing subscriber overruns.
func WithOverrunFunc(fn OverrunFunc) QueueOption {
	return func(q *Queue) {
		q.onOverrun = fn
	}
}

// Queue is a closable fan-out channel of [a2a.Event] values.
//
// Every [Subscription] and every child created with [Queue.Tap] receives each
// event published after it was attached. Publishing never blocks on a slow
// subscriber: when a subscriber buffer is full the event is skipped for that
// subscriber and the overrun is reported on its next receive.
type Queue struct {
	mu        sync.RWMutex
	name      string
	capacity  int
	subs      []*Subscription
	parent    *Queue
	children  []*Queue
	taps      int
	closed    bool
	logger    *slog.Logger
	onOverrun OverrunFunc
}

// NewQueue creates an open root queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		capacity: DefaultCapacity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.name == "" {
		q.name = fmt.Sprintf("queue-%p", q)
	}
	return q
}

// Publish delivers ev to every current subscription and, recursively, to every tap child.
//
// Publishing to a closed queue is dropped with a warning and reports no error.
// Publishing with no subscribers is not an error either.
func (q *Queue) Publish(ctx context.Context, ev a2a.Event) error {
	if ev == nil {
		return ErrInvalidEvent
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.WarnContext(ctx, "publish to closed queue dropped",
			slog.String("queue", q.name),
			slog.String("kind", ev.EventKind()),
			slog.String("task_id", ev.GetTaskID()),
		)
		return nil
	}

	for _, s := range q.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
		}
	}

	for _, child := range q.children {
		if err := child.Publish(ctx, ev); err != nil {
			return err
		}
	}

	return nil
}

// Subscribe returns a receive handle that sees only events published after this call.
//
// Subscribing to a closed queue returns a handle whose Recv reports [ErrQueueClosed].
func (q *Queue) Subscribe() *Subscription {
	s := &Subscription{
		queue: q,
		ch:    make(chan a2a.Event, q.capacity),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		s.detached = true
		close(s.ch)
		return s
	}
	q.subs = append(q.subs, s)

	return s
}

// Tap creates a child queue receiving everything published to q from now on.
// Tapping a closed queue returns an already closed child.
func (q *Queue) Tap() *Queue {
	child, _ := q.tap(false)
	return child
}

// TapSubscribe taps q and subscribes to the child in one step, so the
// subscription sees every event published to q after the call.
func (q *Queue) TapSubscribe() (*Queue, *Subscription) {
	return q.tap(true)
}

func (q *Queue) tap(subscribe bool) (*Queue, *Subscription) {
	q.mu.Lock()
	defer q.mu.Unlock()

	child := &Queue{
		name:      fmt.Sprintf("%s/tap-%d", q.name, q.taps),
		capacity:  q.capacity,
		logger:    q.logger,
		onOverrun: q.onOverrun,
		parent:    q,
		closed:    q.closed,
	}
	q.taps++

	var sub *Subscription
	if subscribe {
		// publishers hold q.mu, so nothing reaches child before sub is attached
		sub = child.Subscribe()
	}
	if !q.closed {
		q.children = append(q.children, child)
	}

	return child, sub
}

// Close marks the queue closed, ends every subscription once its buffer is
// drained and closes every child. A closed tap is detached from its parent.
// Close is idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for _, s := range q.subs {
		s.detached = true
		close(s.ch)
	}
	q.subs = nil
	children := q.children
	q.children = nil
	q.mu.Unlock()

	for _, child := range children {
		child.Close()
	}
	if q.parent != nil {
		q.parent.removeChild(q)
	}

	return nil
}

func (q *Queue) removeChild(child *Queue) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.children = slices.DeleteFunc(q.children, func(c *Queue) bool { return c == child })
}

// IsClosed reports whether Close has been called.
func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Len returns the number of attached subscriptions.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.subs)
}

// Children returns the number of tap children.
func (q *Queue) Children() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.children)
}

func (q *Queue) String() string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return fmt.Sprintf("Queue{name: %s, subscribers: %d, children: %d, closed: %t}",
		q.name, len(q.subs), len(q.children), q.closed)
}

func (q *Queue) detach(s *Subscription) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if s.detached {
		return
	}
	s.detached = true
	close(s.ch)
	q.subs = slices.DeleteFunc(q.subs, func(e *Subscription) bool { return e == s })
}

// Subscription is an independent FIFO receiver attached to a [Queue].
type Subscription struct {
	queue   *Queue
	ch      chan a2a.Event
	dropped atomic.Uint64

	// detached is guarded by queue.mu.
	detached bool
}

// Recv returns the next event in publish order.
//
// It returns [ErrQueueClosed] once the queue is closed and every buffered
// event was received, or the context error. Overruns since the previous
// receive are logged and otherwise ignored.
func (s *Subscription) Recv(ctx context.Context) (a2a.Event, error) {
	s.reportOverrun(ctx)

	select {
	case ev, ok := <-s.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryRecv returns the next buffered event without waiting.
// It returns [ErrQueueEmpty] when nothing is buffered.
func (s *Subscription) TryRecv(ctx context.Context) (a2a.Event, error) {
	s.reportOverrun(ctx)

	select {
	case ev, ok := <-s.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return ev, nil
	default:
		return nil, ErrQueueEmpty
	}
}

// Events returns an iterator over received events. Iteration stops when the
// queue closes or ctx is done.
func (s *Subscription) Events(ctx context.Context) iter.Seq[a2a.Event] {
	return func(yield func(a2a.Event) bool) {
		for {
			ev, err := s.Recv(ctx)
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Close detaches the subscription from its queue. Buffered events are discarded.
func (s *Subscription) Close() {
	s.queue.detach(s)
}

func (s *Subscription) reportOverrun(ctx context.Context) {
	n := s.dropped.Swap(0)
	if n == 0 {
		return
	}
	s.queue.logger.WarnContext(ctx, "subscriber lagged behind, events skipped",
		slog.String("queue", s.queue.name),
		slog.Uint64("skipped", n),
	)
	if s.queue.onOverrun != nil {
		s.queue.onOverrun(ctx, s.queue.name, n)
	}
}
