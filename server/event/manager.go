// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// QueueManager maps task ids to the root [Queue] of their active execution.
type QueueManager interface {
	// Add registers queue for taskID.
	// It returns a *QueueExistsError if a queue is already registered.
	Add(taskID string, queue *Queue) error

	// Get returns the registered queue, or nil.
	Get(taskID string) *Queue

	// Tap returns a new child of the registered queue, or nil when none is registered.
	Tap(taskID string) *Queue

	// Close closes and unregisters the queue of taskID.
	// It returns a *NoSuchQueueError if no queue is registered.
	Close(taskID string) error

	// CreateOrTap taps the registered queue, or creates and registers a new root queue.
	CreateOrTap(taskID string) *Queue
}

// QueueManagerOption configures an [InMemoryQueueManager].
type QueueManagerOption func(*InMemoryQueueManager)

// WithQueueOptions sets the options applied to every queue the manager creates.
func WithQueueOptions(opts ...QueueOption) QueueManagerOption {
	return func(m *InMemoryQueueManager) {
		m.queueOpts = append(m.queueOpts, opts...)
	}
}

// WithManagerLogger sets the logger of the manager.
func WithManagerLogger(logger *slog.Logger) QueueManagerOption {
	return func(m *InMemoryQueueManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// InMemoryQueueManager is a process-local [QueueManager].
//
// Its lock guards table membership only. Queues are safe for concurrent use on their own.
type InMemoryQueueManager struct {
	mu        sync.Mutex
	queues    map[string]*Queue
	queueOpts []QueueOption
	logger    *slog.Logger
}

var _ QueueManager = (*InMemoryQueueManager)(nil)

// NewInMemoryQueueManager creates an empty manager.
func NewInMemoryQueueManager(opts ...QueueManagerOption) *InMemoryQueueManager {
	m := &InMemoryQueueManager{
		queues: make(map[string]*Queue),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewQueue creates a queue configured with the manager's queue options, without registering it.
func (m *InMemoryQueueManager) NewQueue(taskID string) *Queue {
	opts := append(slices.Clone(m.queueOpts), WithName(taskID))
	return NewQueue(opts...)
}

// Add implements [QueueManager].
func (m *InMemoryQueueManager) Add(taskID string, queue *Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.queues[taskID]; ok {
		return &QueueExistsError{TaskID: taskID}
	}
	m.queues[taskID] = queue
	m.logger.Debug("queue registered", slog.String("task_id", taskID))

	return nil
}

// Get implements [QueueManager].
func (m *InMemoryQueueManager) Get(taskID string) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queues[taskID]
}

// Tap implements [QueueManager].
func (m *InMemoryQueueManager) Tap(taskID string) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[taskID]
	if !ok {
		return nil
	}
	return q.Tap()
}

// Close implements [QueueManager].
func (m *InMemoryQueueManager) Close(taskID string) error {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	if !ok {
		m.mu.Unlock()
		return &NoSuchQueueError{TaskID: taskID}
	}
	delete(m.queues, taskID)
	m.mu.Unlock()

	m.logger.Debug("queue closed", slog.String("task_id", taskID))
	return q.Close()
}

// CreateOrTap implements [QueueManager].
func (m *InMemoryQueueManager) CreateOrTap(taskID string) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[taskID]; ok {
		return q.Tap()
	}
	q := m.NewQueue(taskID)
	m.queues[taskID] = q
	m.logger.Debug("queue created", slog.String("task_id", taskID))

	return q
}

// Exists reports whether a queue is registered for taskID.
func (m *InMemoryQueueManager) Exists(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.queues[taskID]
	return ok
}

// TaskIDs returns the sorted ids of every registered queue.
func (m *InMemoryQueueManager) TaskIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.queues))
}

// Shutdown closes and unregisters every queue.
func (m *InMemoryQueueManager) Shutdown() {
	m.mu.Lock()
	queues := m.queues
	m.queues = make(map[string]*Queue)
	m.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}

func (m *InMemoryQueueManager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("InMemoryQueueManager{queues: %d}", len(m.queues))
}
