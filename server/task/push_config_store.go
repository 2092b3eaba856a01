// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	a2a "github.com/go-a2a/a2a-runtime"
)

// PushConfigStore keeps the push notification configurations registered for
// tasks. It stores configuration only; nothing in this module delivers pushes.
type PushConfigStore interface {
	// Set stores config for its task, replacing a config with the same id.
	// A config without id gets one assigned.
	Set(ctx context.Context, config *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)

	// Get returns the config configID of taskID, or the first config of the
	// task when configID is empty. Returns *a2a.TaskNotFoundError when absent.
	Get(ctx context.Context, taskID, configID string) (*a2a.TaskPushNotificationConfig, error)

	// List returns every config of taskID.
	List(ctx context.Context, taskID string) ([]*a2a.TaskPushNotificationConfig, error)

	// Delete removes one config. Deleting an unknown config is not an error.
	Delete(ctx context.Context, taskID, configID string) error
}

// InMemoryPushConfigStore is an in-memory [PushConfigStore].
type InMemoryPushConfigStore struct {
	mu      sync.RWMutex
	configs map[string][]a2a.PushNotificationConfig
}

var _ PushConfigStore = (*InMemoryPushConfigStore)(nil)

// NewInMemoryPushConfigStore creates an empty store.
func NewInMemoryPushConfigStore() *InMemoryPushConfigStore {
	return &InMemoryPushConfigStore{
		configs: make(map[string][]a2a.PushNotificationConfig),
	}
}

// Set implements [PushConfigStore].
func (s *InMemoryPushConfigStore) Set(ctx context.Context, config *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	if config == nil {
		return nil, fmt.Errorf("push notification config cannot be nil")
	}
	if config.TaskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}
	if config.PushNotificationConfig.URL == "" {
		return nil, fmt.Errorf("push notification URL cannot be empty")
	}

	pc := config.PushNotificationConfig
	if pc.ID == "" {
		pc.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.configs[config.TaskID]
	if i := slices.IndexFunc(list, func(c a2a.PushNotificationConfig) bool { return c.ID == pc.ID }); i >= 0 {
		list[i] = pc
	} else {
		list = append(list, pc)
	}
	s.configs[config.TaskID] = list

	return &a2a.TaskPushNotificationConfig{TaskID: config.TaskID, PushNotificationConfig: pc}, nil
}

// Get implements [PushConfigStore].
func (s *InMemoryPushConfigStore) Get(ctx context.Context, taskID, configID string) (*a2a.TaskPushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.configs[taskID] {
		if configID == "" || c.ID == configID {
			return &a2a.TaskPushNotificationConfig{TaskID: taskID, PushNotificationConfig: c}, nil
		}
	}
	return nil, &a2a.TaskNotFoundError{TaskID: taskID}
}

// List implements [PushConfigStore].
func (s *InMemoryPushConfigStore) List(ctx context.Context, taskID string) ([]*a2a.TaskPushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*a2a.TaskPushNotificationConfig, 0, len(s.configs[taskID]))
	for _, c := range s.configs[taskID] {
		out = append(out, &a2a.TaskPushNotificationConfig{TaskID: taskID, PushNotificationConfig: c})
	}
	return out, nil
}

// Delete implements [PushConfigStore].
func (s *InMemoryPushConfigStore) Delete(ctx context.Context, taskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := slices.DeleteFunc(s.configs[taskID], func(c a2a.PushNotificationConfig) bool { return c.ID == configID })
	if len(list) == 0 {
		delete(s.configs, taskID)
		return nil
	}
	s.configs[taskID] = list
	return nil
}
