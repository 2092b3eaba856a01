// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/server/agent"
	"github.com/go-a2a/a2a-runtime/server/event"
	"github.com/go-a2a/a2a-runtime/server/task"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// testExecutor adapts functions to [agent.Executor].
type testExecutor struct {
	execute func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error
	cancel  func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error
}

func (e *testExecutor) Execute(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
	return e.execute(ctx, rc, q)
}

func (e *testExecutor) Cancel(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
	if e.cancel == nil {
		return nil
	}
	return e.cancel(ctx, rc, q)
}

func updaterFor(t *testing.T, rc *agent.RequestContext, q *event.Queue) *task.Updater {
	t.Helper()
	u, err := task.NewUpdater(q, rc.TaskID, rc.ContextID, task.WithUpdaterLogger(discardLogger))
	if err != nil {
		t.Errorf("NewUpdater() error = %v", err)
		return nil
	}
	return u
}

// completingExecutor moves to working, emits artifact a1 and completes.
func completingExecutor(t *testing.T) *testExecutor {
	return &testExecutor{
		execute: func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
			u := updaterFor(t, rc, q)
			u.StartWork(ctx, nil)
			u.AddArtifact(ctx, []a2a.Part{a2a.NewTextPart("result")}, task.ArtifactID("a1"))
			return u.Complete(ctx, nil)
		},
	}
}

// blockingExecutor reports each started task id and then waits until it is
// aborted. Its cancel hook publishes canceled when honor is set.
func blockingExecutor(t *testing.T, started chan<- string, honor bool) *testExecutor {
	return &testExecutor{
		execute: func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
			u := updaterFor(t, rc, q)
			u.StartWork(ctx, nil)
			started <- rc.TaskID
			<-ctx.Done()
			return ctx.Err()
		},
		cancel: func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
			if !honor {
				return nil
			}
			return updaterFor(t, rc, q).Cancel(ctx, nil)
		},
	}
}

func newHandler(t *testing.T, exec agent.Executor, opts ...Option) (*DefaultRequestHandler, task.TaskStore) {
	t.Helper()
	store := task.NewInMemoryTaskStore(task.WithInMemoryLogger(discardLogger))
	h, err := NewDefaultRequestHandler(exec, store, append([]Option{WithLogger(discardLogger)}, opts...)...)
	if err != nil {
		t.Fatalf("NewDefaultRequestHandler() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Shutdown(ctx)
	})
	return h, store
}

func sendParams(text string) *a2a.MessageSendParams {
	return &a2a.MessageSendParams{Message: a2a.NewUserTextMessage(text)}
}

// waitIdle waits until no execution is registered.
func waitIdle(t *testing.T, h *DefaultRequestHandler) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(h.Running()) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("executions still running: %v", h.Running())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func intPtr(n int) *int { return &n }

// waitState waits until the stored task reaches state.
func waitState(t *testing.T, store task.TaskStore, id string, state a2a.TaskState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := store.Get(t.Context(), id)
		if err == nil && got.Status.State == state {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %s never reached %s", id, state)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func recvWithin(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("executor never started")
		return ""
	}
}

func TestNewDefaultRequestHandler(t *testing.T) {
	t.Parallel()

	store := task.NewInMemoryTaskStore()
	if _, err := NewDefaultRequestHandler(nil, store); err == nil {
		t.Error("NewDefaultRequestHandler(nil executor) error = nil, want error")
	}
	if _, err := NewDefaultRequestHandler(agent.NewEchoExecutor(), nil); err == nil {
		t.Error("NewDefaultRequestHandler(nil store) error = nil, want error")
	}
}

func TestOnMessageSendCompletes(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, completingExecutor(t))
	ctx := t.Context()

	got, err := h.OnMessageSend(ctx, sendParams("hello"))
	if err != nil {
		t.Fatalf("OnMessageSend() error = %v", err)
	}
	if got.Status.State != a2a.TaskStateCompleted {
		t.Errorf("State = %s, want completed", got.Status.State)
	}
	if len(got.History) != 1 || a2a.MessageText(got.History[0], "") != "hello" {
		t.Errorf("History = %+v, want only the original message", got.History)
	}
	wantArtifacts := []*a2a.Artifact{{ArtifactID: "a1", Parts: []a2a.Part{a2a.NewTextPart("result")}}}
	if diff := cmp.Diff(wantArtifacts, got.Artifacts); diff != "" {
		t.Errorf("Artifacts mismatch (-want +got):\n%s", diff)
	}

	waitIdle(t, h)
	stored, err := h.OnGetTask(ctx, &a2a.TaskQueryParams{ID: got.ID})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	if diff := cmp.Diff(got, stored); diff != "" {
		t.Errorf("stored task mismatch (-want +got):\n%s", diff)
	}
}

func TestOnMessageSendExecutorError(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &testExecutor{
		execute: func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
			updaterFor(t, rc, q).StartWork(ctx, nil)
			return errors.New("boom")
		},
	})

	got, err := h.OnMessageSend(t.Context(), sendParams("hello"))
	if err != nil {
		t.Fatalf("OnMessageSend() error = %v, want the failure folded into the task", err)
	}
	if got.Status.State != a2a.TaskStateFailed {
		t.Errorf("State = %s, want failed", got.Status.State)
	}
	if text := a2a.MessageText(got.Status.Message, ""); text != "Agent execution failed: boom" {
		t.Errorf("status message = %q, want %q", text, "Agent execution failed: boom")
	}
}

func TestOnMessageSendContinuesTask(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &testExecutor{
		execute: func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
			u := updaterFor(t, rc, q)
			if rc.Task.Status.State == a2a.TaskStateSubmitted {
				return u.RequiresInput(ctx, u.NewAgentMessage([]a2a.Part{a2a.NewTextPart("which one?")}, nil), true)
			}
			if got := rc.UserInput(""); got != "the blue one" {
				t.Errorf("UserInput() = %q, want %q", got, "the blue one")
			}
			return u.Complete(ctx, nil)
		},
	})
	ctx := t.Context()

	first, err := h.OnMessageSend(ctx, sendParams("pick a color"))
	if err != nil {
		t.Fatalf("OnMessageSend() error = %v", err)
	}
	if first.Status.State != a2a.TaskStateInputRequired {
		t.Fatalf("State = %s, want input-required", first.Status.State)
	}
	waitIdle(t, h)

	follow := a2a.NewUserTextMessage("the blue one")
	follow.TaskID = first.ID
	second, err := h.OnMessageSend(ctx, &a2a.MessageSendParams{Message: follow})
	if err != nil {
		t.Fatalf("OnMessageSend(follow-up) error = %v", err)
	}
	if second.Status.State != a2a.TaskStateCompleted {
		t.Errorf("State = %s, want completed", second.Status.State)
	}
	var texts []string
	for _, m := range second.History {
		texts = append(texts, a2a.MessageText(m, ""))
	}
	if diff := cmp.Diff([]string{"pick a color", "which one?", "the blue one"}, texts); diff != "" {
		t.Errorf("History mismatch (-want +got):\n%s", diff)
	}
	if second.History[2].ContextID != first.ContextID {
		t.Errorf("follow-up context id = %q, want %q", second.History[2].ContextID, first.ContextID)
	}

	trimmed, err := h.OnGetTask(ctx, &a2a.TaskQueryParams{ID: first.ID, HistoryLength: intPtr(1)})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	if len(trimmed.History) != 1 || a2a.MessageText(trimmed.History[0], "") != "the blue one" {
		t.Errorf("trimmed History = %+v, want the latest message only", trimmed.History)
	}
}

func TestOnMessageSendErrors(t *testing.T) {
	t.Parallel()

	h, store := newHandler(t, completingExecutor(t))
	ctx := t.Context()

	finished := a2a.NewTask(a2a.NewUserTextMessage("done"))
	finished.Status.State = a2a.TaskStateCompleted
	parked := a2a.NewTask(a2a.NewUserTextMessage("parked"))
	parked.Status.State = a2a.TaskStateInputRequired
	for _, tk := range []*a2a.Task{finished, parked} {
		if err := store.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	msgFor := func(taskID, contextID string) *a2a.MessageSendParams {
		m := a2a.NewUserTextMessage("again")
		m.TaskID, m.ContextID = taskID, contextID
		return &a2a.MessageSendParams{Message: m}
	}

	tests := map[string]struct {
		params *a2a.MessageSendParams
		check  func(error) bool
	}{
		"nil params":       {params: nil, check: isInvalidParams},
		"no message":       {params: &a2a.MessageSendParams{}, check: isInvalidParams},
		"unknown task":     {params: msgFor("missing", ""), check: a2a.IsTaskNotFoundError},
		"terminal task":    {params: msgFor(finished.ID, ""), check: a2a.IsTaskInTerminalStateError},
		"context mismatch": {params: msgFor(parked.ID, "other"), check: isInvalidParams},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := h.OnMessageSend(ctx, tt.params)
			if !tt.check(err) {
				t.Errorf("OnMessageSend() error = %v", err)
			}
		})
	}
}

func isInvalidParams(err error) bool {
	var target *a2a.InvalidParamsError
	return errors.As(err, &target)
}

func TestOnMessageSendDuplicateExecution(t *testing.T) {
	t.Parallel()

	queues := event.NewInMemoryQueueManager(event.WithManagerLogger(discardLogger))
	h, store := newHandler(t, completingExecutor(t), WithQueueManager(queues))
	ctx := t.Context()

	running := a2a.NewTask(a2a.NewUserTextMessage("first"))
	running.Status.State = a2a.TaskStateWorking
	if err := store.Save(ctx, running); err != nil {
		t.Fatal(err)
	}
	if err := queues.Add(running.ID, event.NewQueue()); err != nil {
		t.Fatal(err)
	}

	m := a2a.NewUserTextMessage("second")
	m.TaskID = running.ID
	_, err := h.OnMessageSend(ctx, &a2a.MessageSendParams{Message: m})
	var internal *a2a.InternalError
	if !errors.As(err, &internal) || !event.IsQueueExistsError(err) {
		t.Errorf("OnMessageSend() error = %v, want *a2a.InternalError wrapping QueueExists", err)
	}

	stored, err := store.Get(ctx, running.ID)
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, msg := range stored.History {
		texts = append(texts, a2a.MessageText(msg, ""))
	}
	if diff := cmp.Diff([]string{"first"}, texts); diff != "" {
		t.Errorf("rejected message reached history (-want +got):\n%s", diff)
	}
}

func TestOnMessageSendSeedsMetadata(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &testExecutor{
		execute: func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
			u := updaterFor(t, rc, q)
			return u.UpdateStatus(ctx, a2a.TaskStateCompleted, nil, true, map[string]any{"step": "done"})
		},
	})
	ctx := t.Context()

	params := sendParams("hello")
	params.Metadata = map[string]any{"tenant": "acme", "step": "queued"}
	sent, err := h.OnMessageSend(ctx, params)
	if err != nil {
		t.Fatalf("OnMessageSend() error = %v", err)
	}

	got, err := h.OnGetTask(ctx, &a2a.TaskQueryParams{ID: sent.ID})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	want := map[string]any{"tenant": "acme", "step": "done"}
	if diff := cmp.Diff(want, got.Metadata); diff != "" {
		t.Errorf("Metadata mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, sent.Metadata); diff != "" {
		t.Errorf("returned Metadata mismatch (-want +got):\n%s", diff)
	}
	if params.Metadata["step"] != "queued" {
		t.Error("request metadata was modified")
	}
}

func TestOnMessageStream(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, completingExecutor(t))
	ctx := t.Context()

	var kinds []string
	var taskID string
	for ev, err := range h.OnMessageStream(ctx, sendParams("hello")) {
		if err != nil {
			t.Fatalf("OnMessageStream() error = %v", err)
		}
		if kinds == nil {
			snapshot, ok := ev.(*a2a.Task)
			if !ok {
				t.Fatalf("first event = %T, want *a2a.Task", ev)
			}
			if snapshot.Status.State != a2a.TaskStateSubmitted {
				t.Errorf("snapshot state = %s, want submitted", snapshot.Status.State)
			}
			taskID = snapshot.ID
		}
		kinds = append(kinds, ev.EventKind())
	}
	want := []string{a2a.TaskEventKind, a2a.StatusUpdateEventKind, a2a.ArtifactUpdateEventKind, a2a.StatusUpdateEventKind}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("event kinds mismatch (-want +got):\n%s", diff)
	}

	waitIdle(t, h)
	got, err := h.OnGetTask(ctx, &a2a.TaskQueryParams{ID: taskID})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	if got.Status.State != a2a.TaskStateCompleted || len(got.Artifacts) != 1 {
		t.Errorf("stored task = %+v, want completed with one artifact", got)
	}
}

func TestOnMessageStreamEarlyStopKeepsPersisting(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	h, _ := newHandler(t, &testExecutor{
		execute: func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
			<-release
			return updaterFor(t, rc, q).Complete(ctx, nil)
		},
	})

	var taskID string
	for ev, err := range h.OnMessageStream(t.Context(), sendParams("hello")) {
		if err != nil {
			t.Fatalf("OnMessageStream() error = %v", err)
		}
		taskID = ev.GetTaskID()
		break
	}
	close(release)

	waitIdle(t, h)
	got, err := h.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: taskID})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	if got.Status.State != a2a.TaskStateCompleted {
		t.Errorf("State = %s, want completed", got.Status.State)
	}
}

func TestOnCancelTaskRunning(t *testing.T) {
	t.Parallel()

	started := make(chan string, 1)
	h, _ := newHandler(t, blockingExecutor(t, started, true))
	ctx := t.Context()

	sendDone := make(chan *a2a.Task, 1)
	go func() {
		task, err := h.OnMessageSend(ctx, sendParams("long job"))
		if err != nil {
			t.Errorf("OnMessageSend() error = %v", err)
		}
		sendDone <- task
	}()
	taskID := recvWithin(t, started)

	got, err := h.OnCancelTask(ctx, &a2a.TaskIDParams{ID: taskID})
	if err != nil {
		t.Fatalf("OnCancelTask() error = %v", err)
	}
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("State = %s, want canceled", got.Status.State)
	}
	if sent := <-sendDone; sent == nil || sent.Status.State != a2a.TaskStateCanceled {
		t.Errorf("OnMessageSend() result = %+v, want canceled task", sent)
	}
	if running := h.Running(); len(running) != 0 {
		t.Errorf("Running() = %v, want none", running)
	}
}

func TestOnCancelTaskNotHonored(t *testing.T) {
	t.Parallel()

	started := make(chan string, 1)
	h, _ := newHandler(t, blockingExecutor(t, started, false))
	ctx := t.Context()

	go h.OnMessageSend(ctx, sendParams("stubborn"))
	taskID := recvWithin(t, started)

	_, err := h.OnCancelTask(ctx, &a2a.TaskIDParams{ID: taskID})
	if !a2a.IsTaskNotCancelableError(err) {
		t.Errorf("OnCancelTask() error = %v, want *a2a.TaskNotCancelableError", err)
	}
}

func TestOnCancelTaskIdle(t *testing.T) {
	t.Parallel()

	started := make(chan string, 1)
	h, store := newHandler(t, blockingExecutor(t, started, true))
	ctx := t.Context()

	idle := a2a.NewTask(a2a.NewUserTextMessage("parked"))
	idle.Status.State = a2a.TaskStateInputRequired
	if err := store.Save(ctx, idle); err != nil {
		t.Fatal(err)
	}

	got, err := h.OnCancelTask(ctx, &a2a.TaskIDParams{ID: idle.ID})
	if err != nil {
		t.Fatalf("OnCancelTask() error = %v", err)
	}
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("State = %s, want canceled", got.Status.State)
	}
}

func TestOnCancelTaskErrors(t *testing.T) {
	t.Parallel()

	h, store := newHandler(t, &testExecutor{
		execute: func(context.Context, *agent.RequestContext, *event.Queue) error { return nil },
		cancel: func(context.Context, *agent.RequestContext, *event.Queue) error {
			return errors.New("cannot reach agent")
		},
	})
	ctx := t.Context()

	failed := a2a.NewTask(a2a.NewUserTextMessage("t2"))
	failed.Status.State = a2a.TaskStateFailed
	working := a2a.NewTask(a2a.NewUserTextMessage("t3"))
	working.Status.State = a2a.TaskStateWorking
	for _, tk := range []*a2a.Task{failed, working} {
		if err := store.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	tests := map[string]struct {
		params *a2a.TaskIDParams
		check  func(error) bool
	}{
		"missing id":   {params: &a2a.TaskIDParams{}, check: isInvalidParams},
		"unknown task": {params: &a2a.TaskIDParams{ID: "missing"}, check: a2a.IsTaskNotFoundError},
		"terminal task is not reported as not cancelable": {
			params: &a2a.TaskIDParams{ID: failed.ID},
			check: func(err error) bool {
				return a2a.IsTaskInTerminalStateError(err) && !a2a.IsTaskNotCancelableError(err)
			},
		},
		"executor cancel error": {
			params: &a2a.TaskIDParams{ID: working.ID},
			check: func(err error) bool {
				var internal *a2a.InternalError
				return errors.As(err, &internal)
			},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := h.OnCancelTask(ctx, tt.params)
			if !tt.check(err) {
				t.Errorf("OnCancelTask() error = %v", err)
			}
		})
	}
}

func TestOnSubscribe(t *testing.T) {
	t.Parallel()

	started := make(chan string, 1)
	release := make(chan struct{})
	h, store := newHandler(t, &testExecutor{
		execute: func(ctx context.Context, rc *agent.RequestContext, q *event.Queue) error {
			u := updaterFor(t, rc, q)
			u.StartWork(ctx, nil)
			started <- rc.TaskID
			<-release
			u.AddArtifact(ctx, []a2a.Part{a2a.NewTextPart("late")}, task.ArtifactID("a1"))
			return u.Complete(ctx, nil)
		},
	})
	ctx := t.Context()

	go h.OnMessageSend(ctx, sendParams("hello"))
	taskID := recvWithin(t, started)
	waitState(t, store, taskID, a2a.TaskStateWorking)

	for name, subscribe := range map[string]func(context.Context, *a2a.TaskIDParams) iter.Seq2[a2a.Event, error]{
		"subscribe":   h.OnSubscribe,
		"resubscribe": h.OnResubscribe,
	} {
		var first a2a.Event
		for ev, err := range subscribe(ctx, &a2a.TaskIDParams{ID: taskID}) {
			if err != nil {
				t.Fatalf("%s error = %v", name, err)
			}
			first = ev
			break
		}
		if snapshot, ok := first.(*a2a.Task); !ok || snapshot.Status.State != a2a.TaskStateWorking {
			t.Errorf("%s first event = %+v, want working task snapshot", name, first)
		}
	}
	if root := h.queues.Get(taskID); root == nil || root.Children() != 0 {
		t.Errorf("abandoned subscriptions left taps behind: %v", root)
	}

	events := make(chan []string, 1)
	go func() {
		var kinds []string
		for ev, err := range h.OnSubscribe(ctx, &a2a.TaskIDParams{ID: taskID}) {
			if err != nil {
				t.Errorf("OnSubscribe() error = %v", err)
				break
			}
			kinds = append(kinds, ev.EventKind())
			if len(kinds) == 1 {
				close(release)
			}
		}
		events <- kinds
	}()

	want := []string{a2a.TaskEventKind, a2a.ArtifactUpdateEventKind, a2a.StatusUpdateEventKind}
	select {
	case got := <-events:
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("subscribed kinds mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscription never ended")
	}
}

// getHookStore runs a one-shot hook at the start of the next Get.
type getHookStore struct {
	task.TaskStore
	hook atomic.Pointer[func()]
}

func (s *getHookStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	if fn := s.hook.Swap(nil); fn != nil {
		(*fn)()
	}
	return s.TaskStore.Get(ctx, taskID)
}

func TestOnSubscribeSeesEventsDuringSnapshot(t *testing.T) {
	t.Parallel()

	store := &getHookStore{TaskStore: task.NewInMemoryTaskStore(task.WithInMemoryLogger(discardLogger))}
	started := make(chan string, 1)
	h, err := NewDefaultRequestHandler(blockingExecutor(t, started, false), store, WithLogger(discardLogger))
	if err != nil {
		t.Fatalf("NewDefaultRequestHandler() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Shutdown(ctx)
	})
	ctx := t.Context()

	go h.OnMessageSend(ctx, sendParams("hello"))
	taskID := recvWithin(t, started)
	waitState(t, store, taskID, a2a.TaskStateWorking)

	root := h.queues.Get(taskID)
	if root == nil {
		t.Fatal("no queue registered for the running task")
	}
	stored, err := store.TaskStore.Get(ctx, taskID)
	if err != nil {
		t.Fatal(err)
	}
	u, err := task.NewUpdater(root, taskID, stored.ContextID, task.WithUpdaterLogger(discardLogger))
	if err != nil {
		t.Fatal(err)
	}
	// the execution emits an artifact while the subscriber reads its snapshot
	emit := func() {
		u.AddArtifact(ctx, []a2a.Part{a2a.NewTextPart("chunk")}, task.ArtifactID("a1"))
	}
	store.hook.Store(&emit)

	var kinds []string
	for ev, err := range h.OnSubscribe(ctx, &a2a.TaskIDParams{ID: taskID}) {
		if err != nil {
			t.Fatalf("OnSubscribe() error = %v", err)
		}
		kinds = append(kinds, ev.EventKind())
		if ev.EventKind() == a2a.ArtifactUpdateEventKind {
			u.Complete(ctx, nil)
		}
	}
	want := []string{a2a.TaskEventKind, a2a.ArtifactUpdateEventKind, a2a.StatusUpdateEventKind}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("subscribed kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestOnSubscribeErrors(t *testing.T) {
	t.Parallel()

	h, store := newHandler(t, completingExecutor(t))
	ctx := t.Context()

	done := a2a.NewTask(a2a.NewUserTextMessage("done"))
	done.Status.State = a2a.TaskStateCompleted
	idle := a2a.NewTask(a2a.NewUserTextMessage("idle"))
	idle.Status.State = a2a.TaskStateWorking
	for _, tk := range []*a2a.Task{done, idle} {
		if err := store.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	tests := map[string]struct {
		id    string
		check func(error) bool
	}{
		"missing id":      {id: "", check: isInvalidParams},
		"unknown task":    {id: "missing", check: a2a.IsTaskNotFoundError},
		"terminal task":   {id: done.ID, check: a2a.IsTaskInTerminalStateError},
		"no running exec": {id: idle.ID, check: a2a.IsTaskNotFoundError},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var got []error
			for _, err := range h.OnResubscribe(ctx, &a2a.TaskIDParams{ID: tt.id}) {
				got = append(got, err)
			}
			if len(got) != 1 || !tt.check(got[0]) {
				t.Errorf("OnResubscribe() errors = %v", got)
			}
		})
	}
}

func TestOnListTasks(t *testing.T) {
	t.Parallel()

	h, store := newHandler(t, completingExecutor(t))
	ctx := t.Context()

	for _, text := range []string{"a", "b", "c"} {
		tk := a2a.NewTask(a2a.NewUserTextMessage(text))
		tk.ContextID = "conv"
		tk.History = append(tk.History, a2a.NewAgentTextMessage("reply "+text, tk.ID, "conv"))
		if err := store.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	res, err := h.OnListTasks(ctx, &a2a.ListTasksParams{ContextID: "conv", PageSize: 2, HistoryLength: intPtr(1)})
	if err != nil {
		t.Fatalf("OnListTasks() error = %v", err)
	}
	if len(res.Tasks) != 2 || res.NextPageToken == "" {
		t.Fatalf("OnListTasks() = %d tasks, token %q, want 2 and a token", len(res.Tasks), res.NextPageToken)
	}
	for _, tk := range res.Tasks {
		if len(tk.History) != 1 || tk.History[0].Role != a2a.RoleAgent {
			t.Errorf("task %s history = %+v, want the latest agent reply only", tk.ID, tk.History)
		}
	}

	stored, err := store.Get(ctx, res.Tasks[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.History) != 2 {
		t.Errorf("stored history length = %d, want 2: trimming must not mutate the store", len(stored.History))
	}

	for name, params := range map[string]*a2a.ListTasksParams{
		"negative page size": {PageSize: -1},
		"bad state":          {Status: []a2a.TaskState{"sleeping"}},
	} {
		if _, err := h.OnListTasks(ctx, params); !isInvalidParams(err) {
			t.Errorf("OnListTasks(%s) error = %v, want invalid params", name, err)
		}
	}
}

func TestPushNotificationConfig(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	cfg := &a2a.TaskPushNotificationConfig{
		PushNotificationConfig: a2a.PushNotificationConfig{ID: "c1", URL: "https://example.com/hook"},
	}

	t.Run("unsupported by default", func(t *testing.T) {
		t.Parallel()
		h, _ := newHandler(t, completingExecutor(t))

		_, setErr := h.OnSetTaskPushNotificationConfig(ctx, cfg)
		_, getErr := h.OnGetTaskPushNotificationConfig(ctx, &a2a.GetTaskPushNotificationConfigParams{ID: "t1"})
		_, listErr := h.OnListTaskPushNotificationConfig(ctx, &a2a.TaskIDParams{ID: "t1"})
		delErr := h.OnDeleteTaskPushNotificationConfig(ctx, &a2a.GetTaskPushNotificationConfigParams{ID: "t1"})
		for _, err := range []error{setErr, getErr, listErr, delErr} {
			if !a2a.IsUnsupportedOperationError(err) {
				t.Errorf("error = %v, want *a2a.UnsupportedOperationError", err)
			}
		}
	})

	t.Run("with store", func(t *testing.T) {
		t.Parallel()
		h, store := newHandler(t, completingExecutor(t), WithPushConfigStore(task.NewInMemoryPushConfigStore()))

		tk := a2a.NewTask(a2a.NewUserTextMessage("hi"))
		if err := store.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}

		if _, err := h.OnSetTaskPushNotificationConfig(ctx, cfg); !a2a.IsTaskNotFoundError(err) {
			t.Errorf("Set(unknown task) error = %v, want not found", err)
		}

		withTask := *cfg
		withTask.TaskID = tk.ID
		if _, err := h.OnSetTaskPushNotificationConfig(ctx, &withTask); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := h.OnGetTaskPushNotificationConfig(ctx, &a2a.GetTaskPushNotificationConfigParams{ID: tk.ID, PushNotificationConfigID: "c1"})
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if diff := cmp.Diff(&withTask, got); diff != "" {
			t.Errorf("Get() mismatch (-want +got):\n%s", diff)
		}
		if err := h.OnDeleteTaskPushNotificationConfig(ctx, &a2a.GetTaskPushNotificationConfigParams{ID: tk.ID, PushNotificationConfigID: "c1"}); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		list, err := h.OnListTaskPushNotificationConfig(ctx, &a2a.TaskIDParams{ID: tk.ID})
		if err != nil || len(list) != 0 {
			t.Errorf("List() = %v, %v, want empty", list, err)
		}
	})
}
