// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/server"
	"github.com/go-a2a/a2a-runtime/server/agent"
	"github.com/go-a2a/a2a-runtime/server/event"
	"github.com/go-a2a/a2a-runtime/server/task"
)

// Option configures a [DefaultRequestHandler].
type Option func(*DefaultRequestHandler)

// WithQueueManager sets the queue registry. The default is a fresh [event.InMemoryQueueManager].
func WithQueueManager(queues event.QueueManager) Option {
	return func(h *DefaultRequestHandler) {
		h.queues = queues
	}
}

// WithQueueOptions sets options applied to every execution queue.
func WithQueueOptions(opts ...event.QueueOption) Option {
	return func(h *DefaultRequestHandler) {
		h.queueOpts = append(h.queueOpts, opts...)
	}
}

// WithContextBuilder sets the builder of the executor's request context.
func WithContextBuilder(builder agent.RequestContextBuilder) Option {
	return func(h *DefaultRequestHandler) {
		h.contextBuilder = builder
	}
}

// WithPushConfigStore enables the push notification configuration methods.
// Without it they report [a2a.UnsupportedOperationError].
func WithPushConfigStore(store task.PushConfigStore) Option {
	return func(h *DefaultRequestHandler) {
		h.pushConfigs = store
	}
}

// WithStrictArtifactAppend makes an append to an unknown artifact a persistence error instead of a logged no-op.
func WithStrictArtifactAppend() Option {
	return func(h *DefaultRequestHandler) {
		h.applyOpts = append(h.applyOpts, task.StrictAppend())
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *DefaultRequestHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMeterProvider sets the meter provider. The default is the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(h *DefaultRequestHandler) {
		h.meterProvider = mp
	}
}

// WithTracerProvider sets the tracer provider. The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *DefaultRequestHandler) {
		h.tracerProvider = tp
	}
}

// execution is one running executor invocation.
type execution struct {
	taskID  string
	queue   *event.Queue
	abort   context.CancelFunc
	done    chan struct{}
	started time.Time
}

// DefaultRequestHandler orchestrates executor runs for the protocol methods.
//
// Every execution owns one root queue registered under its task id. A single
// persistence consumer per execution folds events into the store, so the
// stored task reflects progress no matter which method started the run.
type DefaultRequestHandler struct {
	executor       agent.Executor
	store          task.TaskStore
	queues         event.QueueManager
	queueOpts      []event.QueueOption
	contextBuilder agent.RequestContextBuilder
	pushConfigs    task.PushConfigStore
	applyOpts      []task.ApplyOption
	logger         *slog.Logger

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	metrics        *metrics

	mu      sync.Mutex
	running map[string]*execution
}

var _ RequestHandler = (*DefaultRequestHandler)(nil)

// NewDefaultRequestHandler returns a handler running executor against store.
func NewDefaultRequestHandler(executor agent.Executor, store task.TaskStore, opts ...Option) (*DefaultRequestHandler, error) {
	if executor == nil {
		return nil, errors.New("executor cannot be nil")
	}
	if store == nil {
		return nil, errors.New("task store cannot be nil")
	}

	h := &DefaultRequestHandler{
		executor: executor,
		store:    store,
		logger:   slog.Default(),
		running:  make(map[string]*execution),
	}
	for _, o := range opts {
		o(h)
	}

	if h.queues == nil {
		h.queues = event.NewInMemoryQueueManager(event.WithManagerLogger(h.logger))
	}
	if h.contextBuilder == nil {
		h.contextBuilder = agent.NewSimpleRequestContextBuilder(agent.WithBuilderLogger(h.logger))
	}
	if h.meterProvider == nil {
		h.meterProvider = otel.GetMeterProvider()
	}
	if h.tracerProvider == nil {
		h.tracerProvider = otel.GetTracerProvider()
	}
	h.tracer = h.tracerProvider.Tracer(instrumentationName)
	h.metrics = newMetrics(h.meterProvider.Meter(instrumentationName))
	h.applyOpts = append([]task.ApplyOption{task.WithApplyLogger(h.logger)}, h.applyOpts...)

	return h, nil
}

func (h *DefaultRequestHandler) startSpan(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// OnMessageSend implements [RequestHandler].
func (h *DefaultRequestHandler) OnMessageSend(ctx context.Context, params *a2a.MessageSendParams) (_ *a2a.Task, err error) {
	ctx, span := h.startSpan(ctx, "message/send")
	defer func() { endSpan(span, err) }()

	t, rc, err := h.prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(taskIDKey.String(t.ID), contextIDKey.String(t.ContextID))

	exec, _, err := h.spawn(ctx, rc, false)
	if err != nil {
		return nil, err
	}

	select {
	case <-exec.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result, err := h.store.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return a2a.TrimHistory(result, params.HistoryLength()), nil
}

// OnMessageStream implements [RequestHandler].
//
// Stopping the iteration early detaches the caller only. The execution keeps
// running and its events keep being persisted.
func (h *DefaultRequestHandler) OnMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		var err error
		ctx, span := h.startSpan(ctx, "message/stream")
		defer func() { endSpan(span, err) }()

		t, rc, err := h.prepare(ctx, params)
		if err != nil {
			yield(nil, err)
			return
		}
		span.SetAttributes(taskIDKey.String(t.ID), contextIDKey.String(t.ContextID))

		_, live, err := h.spawn(ctx, rc, true)
		if err != nil {
			yield(nil, err)
			return
		}
		defer live.Close()

		if !yield(a2a.TrimHistory(t, params.HistoryLength()), nil) {
			return
		}
		consumer := event.NewConsumer(live, event.WithConsumerName("stream:"+t.ID), event.WithConsumerLogger(h.logger))
		for ev, cerr := range consumer.ConsumeAll(ctx) {
			if cerr != nil {
				err = cerr
			}
			if !yield(ev, cerr) {
				return
			}
		}
	}
}

// OnGetTask implements [RequestHandler].
func (h *DefaultRequestHandler) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (_ *a2a.Task, err error) {
	if params == nil || params.ID == "" {
		return nil, &a2a.InvalidParamsError{Reason: "task id is required"}
	}
	ctx, span := h.startSpan(ctx, "tasks/get", taskIDKey.String(params.ID))
	defer func() { endSpan(span, err) }()

	t, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if params.HistoryLength != nil {
		t = a2a.TrimHistory(t, *params.HistoryLength)
	}
	return t, nil
}

// OnListTasks implements [RequestHandler].
func (h *DefaultRequestHandler) OnListTasks(ctx context.Context, params *a2a.ListTasksParams) (_ *a2a.ListTasksResult, err error) {
	ctx, span := h.startSpan(ctx, "tasks/list")
	defer func() { endSpan(span, err) }()

	if params == nil {
		params = &a2a.ListTasksParams{}
	}
	if params.PageSize < 0 {
		return nil, &a2a.InvalidParamsError{Reason: "page size cannot be negative"}
	}
	for _, s := range params.Status {
		if !s.Valid() {
			return nil, &a2a.InvalidParamsError{Reason: fmt.Sprintf("invalid task state %q", s)}
		}
	}

	res, err := h.store.List(ctx, &task.ListParams{
		ContextID: params.ContextID,
		States:    params.Status,
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		return nil, err
	}

	out := &a2a.ListTasksResult{
		Tasks:         make([]*a2a.Task, 0, len(res.Tasks)),
		NextPageToken: res.NextPageToken,
	}
	for _, t := range res.Tasks {
		if params.HistoryLength != nil {
			t = a2a.TrimHistory(t, *params.HistoryLength)
		}
		out.Tasks = append(out.Tasks, t)
	}
	return out, nil
}

// OnCancelTask implements [RequestHandler].
func (h *DefaultRequestHandler) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (_ *a2a.Task, err error) {
	if params == nil || params.ID == "" {
		return nil, &a2a.InvalidParamsError{Reason: "task id is required"}
	}
	ctx, span := h.startSpan(ctx, "tasks/cancel", taskIDKey.String(params.ID))
	defer func() { endSpan(span, err) }()

	t, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if t.Status.State.IsTerminal() {
		return nil, &a2a.TaskInTerminalStateError{TaskID: t.ID, State: t.Status.State}
	}

	rc := &agent.RequestContext{
		TaskID:      t.ID,
		ContextID:   t.ContextID,
		Task:        t,
		Metadata:    params.Metadata,
		CallContext: server.CallContextFrom(ctx),
	}

	h.mu.Lock()
	exec := h.running[t.ID]
	h.mu.Unlock()

	if exec != nil {
		err = h.cancelRunning(ctx, rc, exec)
	} else {
		err = h.cancelIdle(ctx, rc)
	}
	if err != nil {
		return nil, err
	}

	result, err := h.store.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if result.Status.State != a2a.TaskStateCanceled {
		return nil, &a2a.TaskNotCancelableError{TaskID: t.ID, State: result.Status.State}
	}
	return result, nil
}

// cancelRunning asks the executor to cancel through the execution's queue,
// aborts the producer and waits for the persistence consumer to finish.
func (h *DefaultRequestHandler) cancelRunning(ctx context.Context, rc *agent.RequestContext, exec *execution) error {
	cancelErr := h.executor.Cancel(ctx, rc, exec.queue)
	exec.abort()

	select {
	case <-exec.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return executorError(cancelErr)
}

// cancelIdle runs the executor's cancel hook against a standalone queue and
// persists whatever it publishes.
func (h *DefaultRequestHandler) cancelIdle(ctx context.Context, rc *agent.RequestContext) error {
	q := h.newQueue(rc.TaskID)
	consumer := event.NewConsumer(q.Subscribe(), event.WithConsumerName("cancel:"+rc.TaskID), event.WithConsumerLogger(h.logger))
	defer consumer.Close()

	cancelErr := h.executor.Cancel(ctx, rc, q)
	q.Close()
	if err := executorError(cancelErr); err != nil {
		return err
	}

	h.drain(ctx, rc.TaskID, rc.ContextID, consumer)
	return nil
}

// executorError passes protocol errors through and wraps anything else.
func executorError(err error) error {
	if err == nil {
		return nil
	}
	var protoErr a2a.Error
	if errors.As(err, &protoErr) {
		return err
	}
	return &a2a.InternalError{Reason: "executor cancel failed", Err: err}
}

// OnSubscribe implements [RequestHandler].
func (h *DefaultRequestHandler) OnSubscribe(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return h.subscribe(ctx, "tasks/subscribe", params)
}

// OnResubscribe implements [RequestHandler].
func (h *DefaultRequestHandler) OnResubscribe(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return h.subscribe(ctx, "tasks/resubscribe", params)
}

func (h *DefaultRequestHandler) subscribe(ctx context.Context, method string, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	if params == nil || params.ID == "" {
		return errSeq(&a2a.InvalidParamsError{Reason: "task id is required"})
	}

	return func(yield func(a2a.Event, error) bool) {
		var err error
		ctx, span := h.startSpan(ctx, method, taskIDKey.String(params.ID))
		defer func() { endSpan(span, err) }()

		// Attach before reading the snapshot so no event falls between the two.
		var sub *event.Subscription
		if root := h.queues.Get(params.ID); root != nil {
			tap, s := root.TapSubscribe()
			defer tap.Close()
			sub = s
		}

		t, err := h.store.Get(ctx, params.ID)
		if err != nil {
			yield(nil, err)
			return
		}
		if t.Status.State.IsTerminal() {
			err = &a2a.TaskInTerminalStateError{TaskID: t.ID, State: t.Status.State}
			yield(nil, err)
			return
		}
		if sub == nil {
			err = &a2a.TaskNotFoundError{TaskID: t.ID}
			h.logger.DebugContext(ctx, "no running execution to subscribe to", slog.String("task_id", t.ID))
			yield(nil, err)
			return
		}
		consumer := event.NewConsumer(sub, event.WithConsumerName("subscribe:"+t.ID), event.WithConsumerLogger(h.logger))
		defer consumer.Close()

		if !yield(t, nil) {
			return
		}
		for ev, cerr := range consumer.ConsumeAll(ctx) {
			if cerr != nil {
				err = cerr
			}
			if !yield(ev, cerr) {
				return
			}
		}
	}
}

// OnSetTaskPushNotificationConfig implements [RequestHandler].
func (h *DefaultRequestHandler) OnSetTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	if h.pushConfigs == nil {
		return nil, &a2a.UnsupportedOperationError{Operation: "tasks/pushNotificationConfig/set"}
	}
	if params == nil {
		return nil, &a2a.InvalidParamsError{Reason: "push notification config is required"}
	}
	if _, err := h.store.Get(ctx, params.TaskID); err != nil {
		return nil, err
	}
	return h.pushConfigs.Set(ctx, params)
}

// OnGetTaskPushNotificationConfig implements [RequestHandler].
func (h *DefaultRequestHandler) OnGetTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error) {
	if h.pushConfigs == nil {
		return nil, &a2a.UnsupportedOperationError{Operation: "tasks/pushNotificationConfig/get"}
	}
	if params == nil || params.ID == "" {
		return nil, &a2a.InvalidParamsError{Reason: "task id is required"}
	}
	return h.pushConfigs.Get(ctx, params.ID, params.PushNotificationConfigID)
}

// OnListTaskPushNotificationConfig implements [RequestHandler].
func (h *DefaultRequestHandler) OnListTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskIDParams) ([]*a2a.TaskPushNotificationConfig, error) {
	if h.pushConfigs == nil {
		return nil, &a2a.UnsupportedOperationError{Operation: "tasks/pushNotificationConfig/list"}
	}
	if params == nil || params.ID == "" {
		return nil, &a2a.InvalidParamsError{Reason: "task id is required"}
	}
	return h.pushConfigs.List(ctx, params.ID)
}

// OnDeleteTaskPushNotificationConfig implements [RequestHandler].
func (h *DefaultRequestHandler) OnDeleteTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) error {
	if h.pushConfigs == nil {
		return &a2a.UnsupportedOperationError{Operation: "tasks/pushNotificationConfig/delete"}
	}
	if params == nil || params.ID == "" {
		return &a2a.InvalidParamsError{Reason: "task id is required"}
	}
	return h.pushConfigs.Delete(ctx, params.ID, params.PushNotificationConfigID)
}

// Running returns the sorted ids of tasks with a registered execution.
func (h *DefaultRequestHandler) Running() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.running))
	for id := range h.running {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Shutdown aborts every running execution and waits for its persistence to finish or ctx to end.
func (h *DefaultRequestHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	execs := make([]*execution, 0, len(h.running))
	for _, e := range h.running {
		execs = append(execs, e)
	}
	h.mu.Unlock()

	for _, e := range execs {
		e.abort()
	}
	for _, e := range execs {
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// prepare resolves or creates the task addressed by params, persists it and
// builds the executor's request context.
func (h *DefaultRequestHandler) prepare(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, *agent.RequestContext, error) {
	if params == nil {
		return nil, nil, &a2a.InvalidParamsError{Reason: "params are required"}
	}
	if err := params.Validate(); err != nil {
		return nil, nil, &a2a.InvalidParamsError{Reason: err.Error()}
	}
	msg := params.Message

	var t *a2a.Task
	if msg.TaskID != "" {
		stored, err := h.store.Get(ctx, msg.TaskID)
		if err != nil {
			return nil, nil, err
		}
		if stored.Status.State.IsTerminal() {
			return nil, nil, &a2a.TaskInTerminalStateError{TaskID: stored.ID, State: stored.Status.State}
		}
		if msg.ContextID != "" && msg.ContextID != stored.ContextID {
			return nil, nil, &a2a.InvalidParamsError{
				Reason: fmt.Sprintf("message context id %s does not match task context id %s", msg.ContextID, stored.ContextID),
			}
		}
		if h.queues.Get(stored.ID) != nil {
			// the running execution owns the task until it finishes
			return nil, nil, &a2a.InternalError{
				Reason: "task already has a running execution",
				Err:    &event.QueueExistsError{TaskID: stored.ID},
			}
		}
		m := msg.Clone()
		m.ContextID = stored.ContextID
		t = task.UpdateWithMessage(m, stored)
	} else {
		t = a2a.NewTask(msg)
		t.Metadata = a2a.MergeMetadata(nil, params.Metadata)
		h.logger.InfoContext(ctx, "task created",
			slog.String("task_id", t.ID),
			slog.String("context_id", t.ContextID),
		)
	}

	if err := h.store.Save(ctx, t); err != nil {
		return nil, nil, &a2a.InternalError{Reason: "failed to persist task", Err: err}
	}

	// the executor sees the message carrying the resolved ids
	sent := *params
	sent.Message = t.History[len(t.History)-1].Clone()
	rc, err := h.contextBuilder.Build(ctx, &sent, t.Clone(), server.CallContextFrom(ctx))
	if err != nil {
		return nil, nil, &a2a.InternalError{Reason: "failed to build request context", Err: err}
	}
	return t, rc, nil
}

func (h *DefaultRequestHandler) newQueue(taskID string) *event.Queue {
	opts := slices.Concat(
		[]event.QueueOption{event.WithQueueLogger(h.logger), event.WithOverrunFunc(h.metrics.recordOverrun)},
		h.queueOpts,
		[]event.QueueOption{event.WithName(taskID)},
	)
	return event.NewQueue(opts...)
}

// spawn registers a root queue for the task, starts the executor against it
// and starts the persistence consumer. When live is set the returned
// subscription sees every event from the first one on.
func (h *DefaultRequestHandler) spawn(ctx context.Context, rc *agent.RequestContext, live bool) (*execution, *event.Subscription, error) {
	q := h.newQueue(rc.TaskID)
	if err := h.queues.Add(rc.TaskID, q); err != nil {
		h.logger.ErrorContext(ctx, "duplicate execution for task",
			slog.String("task_id", rc.TaskID),
			slog.Any("error", err),
		)
		return nil, nil, &a2a.InternalError{Reason: "task already has a running execution", Err: err}
	}

	persist := event.NewConsumer(q.Subscribe(), event.WithConsumerName("persist:"+rc.TaskID), event.WithConsumerLogger(h.logger))
	var liveSub *event.Subscription
	if live {
		liveSub = q.Subscribe()
	}

	// the execution outlives the request that started it
	execCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	exec := &execution{
		taskID:  rc.TaskID,
		queue:   q,
		abort:   abort,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	h.mu.Lock()
	h.running[rc.TaskID] = exec
	h.mu.Unlock()
	h.metrics.started.Add(ctx, 1)
	h.metrics.running.Add(ctx, 1)

	go h.produce(execCtx, rc, exec)
	go h.persist(context.WithoutCancel(ctx), rc, exec, persist)

	return exec, liveSub, nil
}

// produce runs the executor. An executor error that is not the result of an
// abort becomes a final failed status event.
func (h *DefaultRequestHandler) produce(ctx context.Context, rc *agent.RequestContext, exec *execution) {
	defer exec.abort()
	defer exec.queue.Close()

	err := h.executor.Execute(ctx, rc, exec.queue)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		h.logger.DebugContext(ctx, "executor stopped after abort",
			slog.String("task_id", rc.TaskID),
			slog.Any("error", err),
		)
		return
	}

	h.logger.ErrorContext(ctx, "agent execution failed",
		slog.String("task_id", rc.TaskID),
		slog.Any("error", err),
	)
	failed := &a2a.TaskStatusUpdateEvent{
		Kind:      a2a.StatusUpdateEventKind,
		TaskID:    rc.TaskID,
		ContextID: rc.ContextID,
		Status: a2a.TaskStatus{
			State:     a2a.TaskStateFailed,
			Message:   a2a.NewAgentTextMessage("Agent execution failed: "+err.Error(), rc.TaskID, rc.ContextID),
			Timestamp: a2a.Now(),
		},
		Final: true,
	}
	if perr := exec.queue.Publish(ctx, failed); perr != nil {
		h.logger.ErrorContext(ctx, "failed to publish failure event", slog.String("task_id", rc.TaskID), slog.Any("error", perr))
	}
}

// persist folds the execution's events into the store until a final event
// or queue close, then unregisters the execution.
func (h *DefaultRequestHandler) persist(ctx context.Context, rc *agent.RequestContext, exec *execution, consumer *event.Consumer) {
	defer close(exec.done)
	defer consumer.Close()

	final := h.drain(ctx, rc.TaskID, rc.ContextID, consumer)

	if err := h.queues.Close(rc.TaskID); err != nil && !event.IsNoSuchQueueError(err) {
		h.logger.WarnContext(ctx, "failed to close task queue", slog.String("task_id", rc.TaskID), slog.Any("error", err))
	}
	exec.abort()

	h.mu.Lock()
	if h.running[rc.TaskID] == exec {
		delete(h.running, rc.TaskID)
	}
	h.mu.Unlock()

	state := a2a.TaskStateUnknown
	if final != nil {
		state = final.Status.State
	}
	attrs := metric.WithAttributes(stateKey.String(string(state)))
	h.metrics.running.Add(ctx, -1)
	h.metrics.finished.Add(ctx, 1, attrs)
	h.metrics.durations.Record(ctx, time.Since(exec.started).Seconds(), attrs)

	h.logger.InfoContext(ctx, "task execution finished",
		slog.String("task_id", rc.TaskID),
		slog.String("state", string(state)),
	)
}

// drain applies every event consumed to the stored task and returns the last persisted task.
func (h *DefaultRequestHandler) drain(ctx context.Context, taskID, contextID string, consumer *event.Consumer) *a2a.Task {
	m := task.NewManager(h.store, taskID, contextID, nil,
		task.WithManagerLogger(h.logger),
		task.WithApplyOptions(h.applyOpts...),
	)

	var last *a2a.Task
	for ev, err := range consumer.ConsumeAll(ctx) {
		if err != nil {
			h.logger.WarnContext(ctx, "event consumption stopped", slog.String("task_id", taskID), slog.Any("error", err))
			break
		}
		t, err := m.SaveEvent(ctx, ev)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to persist event",
				slog.String("task_id", taskID),
				slog.String("kind", ev.EventKind()),
				slog.Any("error", err),
			)
			continue
		}
		last = t
	}
	if last == nil {
		if t, err := m.GetTask(ctx); err == nil {
			last = t
		}
	}
	return last
}
