// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-json-experiment/json"
	"go.opentelemetry.io/otel/metric"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/internal/jsonrpc2"
	"github.com/go-a2a/a2a-runtime/internal/pool"
	"github.com/go-a2a/a2a-runtime/server"
)

// JSON-RPC method names.
const (
	MethodMessageSend                  = "message/send"
	MethodMessageStream                = "message/stream"
	MethodTasksGet                     = "tasks/get"
	MethodTasksList                    = "tasks/list"
	MethodTasksCancel                  = "tasks/cancel"
	MethodTasksSubscribe               = "tasks/subscribe"
	MethodTasksResubscribe             = "tasks/resubscribe"
	MethodPushNotificationConfigSet    = "tasks/pushNotificationConfig/set"
	MethodPushNotificationConfigGet    = "tasks/pushNotificationConfig/get"
	MethodPushNotificationConfigList   = "tasks/pushNotificationConfig/list"
	MethodPushNotificationConfigDelete = "tasks/pushNotificationConfig/delete"
)

// Well-known agent card paths.
const (
	AgentCardPath       = "/.well-known/agent-card.json"
	LegacyAgentCardPath = "/.well-known/agent.json"
)

type unaryMethod func(ctx context.Context, req *jsonrpc2.Request) (any, error)

type streamMethod func(ctx context.Context, req *jsonrpc2.Request) iter.Seq2[a2a.Event, error]

// JSONRPCHandler exposes a [RequestHandler] as JSON-RPC 2.0 over HTTP.
// Streaming methods answer with server-sent events, one JSON-RPC response per event.
type JSONRPCHandler struct {
	handler        RequestHandler
	contextBuilder server.CallContextBuilder
	agentCard      *a2a.AgentCard
	rpcPath        string
	logger         *slog.Logger
	meterProvider  metric.MeterProvider

	unary   map[string]unaryMethod
	streams map[string]streamMethod
	router  chi.Router
}

// JSONRPCHandlerOption configures a [JSONRPCHandler].
type JSONRPCHandlerOption func(*JSONRPCHandler)

// WithAgentCard serves card on the well-known paths. Streaming methods are
// refused when the card does not advertise streaming.
func WithAgentCard(card *a2a.AgentCard) JSONRPCHandlerOption {
	return func(h *JSONRPCHandler) {
		h.agentCard = card
	}
}

// WithJSONRPCContextBuilder sets the builder deriving a [server.CallContext] from each HTTP request.
func WithJSONRPCContextBuilder(builder server.CallContextBuilder) JSONRPCHandlerOption {
	return func(h *JSONRPCHandler) {
		h.contextBuilder = builder
	}
}

// WithRPCPath sets the path accepting JSON-RPC posts. The default is "/".
func WithRPCPath(path string) JSONRPCHandlerOption {
	return func(h *JSONRPCHandler) {
		h.rpcPath = path
	}
}

// WithJSONRPCLogger sets the logger.
func WithJSONRPCLogger(logger *slog.Logger) JSONRPCHandlerOption {
	return func(h *JSONRPCHandler) {
		h.logger = logger
	}
}

// WithJSONRPCMeterProvider sets the provider of the RPC instruments.
func WithJSONRPCMeterProvider(mp metric.MeterProvider) JSONRPCHandlerOption {
	return func(h *JSONRPCHandler) {
		h.meterProvider = mp
	}
}

// NewJSONRPCHandler returns a JSON-RPC adapter over handler.
func NewJSONRPCHandler(handler RequestHandler, opts ...JSONRPCHandlerOption) (*JSONRPCHandler, error) {
	if handler == nil {
		return nil, fmt.Errorf("request handler cannot be nil")
	}

	h := &JSONRPCHandler{
		handler:        handler,
		contextBuilder: server.NewDefaultCallContextBuilder(),
		rpcPath:        "/",
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registerMethods()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(h.rpcPath, h.serveRPC)
	r.Get(AgentCardPath, h.serveAgentCard)
	r.Get(LegacyAgentCardPath, h.serveAgentCard)
	h.router = r

	return h, nil
}

var _ http.Handler = (*JSONRPCHandler)(nil)

// ServeHTTP implements [http.Handler].
func (h *JSONRPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *JSONRPCHandler) registerMethods() {
	h.unary = map[string]unaryMethod{
		MethodMessageSend:                unary(h.handler.OnMessageSend),
		MethodTasksGet:                   unary(h.handler.OnGetTask),
		MethodTasksList:                  unary(h.handler.OnListTasks),
		MethodTasksCancel:                unary(h.handler.OnCancelTask),
		MethodPushNotificationConfigSet:  unary(h.handler.OnSetTaskPushNotificationConfig),
		MethodPushNotificationConfigGet:  unary(h.handler.OnGetTaskPushNotificationConfig),
		MethodPushNotificationConfigList: unary(h.handler.OnListTaskPushNotificationConfig),
		MethodPushNotificationConfigDelete: func(ctx context.Context, req *jsonrpc2.Request) (any, error) {
			var params a2a.GetTaskPushNotificationConfigParams
			if err := req.UnmarshalParams(&params); err != nil {
				return nil, err
			}
			return nil, h.handler.OnDeleteTaskPushNotificationConfig(ctx, &params)
		},
	}
	h.streams = map[string]streamMethod{
		MethodMessageStream:    stream(h.handler.OnMessageStream),
		MethodTasksSubscribe:   stream(h.handler.OnSubscribe),
		MethodTasksResubscribe: stream(h.handler.OnResubscribe),
	}
}

// unary adapts a handler method taking *P to a [unaryMethod].
func unary[P, R any](fn func(context.Context, *P) (R, error)) unaryMethod {
	return func(ctx context.Context, req *jsonrpc2.Request) (any, error) {
		params := new(P)
		if err := req.UnmarshalParams(params); err != nil {
			return nil, err
		}
		return fn(ctx, params)
	}
}

// stream adapts a streaming handler method taking *P to a [streamMethod].
func stream[P any](fn func(context.Context, *P) iter.Seq2[a2a.Event, error]) streamMethod {
	return func(ctx context.Context, req *jsonrpc2.Request) iter.Seq2[a2a.Event, error] {
		params := new(P)
		if err := req.UnmarshalParams(params); err != nil {
			return errSeq(err)
		}
		return fn(ctx, params)
	}
}

func (h *JSONRPCHandler) serveAgentCard(w http.ResponseWriter, r *http.Request) {
	if h.agentCard == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.MarshalWrite(w, h.agentCard); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write agent card", slog.Any("error", err))
	}
}

func (h *JSONRPCHandler) serveRPC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, received, err := jsonrpc2.DecodeRequest(r.Body)
	if err != nil {
		var id jsonrpc2.ID
		if req != nil {
			id = req.ID
		}
		h.logger.DebugContext(ctx, "rejected JSON-RPC request", slog.Any("error", err))
		h.writeResponse(w, jsonrpc2.NewResponse(id, nil, err))
		return
	}

	cc, err := h.contextBuilder.Build(ctx, r)
	if err != nil {
		h.writeResponse(w, jsonrpc2.NewResponse(req.ID, nil, &a2a.InternalError{Reason: "failed to build call context", Err: err}))
		return
	}
	ctx = server.WithCallContext(ctx, cc)

	if method, ok := h.unary[req.Method]; ok {
		call := jsonrpc2.StartCall(ctx, h.meterProvider, req.Method, false, received)
		result, err := method(ctx, req)
		setActivatedExtensions(w, cc)
		resp := jsonrpc2.NewResponse(req.ID, result, err)
		sent := h.writeResponse(w, resp)
		call.End(ctx, responseCode(resp), sent)
		return
	}

	if method, ok := h.streams[req.Method]; ok {
		call := jsonrpc2.StartCall(ctx, h.meterProvider, req.Method, true, received)
		var seq iter.Seq2[a2a.Event, error]
		if h.agentCard != nil && !h.agentCard.Capabilities.Streaming {
			seq = errSeq(&a2a.UnsupportedOperationError{Operation: req.Method})
		} else {
			seq = method(ctx, req)
		}
		code, sent := h.writeStream(ctx, w, req.ID, cc, seq)
		call.End(ctx, code, sent)
		return
	}

	h.writeResponse(w, jsonrpc2.NewResponse(req.ID, nil, fmt.Errorf("%w: %s", jsonrpc2.ErrMethodNotFound, req.Method)))
}

// writeStream relays seq as server-sent events. An error before the first
// event is answered with a plain JSON-RPC error response.
func (h *JSONRPCHandler) writeStream(ctx context.Context, w http.ResponseWriter, id jsonrpc2.ID, cc *server.CallContext, seq iter.Seq2[a2a.Event, error]) (code, sent int) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		resp := jsonrpc2.NewResponse(id, nil, &a2a.InternalError{Reason: "streaming is not supported by the connection"})
		return responseCode(resp), h.writeResponse(w, resp)
	}

	started := false
	for ev, err := range seq {
		var resp *jsonrpc2.Response
		if err != nil {
			resp = jsonrpc2.NewResponse(id, nil, err)
		} else {
			data, merr := a2a.MarshalEvent(ev)
			if merr != nil {
				resp = jsonrpc2.NewResponse(id, nil, &a2a.InternalError{Reason: "failed to encode event", Err: merr})
			} else {
				resp = &jsonrpc2.Response{JSONRPC: jsonrpc2.Version, ID: id, Result: data}
			}
		}

		if !started {
			if resp.Error != nil {
				return responseCode(resp), h.writeResponse(w, resp)
			}
			setActivatedExtensions(w, cc)
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}

		n, werr := writeEvent(w, resp)
		sent += n
		if werr != nil {
			h.logger.DebugContext(ctx, "stream client went away", slog.Any("error", werr))
			return code, sent
		}
		flusher.Flush()

		if resp.Error != nil {
			return responseCode(resp), sent
		}
	}
	return code, sent
}

func writeEvent(w http.ResponseWriter, resp *jsonrpc2.Response) (int, error) {
	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)

	buf.WriteString("data: ")
	if _, err := jsonrpc2.EncodeResponse(buf, resp); err != nil {
		return 0, err
	}
	buf.WriteString("\n\n")
	return w.Write(buf.Bytes())
}

func (h *JSONRPCHandler) writeResponse(w http.ResponseWriter, resp *jsonrpc2.Response) int {
	w.Header().Set("Content-Type", "application/json")
	n, err := jsonrpc2.EncodeResponse(w, resp)
	if err != nil {
		h.logger.Error("failed to write JSON-RPC response", slog.Any("error", err))
	}
	return n
}

func setActivatedExtensions(w http.ResponseWriter, cc *server.CallContext) {
	if cc == nil {
		return
	}
	if activated := cc.ActivatedExtensions(); len(activated) > 0 {
		w.Header().Set(server.ExtensionsHeader, strings.Join(activated, ", "))
	}
}

func responseCode(resp *jsonrpc2.Response) int {
	if resp.Error == nil {
		return 0
	}
	return int(resp.Error.Code)
}
