// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	a2a "github.com/go-a2a/a2a-stepup"
)

// maxRequestSize bounds JSON-RPC request bodies.
const maxRequestSize = 1 << 20

// Option configures a [JSONRPCHandler].
type Option func(*JSONRPCHandler)

// WithLogger sets the [*slog.Logger] for the [JSONRPCHandler].
func WithLogger(logger *slog.Logger) Option {
	return func(h *JSONRPCHandler) {
		h.logger = logger
	}
}

// WithPrometheus records HTTP metrics into reg and serves gatherer at /metrics.
func WithPrometheus(reg prometheus.Registerer, gatherer prometheus.Gatherer) Option {
	return func(h *JSONRPCHandler) {
		h.metrics = newHTTPMetrics(reg)
		h.gatherer = gatherer
	}
}

// WithWebSocket serves JSON-RPC over a WebSocket at path.
func WithWebSocket(path string) Option {
	return func(h *JSONRPCHandler) {
		h.wsPath = path
	}
}

// JSONRPCHandler serves a [RequestHandler] over HTTP.
//
//	GET  /.well-known/agent-card.json   agent card
//	GET  /.well-known/agent.json        agent card (legacy path)
//	POST /                              JSON-RPC; message/stream answers with SSE
//	GET  {ws path}                      JSON-RPC over WebSocket, when enabled
//	GET  /metrics                       Prometheus metrics, when enabled
type JSONRPCHandler struct {
	card       *a2a.AgentCard
	handler    RequestHandler
	logger     *slog.Logger
	metrics    *httpMetrics
	gatherer   prometheus.Gatherer
	wsPath     string
	wsPongWait time.Duration
	upgrader   websocket.Upgrader
	root       http.Handler
}

var _ http.Handler = (*JSONRPCHandler)(nil)

// NewJSONRPCHandler returns an HTTP handler publishing card and dispatching
// JSON-RPC requests to handler.
func NewJSONRPCHandler(card *a2a.AgentCard, handler RequestHandler, opts ...Option) *JSONRPCHandler {
	h := &JSONRPCHandler{
		card:    card,
		handler: handler,
		logger:  slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		wsPongWait: defaultWSPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+a2a.AgentCardWellKnownPath, h.handleAgentCard)
	mux.HandleFunc("GET "+a2a.LegacyAgentCardWellKnownPath, h.handleAgentCard)
	mux.HandleFunc("POST /{$}", h.handleRPC)
	if h.wsPath != "" {
		mux.HandleFunc("GET "+h.wsPath, h.handleWebSocket)
	}
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	h.root = mux
	if h.metrics != nil {
		h.root = h.metrics.middleware(mux)
	}
	return h
}

// ServeHTTP implements [http.Handler].
func (h *JSONRPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *JSONRPCHandler) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.MarshalWrite(w, h.card); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write agent card", slog.Any("error", err))
	}
}

func (h *JSONRPCHandler) handleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	defer r.Body.Close()

	var req a2a.JSONRPCRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		h.writeResponse(w, r, a2a.NewJSONRPCErrorResponse(nil, a2a.NewJSONParseError(err.Error())))
		return
	}
	if rpcErr := validateRequest(&req); rpcErr != nil {
		h.writeResponse(w, r, a2a.NewJSONRPCErrorResponse(req.ID, rpcErr))
		return
	}

	h.logger.DebugContext(r.Context(), "handling request", slog.String("method", req.Method))

	if req.Method != a2a.MethodMessageStream {
		h.writeResponse(w, r, h.call(r.Context(), &req))
		return
	}

	// a prepared stream holds the task's queue until it is consumed
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeResponse(w, r, a2a.NewJSONRPCErrorResponse(req.ID, a2a.NewInternalError(errStreamingUnsupported.Error())))
		return
	}

	events, rpcErr := h.stream(r.Context(), &req)
	if rpcErr != nil {
		h.writeResponse(w, r, a2a.NewJSONRPCErrorResponse(req.ID, rpcErr))
		return
	}

	sse := newEventStream(w, flusher)
	for ev, err := range events {
		name, resp := streamResponse(req.ID, ev, err)
		if err := sse.Send(name, resp); err != nil {
			h.logger.WarnContext(r.Context(), "stream closed by client", slog.Any("error", err))
			return
		}
	}
}

// call dispatches a unary method.
func (h *JSONRPCHandler) call(ctx context.Context, req *a2a.JSONRPCRequest) *a2a.JSONRPCResponse {
	var (
		result any
		err    error
	)
	switch req.Method {
	case a2a.MethodMessageSend:
		params, rpcErr := decodeParams[a2a.MessageSendParams](req.Params)
		if rpcErr != nil {
			return a2a.NewJSONRPCErrorResponse(req.ID, rpcErr)
		}
		result, err = h.handler.OnMessageSend(ctx, params)

	case a2a.MethodTasksGet:
		params, rpcErr := decodeParams[a2a.TaskQueryParams](req.Params)
		if rpcErr != nil {
			return a2a.NewJSONRPCErrorResponse(req.ID, rpcErr)
		}
		result, err = h.handler.OnGetTask(ctx, params)

	case a2a.MethodTasksCancel:
		params, rpcErr := decodeParams[a2a.TaskIDParams](req.Params)
		if rpcErr != nil {
			return a2a.NewJSONRPCErrorResponse(req.ID, rpcErr)
		}
		result, err = h.handler.OnCancelTask(ctx, params)

	default:
		return a2a.NewJSONRPCErrorResponse(req.ID, a2a.NewMethodNotFoundError(req.Method))
	}

	if err != nil {
		return a2a.NewJSONRPCErrorResponse(req.ID, toJSONRPCError(err))
	}
	resp, err := a2a.NewJSONRPCResponse(req.ID, result)
	if err != nil {
		return a2a.NewJSONRPCErrorResponse(req.ID, a2a.NewInternalError(err.Error()))
	}
	return resp
}

// stream dispatches message/stream.
func (h *JSONRPCHandler) stream(ctx context.Context, req *a2a.JSONRPCRequest) (iter.Seq2[a2a.Event, error], *a2a.JSONRPCError) {
	params, rpcErr := decodeParams[a2a.MessageSendParams](req.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	events, err := h.handler.OnMessageSendStream(ctx, params)
	if err != nil {
		return nil, toJSONRPCError(err)
	}
	return events, nil
}

func (h *JSONRPCHandler) writeResponse(w http.ResponseWriter, r *http.Request, resp *a2a.JSONRPCResponse) {
	if resp.Error != nil {
		h.logger.WarnContext(r.Context(), "request failed",
			slog.Int("code", resp.Error.Code),
			slog.String("message", resp.Error.Message),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.MarshalWrite(w, resp); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write response", slog.Any("error", err))
	}
}

// streamResponse wraps one streamed event, or the error ending the stream, in
// a JSON-RPC response named after the event kind.
func streamResponse(id jsontext.Value, ev a2a.Event, err error) (string, *a2a.JSONRPCResponse) {
	if err != nil {
		return "error", a2a.NewJSONRPCErrorResponse(id, toJSONRPCError(err))
	}
	resp, err := a2a.NewJSONRPCResponse(id, ev)
	if err != nil {
		return "error", a2a.NewJSONRPCErrorResponse(id, a2a.NewInternalError(err.Error()))
	}
	return string(ev.GetEventKind()), resp
}

func validateRequest(req *a2a.JSONRPCRequest) *a2a.JSONRPCError {
	if req.JSONRPC != a2a.JSONRPCVersion {
		return a2a.NewInvalidRequestError(`jsonrpc must be "2.0"`)
	}
	if req.Method == "" {
		return a2a.NewInvalidRequestError("method is required")
	}
	return nil
}

func decodeParams[T any](raw jsontext.Value) (*T, *a2a.JSONRPCError) {
	if len(raw) == 0 {
		return nil, a2a.NewInvalidParamsError("params are required")
	}
	params := new(T)
	if err := json.Unmarshal(raw, params); err != nil {
		return nil, a2a.NewInvalidParamsError(err.Error())
	}
	return params, nil
}
