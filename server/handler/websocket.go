// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/gorilla/websocket"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/internal/pool"
)

const (
	wsWriteWait       = 10 * time.Second
	defaultWSPongWait = 60 * time.Second
)

// handleWebSocket serves JSON-RPC requests sent as text messages. Unary methods
// are answered with one message; message/stream with one message per event.
// Requests on a connection are handled in order.
func (h *JSONRPCHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &wsSession{conn: conn}
	defer s.close()

	go s.pingLoop(ctx, (h.wsPongWait*9)/10)

	extend := func() error {
		return conn.SetReadDeadline(time.Now().Add(h.wsPongWait))
	}
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WarnContext(ctx, "websocket read failed", slog.Any("error", err))
			}
			return
		}
		if err := h.serveWebSocketMessage(ctx, s, message); err != nil {
			h.logger.WarnContext(ctx, "websocket write failed", slog.Any("error", err))
			return
		}
		// pongs are not read while a message is served
		_ = extend()
	}
}

func (h *JSONRPCHandler) serveWebSocketMessage(ctx context.Context, s *wsSession, message []byte) error {
	var req a2a.JSONRPCRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return s.send(a2a.NewJSONRPCErrorResponse(nil, a2a.NewJSONParseError(err.Error())))
	}
	if rpcErr := validateRequest(&req); rpcErr != nil {
		return s.send(a2a.NewJSONRPCErrorResponse(req.ID, rpcErr))
	}

	if req.Method != a2a.MethodMessageStream {
		return s.send(h.call(ctx, &req))
	}

	events, rpcErr := h.stream(ctx, &req)
	if rpcErr != nil {
		return s.send(a2a.NewJSONRPCErrorResponse(req.ID, rpcErr))
	}
	for ev, err := range events {
		_, resp := streamResponse(req.ID, ev, err)
		if err := s.send(resp); err != nil {
			return err
		}
	}
	return nil
}

// wsSession serializes writes on a connection shared by the request loop and
// the keepalive pings.
type wsSession struct {
	conn *websocket.Conn

	mu sync.Mutex
}

func (s *wsSession) send(resp *a2a.JSONRPCResponse) error {
	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)
	if err := json.MarshalWrite(buf, resp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, buf.Bytes())
}

func (s *wsSession) pingLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *wsSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
	_ = s.conn.Close()
}
