// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/server/agent_execution"
	"github.com/go-a2a/a2a-stepup/server/event"
	"github.com/go-a2a/a2a-stepup/server/task"
)

func testCard() *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               "Test Agent",
		Description:        "Echoes messages.",
		URL:                "http://localhost/",
		Version:            "1.0.0",
		ProtocolVersion:    a2a.Version,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities:       a2a.AgentCapabilities{Streaming: true},
	}
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()

	exec := &scriptedExecutor{fn: echo}
	rh := NewDefaultRequestHandler(exec, task.NewInMemoryStore())
	srv := httptest.NewServer(NewJSONRPCHandler(testCard(), rh, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func postRPC(t *testing.T, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func rpcBody(t *testing.T, method string, params any) string {
	t.Helper()

	req, err := a2a.NewJSONRPCRequest(1, method, params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

type sseFrame struct {
	event string
	data  string
}

func readFrames(t *testing.T, r io.Reader) []sseFrame {
	t.Helper()

	var (
		frames []sseFrame
		cur    sseFrame
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.event != "" || cur.data != "" {
				frames = append(frames, cur)
			}
			cur = sseFrame{}
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return frames
}

func TestJSONRPCHandler_AgentCard(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	for _, path := range []string{a2a.AgentCardWellKnownPath, a2a.LegacyAgentCardWellKnownPath} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		var got a2a.AgentCard
		err = json.UnmarshalRead(resp.Body, &got)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if diff := cmp.Diff(testCard(), &got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("GET %s mismatch (-want +got):\n%s", path, diff)
		}
	}
}

func TestJSONRPCHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body     string
		wantCode int
	}{
		"error: malformed json": {
			body:     `{"jsonrpc":`,
			wantCode: a2a.ErrorCodeJSONParse,
		},
		"error: wrong version": {
			body:     `{"jsonrpc":"1.0","id":1,"method":"tasks/get","params":{"id":"x"}}`,
			wantCode: a2a.ErrorCodeInvalidRequest,
		},
		"error: unknown method": {
			body:     `{"jsonrpc":"2.0","id":1,"method":"tasks/resubscribe","params":{"id":"x"}}`,
			wantCode: a2a.ErrorCodeMethodNotFound,
		},
		"error: missing params": {
			body:     `{"jsonrpc":"2.0","id":1,"method":"tasks/get"}`,
			wantCode: a2a.ErrorCodeInvalidParams,
		},
		"error: unknown task": {
			body:     `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":"missing"}}`,
			wantCode: a2a.ErrorCodeTaskNotFound,
		},
		"error: stream without message": {
			body:     `{"jsonrpc":"2.0","id":1,"method":"message/stream","params":{}}`,
			wantCode: a2a.ErrorCodeInvalidParams,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t)
			resp := postRPC(t, srv.URL+"/", tt.body)

			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var got a2a.JSONRPCResponse
			if err := json.UnmarshalRead(resp.Body, &got); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if got.Error == nil {
				t.Fatalf("response has no error: %+v", got)
			}
			if got.Error.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", got.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestJSONRPCHandler_MessageStream(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp := postRPC(t, srv.URL+"/", rpcBody(t, a2a.MethodMessageStream, sendParams("hello")))

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	frames := readFrames(t, resp.Body)
	var names []string
	var events []a2a.Event
	for _, f := range frames {
		names = append(names, f.event)

		var rpc a2a.JSONRPCResponse
		if err := json.Unmarshal([]byte(f.data), &rpc); err != nil {
			t.Fatalf("decode frame %q: %v", f.data, err)
		}
		if string(rpc.ID) != "1" {
			t.Errorf("frame id = %s, want 1", rpc.ID)
		}
		ev, err := a2a.UnmarshalEvent(rpc.Result)
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events = append(events, ev)
	}

	wantNames := []string{"task", "status-update", "status-update"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("frame names mismatch (-want +got):\n%s", diff)
	}
	wantStates := []string{"task:submitted", "status:working", "status:completed"}
	if diff := cmp.Diff(wantStates, states(events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// unflushableWriter hides the Flush method of the wrapped writer.
type unflushableWriter struct {
	http.ResponseWriter
}

func TestJSONRPCHandler_MessageStreamWithoutFlusher(t *testing.T) {
	t.Parallel()

	queues := event.NewInMemoryQueueManager(0)
	exec := &scriptedExecutor{fn: echo}
	h := NewJSONRPCHandler(testCard(), NewDefaultRequestHandler(exec, task.NewInMemoryStore(), WithQueueManager(queues)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequestWithContext(t.Context(), http.MethodPost, "/", strings.NewReader(rpcBody(t, a2a.MethodMessageStream, sendParams("hello"))))
	h.ServeHTTP(unflushableWriter{rec}, req)

	var got a2a.JSONRPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	if got.Error == nil || got.Error.Code != a2a.ErrorCodeInternalError {
		t.Errorf("message/stream error = %v, want code %d", got.Error, a2a.ErrorCodeInternalError)
	}
	if n := queues.Size(); n != 0 {
		t.Errorf("registered queues = %d, want 0", n)
	}
	if n := exec.executions(); n != 0 {
		t.Errorf("executions = %d, want 0", n)
	}
}

func TestJSONRPCHandler_MessageSendThenGet(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp := postRPC(t, srv.URL+"/", rpcBody(t, a2a.MethodMessageSend, sendParams("hello")))
	var sent a2a.JSONRPCResponse
	if err := json.UnmarshalRead(resp.Body, &sent); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sent.Error != nil {
		t.Fatalf("message/send error = %v", sent.Error)
	}
	ev, err := a2a.UnmarshalEvent(sent.Result)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	created, ok := ev.(*a2a.Task)
	if !ok {
		t.Fatalf("result = %T, want *a2a.Task", ev)
	}
	if created.Status.State != a2a.TaskStateCompleted {
		t.Errorf("state = %s, want %s", created.Status.State, a2a.TaskStateCompleted)
	}

	resp = postRPC(t, srv.URL+"/", rpcBody(t, a2a.MethodTasksGet, &a2a.TaskQueryParams{ID: created.ID}))
	var fetched a2a.JSONRPCResponse
	if err := json.UnmarshalRead(resp.Body, &fetched); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	var got a2a.Task
	if err := json.Unmarshal(fetched.Result, &got); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if got.ID != created.ID || got.Status.State != a2a.TaskStateCompleted {
		t.Errorf("tasks/get = (%s, %s), want (%s, completed)", got.ID, got.Status.State, created.ID)
	}

	resp = postRPC(t, srv.URL+"/", rpcBody(t, a2a.MethodTasksCancel, &a2a.TaskIDParams{ID: created.ID}))
	var canceled a2a.JSONRPCResponse
	if err := json.UnmarshalRead(resp.Body, &canceled); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if canceled.Error == nil || canceled.Error.Code != a2a.ErrorCodeTaskNotCancelable {
		t.Errorf("tasks/cancel error = %v, want code %d", canceled.Error, a2a.ErrorCodeTaskNotCancelable)
	}
}

func TestJSONRPCHandler_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	srv := newTestServer(t, WithPrometheus(reg, reg))

	resp, err := http.Get(srv.URL + a2a.AgentCardWellKnownPath)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`a2a_stepup_http_requests_total{code="200",method="GET"}`,
		"a2a_stepup_http_request_duration_seconds_bucket",
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("/metrics does not contain %q", want)
		}
	}
}

func TestJSONRPCHandler_WebSocket(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, WithWebSocket("/ws"))

	conn, _, err := websocket.DefaultDialer.DialContext(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(rpcBody(t, a2a.MethodMessageStream, sendParams("hello")))); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	var events []a2a.Event
	for len(events) < 3 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var rpc a2a.JSONRPCResponse
		if err := json.Unmarshal(data, &rpc); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		ev, err := a2a.UnmarshalEvent(rpc.Result)
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events = append(events, ev)
	}

	want := []string{"task:submitted", "status:working", "status:completed"}
	if diff := cmp.Diff(want, states(events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":2,"method":"tasks/get","params":{"id":"missing"}}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var rpc a2a.JSONRPCResponse
	if err := json.Unmarshal(data, &rpc); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if rpc.Error == nil || rpc.Error.Code != a2a.ErrorCodeTaskNotFound {
		t.Errorf("tasks/get error = %v, want code %d", rpc.Error, a2a.ErrorCodeTaskNotFound)
	}
}

func TestJSONRPCHandler_WebSocketOutlivesLongStream(t *testing.T) {
	t.Parallel()

	const pongWait = 200 * time.Millisecond
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *agent_execution.RequestContext, q *event.EventQueue) error {
		u, err := publishTask(ctx, rc, q)
		if err != nil {
			return err
		}
		if err := u.StartWork(ctx, "Thinking..."); err != nil {
			return err
		}
		time.Sleep(3 * pongWait)
		return u.Complete(ctx, "done")
	}}
	h := NewJSONRPCHandler(testCard(), NewDefaultRequestHandler(exec, task.NewInMemoryStore()), WithWebSocket("/ws"))
	h.wsPongWait = pongWait
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.DialContext(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func() a2a.JSONRPCResponse {
		t.Helper()
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var rpc a2a.JSONRPCResponse
		if err := json.Unmarshal(data, &rpc); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		return rpc
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(rpcBody(t, a2a.MethodMessageStream, sendParams("hello")))); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	for range 3 {
		if rpc := read(); rpc.Error != nil {
			t.Fatalf("stream error = %v", rpc.Error)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":2,"method":"tasks/get","params":{"id":"missing"}}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if rpc := read(); rpc.Error == nil || rpc.Error.Code != a2a.ErrorCodeTaskNotFound {
		t.Errorf("tasks/get error = %v, want code %d", rpc.Error, a2a.ErrorCodeTaskNotFound)
	}
}
