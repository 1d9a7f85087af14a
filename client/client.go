// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package client talks to an A2A agent over its JSON-RPC binding and consumes
// its event streams.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-json-experiment/json"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/client/internal/sse"
)

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 4 << 10

// Option represents an option for configuring the [Client].
type Option func(*Client)

// WithHTTPClient sets the [*http.Client] for the [Client].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the [*slog.Logger] for the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client calls the A2A methods of one agent.
//
// Protocol failures are returned as [*a2a.JSONRPCError] and non-success HTTP
// statuses as [*HTTPError].
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	nextID     atomic.Int64
}

// New returns a Client posting JSON-RPC requests to url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		userAgent:  "a2a-stepup",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the JSON-RPC endpoint.
func (c *Client) URL() string { return c.url }

// SendMessage calls message/send. The result is a [*a2a.Task] or a [*a2a.Message].
func (c *Client) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.Event, error) {
	resp, err := c.call(ctx, a2a.MethodMessageSend, params)
	if err != nil {
		return nil, err
	}
	ev, err := a2a.UnmarshalEvent(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", a2a.MethodMessageSend, err)
	}
	return ev, nil
}

// GetTask calls tasks/get.
func (c *Client) GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	return c.callTask(ctx, a2a.MethodTasksGet, params)
}

// CancelTask calls tasks/cancel.
func (c *Client) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	return c.callTask(ctx, a2a.MethodTasksCancel, params)
}

// SendMessageStream calls message/stream and yields the streamed events in
// order. The request is made when iteration starts; a transport, decode or
// protocol error is yielded once and ends the sequence.
func (c *Client) SendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		resp, err := c.post(ctx, a2a.MethodMessageStream, params, "text/event-stream")
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		// Errors raised before streaming starts come back as plain JSON.
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
			rpc, err := decodeResponse(resp.Body)
			if err == nil {
				err = errors.New("agent did not open an event stream")
				if rpc.Error != nil {
					err = rpc.Error
				}
			}
			yield(nil, err)
			return
		}

		dec := sse.NewDecoder(resp.Body)
		for {
			frame, err := dec.Decode()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("read event stream: %w", err))
				return
			}

			ev, err := decodeStreamFrame(frame)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func decodeStreamFrame(frame *sse.Event) (a2a.Event, error) {
	var rpc a2a.JSONRPCResponse
	if err := json.Unmarshal([]byte(frame.Data), &rpc); err != nil {
		return nil, fmt.Errorf("decode stream frame: %w", err)
	}
	if rpc.Error != nil {
		return nil, rpc.Error
	}
	ev, err := a2a.UnmarshalEvent(rpc.Result)
	if err != nil {
		return nil, fmt.Errorf("decode stream event: %w", err)
	}
	return ev, nil
}

func (c *Client) callTask(ctx context.Context, method string, params any) (*a2a.Task, error) {
	resp, err := c.call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var t a2a.Task
	if err := json.Unmarshal(resp.Result, &t); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return &t, nil
}

func (c *Client) call(ctx context.Context, method string, params any) (*a2a.JSONRPCResponse, error) {
	resp, err := c.post(ctx, method, params, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rpc, err := decodeResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpc.Error != nil {
		return nil, rpc.Error
	}
	return rpc, nil
}

func (c *Client) post(ctx context.Context, method string, params any, accept string) (*http.Response, error) {
	rpcReq, err := a2a.NewJSONRPCRequest(c.nextID.Add(1), method, params)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.DebugContext(ctx, "sending request", slog.String("method", method), slog.String("url", c.url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

func decodeResponse(r io.Reader) (*a2a.JSONRPCResponse, error) {
	var rpc a2a.JSONRPCResponse
	if err := json.UnmarshalRead(r, &rpc); err != nil {
		return nil, err
	}
	return &rpc, nil
}
