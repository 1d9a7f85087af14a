// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// A2A RPC method names.
const (
	// MethodMessageSend sends a message and blocks until the task stops.
	MethodMessageSend = "message/send"
	// MethodMessageStream sends a message and streams the resulting events.
	MethodMessageStream = "message/stream"
	// MethodTasksGet returns a task snapshot.
	MethodTasksGet = "tasks/get"
	// MethodTasksCancel requests cooperative cancellation of a task.
	MethodTasksCancel = "tasks/cancel"
)

// JSONRPCVersion is the only protocol version accepted.
const JSONRPCVersion = "2.0"

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	// JSONRPC version, always "2.0".
	JSONRPC string `json:"jsonrpc"`
	// ID is a unique identifier for the request/response correlation.
	// It is kept raw so string and number ids round-trip unchanged.
	ID jsontext.Value `json:"id,omitzero"`
	// Method identifies the operation to perform.
	Method string `json:"method"`
	// Params contains parameters for the method.
	Params jsontext.Value `json:"params,omitzero"`
}

// NewJSONRPCRequest encodes params into a request for method.
func NewJSONRPCRequest(id any, method string, params any) (*JSONRPCRequest, error) {
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode request id: %w", err)
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", method, err)
	}

	return &JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      rawID,
		Method:  method,
		Params:  rawParams,
	}, nil
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	// JSONRPC version, always "2.0".
	JSONRPC string `json:"jsonrpc"`
	// ID echoes the request id.
	ID jsontext.Value `json:"id,omitzero"`
	// Result contains the successful result data.
	// Mutually exclusive with Error.
	Result jsontext.Value `json:"result,omitzero"`
	// Error contains an error object if the request failed.
	// Mutually exclusive with Result.
	Error *JSONRPCError `json:"error,omitzero"`
}

// NewJSONRPCResponse encodes result into a response for id.
func NewJSONRPCResponse(id jsontext.Value, result any) (*JSONRPCResponse, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}, nil
}

// NewJSONRPCErrorResponse returns an error response for id.
func NewJSONRPCErrorResponse(id jsontext.Value, err *JSONRPCError) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   err,
	}
}

// MessageSendConfiguration configures a message/send or message/stream request.
type MessageSendConfiguration struct {
	// Accepted output modalities by the client.
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitzero"`
	// Number of recent messages to be retrieved.
	HistoryLength *int `json:"historyLength,omitzero"`
	// If the server should treat the client as a blocking request.
	Blocking bool `json:"blocking,omitzero"`
}

// MessageSendParams are the parameters of message/send and message/stream.
type MessageSendParams struct {
	// The message being sent to the server.
	Message *Message `json:"message"`
	// Send message configuration.
	Configuration *MessageSendConfiguration `json:"configuration,omitzero"`
	// Extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// Validate reports whether p can be dispatched.
func (p *MessageSendParams) Validate() error {
	if p.Message == nil {
		return fmt.Errorf("message is required")
	}
	return p.Message.Validate()
}

// TaskQueryParams are the parameters of tasks/get.
type TaskQueryParams struct {
	// Task id.
	ID string `json:"id"`
	// Number of recent messages to be retrieved.
	HistoryLength *int `json:"historyLength,omitzero"`
	// Extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// TaskIDParams are the parameters of tasks/cancel.
type TaskIDParams struct {
	// Task id.
	ID string `json:"id"`
	// Extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}
