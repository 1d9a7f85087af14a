// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
)

// JSON-RPC and A2A error codes.
const (
	ErrorCodeJSONParse         = -32700
	ErrorCodeInvalidRequest    = -32600
	ErrorCodeMethodNotFound    = -32601
	ErrorCodeInvalidParams     = -32602
	ErrorCodeInternalError     = -32603
	ErrorCodeTaskNotFound      = -32001
	ErrorCodeTaskNotCancelable = -32002
)

// JSONRPCError represents a JSON-RPC 2.0 error object. It implements error so
// protocol failures can be returned through ordinary error paths.
type JSONRPCError struct {
	// Code is the error code.
	Code int `json:"code"`
	// Message is a short description of the error.
	Message string `json:"message"`
	// Data contains optional additional error details.
	Data any `json:"data,omitzero"`
}

// Error implements error.
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewJSONParseError reports an invalid JSON payload.
func NewJSONParseError(detail string) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeJSONParse, Message: "Invalid JSON payload", Data: detail}
}

// NewInvalidRequestError reports a request that is not a valid JSON-RPC request or
// cannot be applied to the addressed task.
func NewInvalidRequestError(detail string) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeInvalidRequest, Message: "Request payload validation error", Data: detail}
}

// NewMethodNotFoundError reports an unknown method.
func NewMethodNotFoundError(method string) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeMethodNotFound, Message: "Method not found", Data: method}
}

// NewInvalidParamsError reports invalid method parameters.
func NewInvalidParamsError(detail string) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeInvalidParams, Message: "Invalid parameters", Data: detail}
}

// NewInternalError reports a server side failure.
func NewInternalError(detail string) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeInternalError, Message: "Internal error", Data: detail}
}

// NewTaskNotFoundError reports an unknown task id.
func NewTaskNotFoundError(taskID string) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeTaskNotFound, Message: "Task not found", Data: taskID}
}

// NewTaskNotCancelableError reports a cancel request for a task in a terminal state.
func NewTaskNotCancelableError(taskID string, state TaskState) *JSONRPCError {
	return &JSONRPCError{
		Code:    ErrorCodeTaskNotCancelable,
		Message: "Task cannot be canceled",
		Data:    fmt.Sprintf("task %s is %s", taskID, state),
	}
}
