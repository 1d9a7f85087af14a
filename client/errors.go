// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import "fmt"

// HTTPError reports a non-success HTTP status from the agent.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("agent responded %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("agent responded %s", e.Status)
}
