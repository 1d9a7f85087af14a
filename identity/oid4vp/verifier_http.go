// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package oid4vp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"
)

// maxResponseSize bounds direct_post bodies.
const maxResponseSize = 1 << 20

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitzero"`
}

// Handler returns the wallet facing routes, rooted at the path of the base URL:
//
//	GET  {base}/jwks             request object verification keys
//	GET  {base}/authorize/{id}   signed request object
//	POST {base}/response/{id}    direct_post response
func (v *Verifier) Handler() http.Handler {
	prefix := strings.TrimSuffix(v.baseURL.Path, "/")

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+prefix+"/jwks", v.handleJWKS)
	mux.HandleFunc("GET "+prefix+"/authorize/{id}", v.handleAuthorize)
	mux.HandleFunc("POST "+prefix+"/response/{id}", v.handleResponse)
	return mux
}

func (v *Verifier) handleJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/jwk-set+json")
	if err := json.MarshalWrite(w, v.jwks); err != nil {
		v.logger.ErrorContext(r.Context(), "failed to write jwks", slog.Any("error", err))
	}
}

func (v *Verifier) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	signed, err := v.RequestObject(r.Context(), id)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		v.writeError(w, r, status, "invalid_request", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/"+requestObjectType)
	_, _ = w.Write([]byte(signed))
}

func (v *Verifier) handleResponse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxResponseSize)
	if err := r.ParseForm(); err != nil {
		v.writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	id := r.PathValue("id")
	if state := r.PostForm.Get("state"); state != "" && state != id {
		v.writeError(w, r, http.StatusBadRequest, "invalid_request", "state does not match the session")
		return
	}

	var vpToken map[string][]string
	if err := json.Unmarshal([]byte(r.PostForm.Get("vp_token")), &vpToken); err != nil {
		v.writeError(w, r, http.StatusBadRequest, "invalid_request", "vp_token must be a JSON object")
		return
	}

	if err := v.SubmitResponse(r.Context(), id, vpToken); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		v.writeError(w, r, status, "invalid_request", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("{}"))
}

func (v *Verifier) writeError(w http.ResponseWriter, r *http.Request, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, errorResponse{Error: code, ErrorDescription: description}); err != nil {
		v.logger.ErrorContext(r.Context(), "failed to write error response", slog.Any("error", err))
	}
}
