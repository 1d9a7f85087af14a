// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package idset provides concurrency-safe sets of identifiers.
package idset

import "sync"

// Set is a set of string identifiers safe for concurrent use.
type Set interface {
	Contains(id string) bool
	Add(id string)
}

// Memory is an in-process [Set].
type Memory struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

var _ Set = (*Memory)(nil)

// NewMemory returns an empty set holding ids.
func NewMemory(ids ...string) *Memory {
	s := &Memory{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s *Memory) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add inserts id. Adding an id twice is a no-op.
func (s *Memory) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// Len returns the number of ids in the set.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
