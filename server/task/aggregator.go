// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"slices"

	a2a "github.com/go-a2a/a2a-stepup"
)

// Apply folds ev into task and reports whether task changed.
//
// A task event replaces the snapshot. A status update moves the previous status
// message into the history before installing the new status. An artifact update
// replaces the artifact with the same ID, or extends its parts when Append is
// set. Messages do not change the snapshot.
func Apply(task *a2a.Task, ev a2a.Event) (*a2a.Task, bool, error) {
	switch e := ev.(type) {
	case *a2a.Task:
		return e.Clone(), true, nil

	case *a2a.TaskStatusUpdateEvent:
		if task == nil {
			return nil, false, &NotFoundError{TaskID: e.TaskID}
		}
		if prev := task.Status.Message; prev != nil && !task.HasMessage(prev.MessageID) {
			task.History = append(task.History, prev)
		}
		task.Status = e.Status
		if len(e.Metadata) > 0 {
			if task.Metadata == nil {
				task.Metadata = make(map[string]any, len(e.Metadata))
			}
			for k, v := range e.Metadata {
				task.Metadata[k] = v
			}
		}
		return task, true, nil

	case *a2a.TaskArtifactUpdateEvent:
		if task == nil {
			return nil, false, &NotFoundError{TaskID: e.TaskID}
		}
		if e.Artifact == nil {
			return task, false, fmt.Errorf("artifact update for task %s has no artifact", e.TaskID)
		}
		appendArtifact(task, e.Artifact, e.Append)
		return task, true, nil

	case *a2a.Message:
		return task, false, nil

	default:
		return task, false, fmt.Errorf("unsupported event %T", ev)
	}
}

func appendArtifact(task *a2a.Task, artifact *a2a.Artifact, extend bool) {
	idx := slices.IndexFunc(task.Artifacts, func(a *a2a.Artifact) bool {
		return a.ArtifactID == artifact.ArtifactID
	})

	switch {
	case idx < 0:
		task.Artifacts = append(task.Artifacts, artifact.Clone())
	case extend:
		existing := task.Artifacts[idx].Clone()
		existing.Parts = append(existing.Parts, artifact.Parts...)
		task.Artifacts[idx] = existing
	default:
		task.Artifacts[idx] = artifact.Clone()
	}
}

// Aggregator keeps the persisted snapshot of a task in step with the events its
// executor produces.
type Aggregator struct {
	store Store
}

// NewAggregator returns an Aggregator saving into store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Process applies ev to the stored task it refers to and saves the result. It
// returns the updated snapshot, or nil for events that carry no task state.
func (a *Aggregator) Process(ctx context.Context, ev a2a.Event) (*a2a.Task, error) {
	if _, ok := ev.(*a2a.Message); ok {
		return nil, nil
	}

	var current *a2a.Task
	if _, isTask := ev.(*a2a.Task); !isTask {
		t, err := a.store.Get(ctx, ev.GetTaskID())
		if err != nil {
			return nil, err
		}
		current = t
	}

	next, changed, err := Apply(current, ev)
	if err != nil {
		return nil, err
	}
	if !changed {
		return next, nil
	}
	if err := a.store.Save(ctx, next); err != nil {
		return nil, err
	}

	return next, nil
}
