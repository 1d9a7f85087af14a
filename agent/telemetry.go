// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/go-a2a/a2a-stepup/agent"

type metrics struct {
	tasks metric.Int64Counter
}

func newMetrics(m metric.Meter) *metrics {
	var (
		ms  metrics
		err error
	)

	ms.tasks, err = m.Int64Counter("a2a.agent.tasks",
		metric.WithDescription("Count of finished tasks by terminal state"),
	)
	if err != nil {
		otel.Handle(err)
		ms.tasks = noop.Int64Counter{}
	}

	return &ms
}
