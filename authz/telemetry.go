// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	waitDuration metric.Float64Histogram
}

func newMetrics(m metric.Meter) *metrics {
	var (
		ms  metrics
		err error
	)

	ms.waitDuration, err = m.Float64Histogram("a2a.authz.wait.duration",
		metric.WithDescription("Time spent waiting for a context to be authorized"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
		ms.waitDuration = noop.Float64Histogram{}
	}

	return &ms
}
