// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry sets up the OpenTelemetry providers of a binary: metrics
// are exported through a Prometheus registry and traces over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config describes the providers to build.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is a host:port receiving OTLP/HTTP traces. Tracing is a
	// noop when it is empty.
	OTLPEndpoint string
	// Registerer receives the otel metric collector. Required.
	Registerer prometheus.Registerer
}

// Providers holds the configured providers. Shutdown flushes and stops them.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdown []func(context.Context) error
}

// Setup builds the providers for cfg and installs them as the otel globals.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	if cfg.Registerer == nil {
		return nil, errors.New("telemetry: a prometheus registerer is required")
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	res := resource.NewSchemaless(attrs...)

	exporter, err := otelprom.New(otelprom.WithRegisterer(cfg.Registerer))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	p := &Providers{
		MeterProvider: mp,
		shutdown:      []func(context.Context) error{mp.Shutdown},
	}

	if cfg.OTLPEndpoint == "" {
		p.TracerProvider = noop.NewTracerProvider()
	} else {
		spans, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("telemetry: create otlp exporter: %w", err), mp.Shutdown(ctx))
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spans),
			sdktrace.WithResource(res),
		)
		p.TracerProvider = tp
		p.shutdown = append(p.shutdown, tp.Shutdown)
	}

	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)

	return p, nil
}

// Shutdown stops every provider, returning the joined errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}
