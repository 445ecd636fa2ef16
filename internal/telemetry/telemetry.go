// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry lazily initializes a process-wide OTel meter and tracer
// provider. Defaults to stdout exporters so the gateway runs end-to-end
// without an external collector.
package telemetry

import (
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var (
	once       sync.Once
	meterProv  *sdkmetric.MeterProvider
	tracerProv *sdktrace.TracerProvider
	meter      metric.Meter
	tracer     trace.Tracer
)

// Init sets up the global meter/tracer providers exactly once. Subsequent
// calls are no-ops. Pass io.Discard as w to silence exporter output (tests).
func Init(w io.Writer) {
	once.Do(func() {
		metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err == nil {
			meterProv = sdkmetric.NewMeterProvider(
				sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
			)
			otel.SetMeterProvider(meterProv)
		}

		traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err == nil {
			tracerProv = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(traceExp),
			)
			otel.SetTracerProvider(tracerProv)
		}

		meter = otel.Meter("forcegate")
		tracer = otel.Tracer("forcegate")
	})
}

// Meter returns the process-wide meter, initializing with a discarded
// writer if Init has not yet been called.
func Meter() metric.Meter {
	if meter == nil {
		Init(io.Discard)
	}
	return meter
}

// Tracer returns the process-wide tracer, initializing with a discarded
// writer if Init has not yet been called.
func Tracer() trace.Tracer {
	if tracer == nil {
		Init(io.Discard)
	}
	return tracer
}

// Shutdown flushes and releases both providers.
func Shutdown(ctx context.Context) error {
	var err error
	if tracerProv != nil {
		if e := tracerProv.Shutdown(ctx); e != nil {
			err = e
		}
	}
	if meterProv != nil {
		if e := meterProv.Shutdown(ctx); e != nil {
			err = e
		}
	}
	return err
}
