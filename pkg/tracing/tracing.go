// Copyright 2022-2024 The Parca Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ExporterGRPC   = "grpc"
	ExporterHTTP   = "http"
	ExporterStdout = "stdout"
)

// NewExporter returns the span exporter for the given exporter type. It
// returns nil if tracing is disabled, which is the case when no address is
// given for an OTLP exporter.
func NewExporter(ctx context.Context, exporterType, address string) (sdktrace.SpanExporter, error) {
	switch exporterType {
	case ExporterStdout:
		return NewStdoutExporter(os.Stderr)
	case ExporterGRPC:
		if address == "" {
			return nil, nil
		}
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(address),
			otlptracegrpc.WithInsecure(),
		)
	case ExporterHTTP:
		if address == "" {
			return nil, nil
		}
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(address),
			otlptracehttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporterType)
	}
}

func NewStdoutExporter(w io.Writer) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(stdouttrace.WithWriter(w))
}

// NewProvider returns a tracer provider exporting to exporter, and a function
// flushing and stopping it. A nil exporter yields a noop provider.
func NewProvider(exporter sdktrace.SpanExporter, serviceVersion string) (trace.TracerProvider, func(context.Context) error, error) {
	if exporter == nil {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName("treeprof"),
			semconv.ServiceVersion(serviceVersion),
		))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, tp.Shutdown, nil
}
