// Copyright 2023-2024 The Parca Authors
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

// Package encoder wraps call tree flattening with logging, metrics and
// tracing.
package encoder

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/parca-dev/treeprof/pkg/calltree"
	"github.com/parca-dev/treeprof/pkg/pprof"
)

type Manager struct {
	logger   log.Logger
	metrics  *metrics
	tracer   trace.Tracer
	comments []string
}

// NewManager returns a Manager. Every profile it produces carries the given
// comments.
func NewManager(
	logger log.Logger,
	reg prometheus.Registerer,
	tp trace.TracerProvider,
	comments []string,
) *Manager {
	return &Manager{
		logger:   logger,
		metrics:  newMetrics(reg),
		tracer:   tp.Tracer("encoder"),
		comments: comments,
	}
}

// EncodeTime flattens a CPU time call tree into an encoded profile.
func (m *Manager) EncodeTime(ctx context.Context, tp *calltree.TimeProfile, intervalMicros int64, start time.Time) ([]byte, error) {
	return m.encode(ctx, calltree.KindTime, func() *pprof.Profile {
		p := calltree.BuildTimeProfile(tp, intervalMicros, start.UnixNano())
		p.SetDefaultSampleType("wall")
		return p
	})
}

// EncodeHeap flattens a sampling heap call tree into an encoded profile.
func (m *Manager) EncodeHeap(ctx context.Context, ap *calltree.AllocationProfile, intervalBytes int64, start time.Time) ([]byte, error) {
	return m.encode(ctx, calltree.KindHeap, func() *pprof.Profile {
		p := calltree.BuildHeapProfile(ap, intervalBytes, start.UnixNano())
		p.SetDefaultSampleType("space")
		return p
	})
}

func (m *Manager) encode(ctx context.Context, kind calltree.Kind, build func() *pprof.Profile) (data []byte, err error) { //nolint:nonamedreturns
	ctx, span := m.tracer.Start(ctx, "Manager.Encode")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)))

	defer func() {
		if err != nil {
			m.metrics.encoded.WithLabelValues(string(kind), lvFail).Inc()
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return
		}
		m.metrics.encoded.WithLabelValues(string(kind), lvSuccess).Inc()
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("encode %s profile: %w", kind, err)
	}

	start := time.Now()

	_, buildSpan := m.tracer.Start(ctx, "Manager.Build")
	p := build()
	for _, c := range m.comments {
		p.AddComment(c)
	}
	stats := p.Stats()
	buildSpan.End()

	data = p.Bytes()
	m.metrics.encodeDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	m.metrics.encodedBytes.WithLabelValues(string(kind)).Observe(float64(len(data)))
	m.metrics.samples.WithLabelValues(string(kind)).Add(float64(stats.Samples))
	m.metrics.locations.WithLabelValues(string(kind)).Add(float64(stats.Locations))

	span.SetAttributes(
		attribute.Int("samples", stats.Samples),
		attribute.Int("locations", stats.Locations),
		attribute.Int("functions", stats.Functions),
		attribute.Int("bytes", len(data)),
	)
	level.Debug(m.logger).Log(
		"msg", "profile encoded",
		"kind", kind,
		"samples", stats.Samples,
		"locations", stats.Locations,
		"functions", stats.Functions,
		"strings", stats.Strings,
		"size", humanize.IBytes(uint64(len(data))),
		"duration", time.Since(start),
	)
	return data, nil
}
