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

// Package server exposes call tree encoding over HTTP.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/parca-dev/treeprof/pkg/calltree"
	"github.com/parca-dev/treeprof/pkg/encoder"
	"github.com/parca-dev/treeprof/pkg/hash"
	instrumentedhttp "github.com/parca-dev/treeprof/pkg/http"
	"github.com/parca-dev/treeprof/pkg/profilewriter"
	"github.com/parca-dev/treeprof/pkg/template"
)

const (
	contentTypeProfile = "application/vnd.google.protobuf"
	maxSnapshotBytes   = 256 << 20
)

var errBadParam = errors.New("bad query parameter")

// Options configures a Server.
type Options struct {
	TimeIntervalMicros int64
	HeapIntervalBytes  int64
	ExternalLabels     model.LabelSet
	// Writer, if set, receives a copy of every encoded profile.
	Writer profilewriter.ProfileWriter
	// Config is shown on the status page.
	Config string
}

type Server struct {
	logger  log.Logger
	encoder *encoder.Manager
	opts    Options

	handler http.Handler
}

func New(logger log.Logger, reg *prometheus.Registry, m *encoder.Manager, opts Options) *Server {
	s := &Server{
		logger:  logger,
		encoder: m,
		opts:    opts,
	}

	inst := instrumentedhttp.NewInstrumenter(reg)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", inst.Handler("metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	mux.HandleFunc("GET /healthy", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("GET /ready", func(http.ResponseWriter, *http.Request) {})
	mux.Handle("POST /encode/{kind}", inst.HandlerFunc("encode", s.handleEncode))
	mux.Handle("GET /{$}", inst.HandlerFunc("status", s.handleStatus))

	s.handler = otelhttp.NewHandler(mux, "treeprof")
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := template.StatusPageTemplate.Execute(w, &template.StatusPage{
		Endpoints: []template.Endpoint{
			{Method: http.MethodPost, Path: "/encode/time", Description: "Encode a JSON time profile snapshot."},
			{Method: http.MethodPost, Path: "/encode/heap", Description: "Encode a JSON heap profile snapshot."},
			{Method: http.MethodGet, Path: "/metrics", Description: "Prometheus metrics."},
		},
		TimeIntervalMicros: s.opts.TimeIntervalMicros,
		HeapIntervalBytes:  s.opts.HeapIntervalBytes,
		ExternalLabels:     s.opts.ExternalLabels,
		Config:             s.opts.Config,
	})
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to render status page", "err", err)
	}
}

// handleEncode accepts a JSON snapshot and responds with the encoded
// profile. The interval and start (unix nanoseconds) query parameters
// override the configured sampling interval and the current time.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	kind, err := calltree.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	interval := s.opts.TimeIntervalMicros
	if kind == calltree.KindHeap {
		interval = s.opts.HeapIntervalBytes
	}
	interval, err = intParam(r, "interval", interval)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if interval <= 0 {
		http.Error(w, fmt.Sprintf("%v: interval must be positive", errBadParam), http.StatusBadRequest)
		return
	}
	startNanos, err := intParam(r, "start", time.Now().UnixNano())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Unix(0, startNanos)

	body := http.MaxBytesReader(w, r.Body, maxSnapshotBytes)
	var data []byte
	switch kind {
	case calltree.KindTime:
		tp, err := calltree.ReadTimeProfile(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err = s.encoder.EncodeTime(r.Context(), tp, interval, start)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case calltree.KindHeap:
		ap, err := calltree.ReadAllocationProfile(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err = s.encoder.EncodeHeap(r.Context(), ap, interval, start)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if s.opts.Writer != nil {
		labels := s.opts.ExternalLabels.Clone()
		labels[model.MetricNameLabel] = model.LabelValue(kind)
		if err := s.opts.Writer.Write(r.Context(), labels, data); err != nil {
			level.Warn(s.logger).Log("msg", "failed to store profile", "kind", kind, "err", err)
		}
	}

	w.Header().Set("Content-Type", contentTypeProfile)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment;filename=%s.pb", kind))
	w.Header().Set("Vary", "Accept-Encoding")
	if acceptsGzip(r) {
		if data, err = profilewriter.Compress(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
	}
	// The ETag identifies the bytes on the wire.
	w.Header().Set("ETag", hash.ETag(data))
	if _, err := w.Write(data); err != nil {
		level.Debug(s.logger).Log("msg", "failed to write response", "err", err)
	}
}

func intParam(r *http.Request, name string, def int64) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %w", errBadParam, name, err)
	}
	return i, nil
}

func acceptsGzip(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.SplitN(enc, ";", 2)[0]) == "gzip" {
			return true
		}
	}
	return false
}
