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

package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	inFlightGauge            prometheus.Gauge
	requestTotalCount        *prometheus.CounterVec
	requestDurationHistogram *prometheus.HistogramVec
	responseSizeHistogram    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		inFlightGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "http_server_in_flight_requests",
			Help: "A gauge of requests currently being served.",
		}),
		requestTotalCount: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total http server requests by handler, code and method.",
		}, []string{"handler", "code", "method"}),
		requestDurationHistogram: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:                        "http_server_request_duration_seconds",
				Help:                        "A histogram of request latencies.",
				Buckets:                     prometheus.DefBuckets,
				NativeHistogramBucketFactor: 1.1,
			},
			[]string{"handler", "code", "method"},
		),
		responseSizeHistogram: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_server_response_size_bytes",
				Help:    "A histogram of response sizes.",
				Buckets: prometheus.ExponentialBuckets(256, 4, 10),
			},
			[]string{"handler", "code", "method"},
		),
	}
}

// Instrumenter wraps handlers with request metrics.
type Instrumenter struct {
	m *metrics
}

func NewInstrumenter(reg prometheus.Registerer) *Instrumenter {
	return &Instrumenter{m: newMetrics(reg)}
}

// Handler instruments h, labelling its metrics with name.
func (i *Instrumenter) Handler(name string, h http.Handler) http.Handler {
	if i == nil {
		return h
	}

	labels := prometheus.Labels{"handler": name}
	return promhttp.InstrumentHandlerInFlight(
		i.m.inFlightGauge,
		promhttp.InstrumentHandlerCounter(
			i.m.requestTotalCount.MustCurryWith(labels),
			promhttp.InstrumentHandlerDuration(
				i.m.requestDurationHistogram.MustCurryWith(labels),
				promhttp.InstrumentHandlerResponseSize(
					i.m.responseSizeHistogram.MustCurryWith(labels),
					h,
				),
			),
		),
	)
}

func (i *Instrumenter) HandlerFunc(name string, h http.HandlerFunc) http.Handler {
	return i.Handler(name, h)
}
