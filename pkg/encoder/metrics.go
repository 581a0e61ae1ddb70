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

package encoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parca-dev/treeprof/pkg/calltree"
)

const (
	lvSuccess = "success"
	lvFail    = "fail"
)

type metrics struct {
	encoded        *prometheus.CounterVec
	encodeDuration *prometheus.HistogramVec
	encodedBytes   *prometheus.HistogramVec
	samples        *prometheus.CounterVec
	locations      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		encoded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "treeprof_encoder_profiles_total",
			Help: "Total number of call trees encoded into profiles.",
		}, []string{"kind", "result"}),
		encodeDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "treeprof_encoder_encode_duration_seconds",
			Help:    "Duration of flattening and encoding a call tree.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.3, 0.6, 1, 3, 6, 10},
		}, []string{"kind"}),
		encodedBytes: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "treeprof_encoder_profile_size_bytes",
			Help:    "Size of encoded profiles.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"kind"}),
		samples: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "treeprof_encoder_samples_total",
			Help: "Total number of samples written to profiles.",
		}, []string{"kind"}),
		locations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "treeprof_encoder_locations_total",
			Help: "Total number of distinct locations written to profiles.",
		}, []string{"kind"}),
	}

	for _, k := range []calltree.Kind{calltree.KindTime, calltree.KindHeap} {
		m.encoded.WithLabelValues(string(k), lvSuccess)
		m.encoded.WithLabelValues(string(k), lvFail)
	}
	return m
}
