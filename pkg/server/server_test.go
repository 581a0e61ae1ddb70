// Copyright 2024 The Parca Authors
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

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-kit/log"
	pprofprofile "github.com/google/pprof/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"

	"github.com/parca-dev/treeprof/pkg/encoder"
	"github.com/parca-dev/treeprof/pkg/hash"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const timeSnapshot = `{
  "startTime": 0,
  "endTime": 3000,
  "topDownRoot": {"name": "(root)", "children": [
    {"name": "A", "scriptName": "a.js", "scriptId": 1, "lineNumber": 1, "hitCount": 3},
    {"name": "B", "scriptName": "b.js", "scriptId": 2, "lineNumber": 1, "hitCount": 5}
  ]}
}`

const heapSnapshot = `{"root": {"name": "(root)", "children": [
  {"name": "grow", "scriptId": 3, "lineNumber": 4,
   "allocations": [{"sizeBytes": 10, "count": 8}, {"sizeBytes": 72, "count": 15}]}
]}}`

type recordingWriter struct {
	mtx    sync.Mutex
	labels []model.LabelSet
}

func (w *recordingWriter) Write(_ context.Context, labels model.LabelSet, _ []byte) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	w.labels = append(w.labels, labels)
	return nil
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := encoder.NewManager(log.NewNopLogger(), reg, noop.NewTracerProvider(), nil)
	if opts.TimeIntervalMicros == 0 {
		opts.TimeIntervalMicros = 1000
	}
	if opts.HeapIntervalBytes == 0 {
		opts.HeapIntervalBytes = 512 * 1024
	}
	ts := httptest.NewServer(New(log.NewNopLogger(), reg, m, opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string, header http.Header) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEncodeTime(t *testing.T) {
	w := &recordingWriter{}
	ts := newTestServer(t, Options{
		ExternalLabels: model.LabelSet{"region": "eu"},
		Writer:         w,
	})

	resp := post(t, ts, "/encode/time?start=42", timeSnapshot, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, contentTypeProfile, resp.Header.Get("Content-Type"))
	require.Empty(t, resp.Header.Get("Content-Encoding"))
	require.Regexp(t, `^"[0-9a-f]{16}"$`, resp.Header.Get("ETag"))

	p, err := pprofprofile.Parse(resp.Body)
	require.NoError(t, err)
	require.Equal(t, int64(42), p.TimeNanos)
	require.Equal(t, int64(3_000_000), p.DurationNanos)
	require.Equal(t, int64(1000), p.Period)
	require.Len(t, p.Sample, 2)
	require.Equal(t, []int64{3, 3000}, p.Sample[0].Value)

	require.Equal(t, []model.LabelSet{{"__name__": "time", "region": "eu"}}, w.labels)
}

func TestEncodeHeapGzip(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp := post(t, ts, "/encode/heap?interval=1024", heapSnapshot, http.Header{"Accept-Encoding": {"br, gzip;q=0.9"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	// Parse detects and strips gzip itself.
	p, err := pprofprofile.Parse(resp.Body)
	require.NoError(t, err)
	require.Equal(t, int64(1024), p.Period)
	require.Len(t, p.Sample, 2)
	require.Equal(t, []int64{15, 1080}, p.Sample[1].Value)
}

func TestEncodeETagFollowsContentEncoding(t *testing.T) {
	ts := newTestServer(t, Options{})

	plain := post(t, ts, "/encode/heap?interval=1024&start=1", heapSnapshot, http.Header{"Accept-Encoding": {"identity"}})
	plainBody, err := io.ReadAll(plain.Body)
	require.NoError(t, err)

	gzipped := post(t, ts, "/encode/heap?interval=1024&start=1", heapSnapshot, http.Header{"Accept-Encoding": {"gzip"}})
	gzippedBody, err := io.ReadAll(gzipped.Body)
	require.NoError(t, err)

	require.Equal(t, "gzip", gzipped.Header.Get("Content-Encoding"))
	require.Equal(t, "Accept-Encoding", plain.Header.Get("Vary"))
	require.Equal(t, "Accept-Encoding", gzipped.Header.Get("Vary"))
	require.Equal(t, hash.ETag(plainBody), plain.Header.Get("ETag"))
	require.Equal(t, hash.ETag(gzippedBody), gzipped.Header.Get("ETag"))
	require.NotEqual(t, plain.Header.Get("ETag"), gzipped.Header.Get("ETag"))
}

func TestEncodeErrors(t *testing.T) {
	ts := newTestServer(t, Options{})

	for _, tc := range []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "unknown kind", path: "/encode/cpu", body: timeSnapshot, status: http.StatusNotFound},
		{name: "malformed json", path: "/encode/time", body: `{"topDownRoot":`, status: http.StatusBadRequest},
		{name: "bad interval", path: "/encode/heap?interval=abc", body: heapSnapshot, status: http.StatusBadRequest},
		{name: "zero interval", path: "/encode/time?interval=0", body: timeSnapshot, status: http.StatusBadRequest},
		{name: "bad start", path: "/encode/time?start=yesterday", body: timeSnapshot, status: http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, ts, tc.path, tc.body, nil)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}

	resp, err := ts.Client().Get(ts.URL + "/encode/time")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsAndStatus(t *testing.T) {
	ts := newTestServer(t, Options{Config: "comments:\n- hello\n"})

	post(t, ts, "/encode/time", timeSnapshot, nil)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), `treeprof_encoder_profiles_total{kind="time",result="success"} 1`)
	require.Contains(t, string(body), `http_server_requests_total{code="200",handler="encode",method="post"} 1`)

	resp, err = ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "/encode/heap")
	require.Contains(t, string(body), "- hello")

	resp, err = ts.Client().Get(ts.URL + "/healthy")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
