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

// Package profilewriter hands encoded profiles to their destination.
package profilewriter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/common/model"
)

// ProfileWriter writes an encoded profile identified by labels.
type ProfileWriter interface {
	Write(ctx context.Context, labels model.LabelSet, data []byte) error
}

// FileProfileWriter writes profiles to a local directory.
type FileProfileWriter struct {
	dir      string
	compress bool
}

// NewFileProfileWriter creates a new FileProfileWriter.
func NewFileProfileWriter(dirPath string, compress bool) *FileProfileWriter {
	return &FileProfileWriter{dir: dirPath, compress: compress}
}

// Filename returns the name a profile is stored under. It is derived from the
// profile name, the label set and the content, so writing the same profile
// twice replaces the earlier file.
func Filename(labels model.LabelSet, data []byte, compressed bool) string {
	name := string(labels[model.MetricNameLabel])
	if name == "" {
		name = "profile"
	}

	path := fmt.Sprintf("%s_%s_%016x.pb", name, labels.Fingerprint(), xxhash.Sum64(data))
	if compressed {
		path += ".gz"
	}
	return path
}

func (fw *FileProfileWriter) Write(ctx context.Context, labels model.LabelSet, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(fw.dir, 0o755); err != nil {
		return fmt.Errorf("could not use output dir, %s: %w", fw.dir, err)
	}

	path := filepath.Join(fw.dir, Filename(labels, data, fw.compress))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if err := write(f, data, fw.compress); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// StreamProfileWriter writes profiles one after another to a single stream.
type StreamProfileWriter struct {
	mtx      sync.Mutex
	w        io.Writer
	compress bool
}

// NewStreamProfileWriter creates a new StreamProfileWriter.
func NewStreamProfileWriter(w io.Writer, compress bool) *StreamProfileWriter {
	return &StreamProfileWriter{w: w, compress: compress}
}

func (sw *StreamProfileWriter) Write(ctx context.Context, _ model.LabelSet, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sw.mtx.Lock()
	defer sw.mtx.Unlock()

	return write(sw.w, data, sw.compress)
}

// Compress returns data as a gzip member.
func Compress(data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(data)/2))
	if err := write(buf, data, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(w io.Writer, data []byte, compress bool) error {
	if !compress {
		_, err := w.Write(data)
		return err
	}

	zw, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
