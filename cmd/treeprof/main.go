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
//

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/pprof"
	"time"

	"github.com/alecthomas/kong"
	"github.com/common-nighthawk/go-figure"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	pprofprofile "github.com/google/pprof/profile"
	okrun "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/model"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/parca-dev/treeprof/flags"
	"github.com/parca-dev/treeprof/pkg/buildinfo"
	"github.com/parca-dev/treeprof/pkg/calltree"
	"github.com/parca-dev/treeprof/pkg/config"
	"github.com/parca-dev/treeprof/pkg/encoder"
	"github.com/parca-dev/treeprof/pkg/hash"
	"github.com/parca-dev/treeprof/pkg/logger"
	"github.com/parca-dev/treeprof/pkg/profilewriter"
	"github.com/parca-dev/treeprof/pkg/server"
	"github.com/parca-dev/treeprof/pkg/tracing"
)

var version string

func main() {
	info := buildinfo.Fetch(version)

	f, cmd, err := flags.Parse(os.Args[1:], kong.Vars{"version": info.Version})
	if err != nil {
		fmt.Fprintln(os.Stderr, "treeprof:", err)
		os.Exit(2)
	}

	logger := logger.NewLogger(f.Log.Level, f.Log.Format, "treeprof")

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, a ...interface{}) {
		level.Debug(logger).Log("msg", fmt.Sprintf(format, a...))
	})); err != nil {
		level.Warn(logger).Log("msg", "failed to set GOMAXPROCS automatically", "err", err)
	}

	if err := run(context.Background(), logger, info, f, cmd, os.Stdout); err != nil {
		level.Error(logger).Log("msg", "command failed", "cmd", cmd, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger log.Logger, info buildinfo.Info, f flags.Flags, cmd string, stdout io.Writer) error {
	cfg, err := loadConfig(f.ConfigPath)
	if err != nil {
		return err
	}

	level.Debug(logger).Log("msg", "treeprof initialized",
		"version", info.Version,
		"commit", info.VcsRevision,
		"date", info.VcsTime,
		"go", info.GoVersion,
		"arch", info.GoArch,
		"config", cfg,
	)

	exporter, err := tracing.NewExporter(ctx, f.OTLP.Exporter, f.OTLP.Address)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp, shutdownTracing, err := tracing.NewProvider(exporter, info.Version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			level.Warn(logger).Log("msg", "failed to shut down tracing", "err", err)
		}
	}()

	switch cmd {
	case flags.CommandEncode:
		return runEncode(ctx, logger, prometheus.NewRegistry(), tp, cfg, f.Encode, stdout)
	case flags.CommandInspect:
		return runInspect(f.Inspect.Path, stdout)
	case flags.CommandServe:
		return runServe(ctx, logger, tp, cfg, f.Serve)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.LoadFile(path)
	if errors.Is(err, config.ErrEmptyConfig) {
		return &config.Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newProfileWriter(f flags.FlagsOutput, stdout io.Writer) profilewriter.ProfileWriter {
	if f.Directory != "" {
		return profilewriter.NewFileProfileWriter(f.Directory, f.Compress)
	}
	return profilewriter.NewStreamProfileWriter(stdout, f.Compress)
}

// runEncode encodes the given snapshots concurrently and writes the
// resulting profiles.
func runEncode(
	ctx context.Context,
	logger log.Logger,
	reg prometheus.Registerer,
	tp trace.TracerProvider,
	cfg *config.Config,
	f flags.CommandEncodeFlags,
	stdout io.Writer,
) error {
	if f.Time != "" && f.Heap != "" && f.Output.Directory == "" {
		return flags.ErrSharedStdout
	}

	m := encoder.NewManager(logger, reg, tp, cfg.Comments)
	w := newProfileWriter(f.Output, stdout)
	start := time.Now()

	write := func(ctx context.Context, kind calltree.Kind, data []byte) error {
		labels := cfg.LabelSet()
		labels[model.MetricNameLabel] = model.LabelValue(kind)
		if err := w.Write(ctx, labels, data); err != nil {
			return fmt.Errorf("failed to write %s profile: %w", kind, err)
		}
		level.Info(logger).Log("msg", "profile written", "kind", kind, "size", humanize.IBytes(uint64(len(data))))
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	if f.Time != "" {
		g.Go(func() error {
			read := calltree.ReadTimeProfile
			if f.TimeFormat == "folded" {
				read = calltree.ReadFoldedTimeProfile
			}
			snapshot, err := readSnapshot(f.Time, read)
			if err != nil {
				return err
			}
			data, err := m.EncodeTime(ctx, snapshot, f.Sampling.TimeInterval, start)
			if err != nil {
				return err
			}
			return write(ctx, calltree.KindTime, data)
		})
	}
	if f.Heap != "" {
		g.Go(func() error {
			snapshot, err := readSnapshot(f.Heap, calltree.ReadAllocationProfile)
			if err != nil {
				return err
			}
			data, err := m.EncodeHeap(ctx, snapshot, f.Sampling.HeapInterval, start)
			if err != nil {
				return err
			}
			return write(ctx, calltree.KindHeap, data)
		})
	}
	return g.Wait()
}

func readSnapshot[T any](path string, read func(io.Reader) (*T, error)) (*T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	s, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// runInspect prints a summary followed by the textual form of a profile.
func runInspect(path string, stdout io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p, err := pprofprofile.ParseData(data)
	if err != nil {
		return fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	fmt.Fprintf(stdout, "File: %s (%s)\n", path, humanize.IBytes(uint64(len(data))))
	fmt.Fprintf(stdout, "Hash: %016x\n", hash.Sum(data))
	fmt.Fprintf(stdout, "Samples: %d, locations: %d, functions: %d\n", len(p.Sample), len(p.Location), len(p.Function))
	if p.TimeNanos != 0 {
		fmt.Fprintf(stdout, "Captured: %s\n", humanize.Time(time.Unix(0, p.TimeNanos)))
	}
	fmt.Fprint(stdout, p.String())
	return nil
}

func runServe(
	ctx context.Context,
	logger log.Logger,
	tp trace.TracerProvider,
	cfg *config.Config,
	f flags.CommandServeFlags,
) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	intro := figure.NewColorFigure("treeprof ", "roman", "yellow", true)
	intro.Print()

	var writer profilewriter.ProfileWriter
	if f.Output.Directory != "" {
		writer = profilewriter.NewFileProfileWriter(f.Output.Directory, f.Output.Compress)
	}

	srv := server.New(logger, reg, encoder.NewManager(logger, reg, tp, cfg.Comments), server.Options{
		TimeIntervalMicros: f.Sampling.TimeInterval,
		HeapIntervalBytes:  f.Sampling.HeapInterval,
		ExternalLabels:     cfg.LabelSet(),
		Writer:             writer,
		Config:             cfg.String(),
	})

	var g okrun.Group
	{
		httpSrv := &http.Server{
			Addr:         f.HTTPAddress,
			Handler:      srv.Handler(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: time.Minute,
		}

		g.Add(func() error {
			level.Info(logger).Log("msg", "starting: http server", "address", f.HTTPAddress)
			defer level.Debug(logger).Log("msg", "stopped: http server")

			var err error
			pprof.Do(ctx, pprof.Labels("component", "http_server"), func(_ context.Context) {
				err = httpSrv.ListenAndServe()
			})
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(ctx)
		})
	}

	g.Add(okrun.SignalHandler(ctx, os.Interrupt, os.Kill))

	err := g.Run()
	var sigErr okrun.SignalError
	if errors.As(err, &sigErr) {
		level.Info(logger).Log("msg", "shutting down", "signal", sigErr.Signal)
		return nil
	}
	return err
}
