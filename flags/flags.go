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

package flags

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/alecthomas/kong"
)

const (
	// V8's default CPU sampling interval.
	defaultTimeIntervalMicros = 1000
	// V8's default sampling heap profiler interval.
	defaultHeapIntervalBytes = 512 * 1024
)

const (
	CommandEncode  = "encode"
	CommandInspect = "inspect <path>"
	CommandServe   = "serve"
)

var ErrNoInput = errors.New("no call tree snapshot given, use --time or --heap")

// ErrSharedStdout is returned when more than one profile would be written to stdout.
var ErrSharedStdout = errors.New("encoding both --time and --heap requires --output-directory")

// Parse parses the command line args and returns the flags together with
// the selected command.
func Parse(args []string, options ...kong.Option) (Flags, string, error) {
	flags := Flags{}
	options = append([]kong.Option{
		kong.Name("treeprof"),
		kong.Description("Encode sampled call trees into pprof profiles."),
		kong.Vars{
			"version":                      "unknown",
			"default_time_interval_micros": strconv.Itoa(defaultTimeIntervalMicros),
			"default_heap_interval_bytes":  strconv.Itoa(defaultHeapIntervalBytes),
		},
	}, options...)

	parser, err := kong.New(&flags, options...)
	if err != nil {
		return Flags{}, "", err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return Flags{}, "", err
	}
	if err := flags.Validate(ctx.Command()); err != nil {
		return Flags{}, "", err
	}
	return flags, ctx.Command(), nil
}

type Flags struct {
	Log        FlagsLogs        `embed:""                prefix:"log-"`
	OTLP       FlagsOTLP        `embed:""                prefix:"otlp-"`
	Version    kong.VersionFlag `help:"Show application version."`
	ConfigPath string           `default:""              help:"Path to config file."`

	Encode  CommandEncodeFlags  `cmd:"" help:"Encode call tree snapshots into pprof profiles."`
	Inspect CommandInspectFlags `cmd:"" help:"Print a summary of an encoded pprof profile."`
	Serve   CommandServeFlags   `cmd:"" help:"Serve an HTTP endpoint that encodes posted call tree snapshots."`
}

// Validate checks the flags of the selected command.
func (f Flags) Validate(command string) error {
	switch command {
	case CommandEncode:
		if f.Encode.Time == "" && f.Encode.Heap == "" {
			return ErrNoInput
		}
		if f.Encode.Time != "" && f.Encode.Heap != "" && f.Encode.Output.Directory == "" {
			return ErrSharedStdout
		}
		if err := f.Encode.Sampling.validate(); err != nil {
			return err
		}
	case CommandServe:
		if err := f.Serve.Sampling.validate(); err != nil {
			return err
		}
	}
	return nil
}

// FlagsLogs provides logging configuration flags.
type FlagsLogs struct {
	Level  string `default:"info"   enum:"error,warn,info,debug" help:"Log level."`
	Format string `default:"logfmt" enum:"logfmt,json"           help:"Configure if structured logging as JSON or as logfmt"`
}

// FlagsOTLP provides OTLP configuration flags.
type FlagsOTLP struct {
	Address  string `help:"The endpoint to send OTLP traces to."`
	Exporter string `default:"grpc"                              enum:"grpc,http,stdout" help:"The OTLP exporter to use."`
}

// FlagsSampling provides the sampling intervals the snapshots were captured with.
type FlagsSampling struct {
	TimeInterval int64 `default:"${default_time_interval_micros}" help:"CPU sampling interval of time snapshots in microseconds."`
	HeapInterval int64 `default:"${default_heap_interval_bytes}"  help:"Average bytes between heap samples of heap snapshots."`
}

func (f FlagsSampling) validate() error {
	if f.TimeInterval <= 0 {
		return fmt.Errorf("invalid time sampling interval %d, must be positive", f.TimeInterval)
	}
	if f.HeapInterval <= 0 {
		return fmt.Errorf("invalid heap sampling interval %d, must be positive", f.HeapInterval)
	}
	return nil
}

// FlagsOutput provides output configuration flags.
type FlagsOutput struct {
	Directory string `help:"The local directory to write profiles to. Profiles are written to stdout if empty."`
	Compress  bool   `default:"false"                                                                       help:"Gzip profiles before writing them."`
}

type CommandEncodeFlags struct {
	Time       string `help:"Path to a time profile snapshot."                           type:"existingfile"`
	TimeFormat string `default:"json"                                                    enum:"json,folded" help:"Format of the time profile snapshot."`
	Heap       string `help:"Path to a JSON heap profile snapshot."                      type:"existingfile"`

	Sampling FlagsSampling `embed:"" prefix:"sampling-"`
	Output   FlagsOutput   `embed:"" prefix:"output-"`
}

type CommandInspectFlags struct {
	Path string `arg:"" help:"Path to a pprof profile, gzipped or not." type:"existingfile"`
}

type CommandServeFlags struct {
	HTTPAddress string `default:"127.0.0.1:7072" help:"Address to bind HTTP server to."`

	Sampling FlagsSampling `embed:"" prefix:"sampling-"`
	Output   FlagsOutput   `embed:"" prefix:"output-"`
}
