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

// Package pprof builds profile.proto profiles out of call tree nodes and
// writes them in wire format.
//
// A Profile is not safe for concurrent use. Distinct profiles share no state.
package pprof

import (
	"github.com/parca-dev/treeprof/pkg/wire"
)

// Node is a single call site in a captured call tree.
type Node interface {
	Name() string
	Filename() string
	FileID() int64
	LineNumber() int64
	ColumnNumber() int64

	// Samples returns the samples recorded at this node. stack is the call
	// stack of the node, innermost location first, and must not be modified.
	Samples(p *Profile, stack []uint64) []Sample
}

// ProfileConfig holds the profile wide metadata.
type ProfileConfig struct {
	PeriodType    string
	PeriodUnit    string
	Period        int64
	TimeNanos     int64
	DurationNanos int64
	DropFrames    string
	KeepFrames    string
}

type functionKey struct {
	fileID int64
	name   string
}

type locationKey struct {
	fileID int64
	line   int64
	column int64
	name   string
}

// Profile is a profile.proto profile under construction.
type Profile struct {
	sampleTypes       []ValueType
	samples           []Sample
	mappings          []Mapping
	locations         []Location
	functions         []Function
	strings           []string
	dropFrames        int64
	keepFrames        int64
	timeNanos         int64
	durationNanos     int64
	periodType        ValueType
	period            int64
	comments          []int64
	defaultSampleType int64

	stringIndex   map[string]int64
	functionIndex map[functionKey]uint64
	locationIndex map[locationKey]uint64
}

// NewProfile returns an empty profile. The string table starts with "".
func NewProfile(cfg ProfileConfig) *Profile {
	p := &Profile{
		stringIndex:   map[string]int64{},
		functionIndex: map[functionKey]uint64{},
		locationIndex: map[locationKey]uint64{},
	}
	p.StringID("")

	p.periodType = ValueType{
		Type: p.StringID(cfg.PeriodType),
		Unit: p.StringID(cfg.PeriodUnit),
	}
	p.period = cfg.Period
	p.timeNanos = cfg.TimeNanos
	p.durationNanos = cfg.DurationNanos
	p.dropFrames = p.StringID(cfg.DropFrames)
	p.keepFrames = p.StringID(cfg.KeepFrames)
	return p
}

// AddSampleType declares the next sample value. All sample types must be
// declared before samples are added.
func (p *Profile) AddSampleType(typ, unit string) {
	p.sampleTypes = append(p.sampleTypes, ValueType{
		Type: p.StringID(typ),
		Unit: p.StringID(unit),
	})
}

// AddComment appends a free-form comment to the profile.
func (p *Profile) AddComment(comment string) {
	p.comments = append(p.comments, p.StringID(comment))
}

// SetDefaultSampleType names the sample type viewers should show first.
func (p *Profile) SetDefaultSampleType(typ string) {
	p.defaultSampleType = p.StringID(typ)
}

// AddSample records the samples of node. callerStack is the stack of the
// node's parent, innermost first. The returned location ID is the one
// assigned to node; descendants extend their stack with it.
func (p *Profile) AddSample(node Node, callerStack []uint64) uint64 {
	loc := p.LocationID(node)

	stack := make([]uint64, 0, len(callerStack)+1)
	stack = append(stack, loc)
	stack = append(stack, callerStack...)

	p.samples = append(p.samples, node.Samples(p, stack)...)
	return loc
}

// LocationID returns the ID of the location of node, creating it on first
// sight. Call sites are keyed by file, line, column and name, so different
// lines of the same function get different locations.
func (p *Profile) LocationID(node Node) uint64 {
	key := locationKey{
		fileID: node.FileID(),
		line:   node.LineNumber(),
		column: node.ColumnNumber(),
		name:   node.Name(),
	}
	if id, ok := p.locationIndex[key]; ok {
		return id
	}

	id := uint64(len(p.locations)) + 1
	p.locations = append(p.locations, Location{
		ID: id,
		Line: []Line{{
			FunctionID: p.FunctionID(node),
			Line:       node.LineNumber(),
		}},
	})
	p.locationIndex[key] = id
	return id
}

// FunctionID returns the ID of the function of node, creating it on first
// sight. Functions are keyed by file and name.
func (p *Profile) FunctionID(node Node) uint64 {
	name := node.Name()
	key := functionKey{fileID: node.FileID(), name: name}
	if id, ok := p.functionIndex[key]; ok {
		return id
	}

	nameX := p.StringID(name)
	id := uint64(len(p.functions)) + 1
	p.functions = append(p.functions, Function{
		ID:         id,
		Name:       nameX,
		SystemName: nameX,
		Filename:   p.StringID(node.Filename()),
		StartLine:  node.LineNumber(),
	})
	p.functionIndex[key] = id
	return id
}

// StringID returns the string table index of s, appending it on first sight.
func (p *Profile) StringID(s string) int64 {
	if id, ok := p.stringIndex[s]; ok {
		return id
	}
	id := int64(len(p.strings))
	p.stringIndex[s] = id
	p.strings = append(p.strings, s)
	return id
}

func (p *Profile) SampleTypes() []ValueType { return p.sampleTypes }
func (p *Profile) Samples() []Sample        { return p.samples }
func (p *Profile) Locations() []Location    { return p.locations }
func (p *Profile) Functions() []Function    { return p.functions }
func (p *Profile) Strings() []string        { return p.strings }

// Stats summarises the size of a profile.
type Stats struct {
	SampleTypes int
	Samples     int
	Locations   int
	Functions   int
	Strings     int
}

func (p *Profile) Stats() Stats {
	return Stats{
		SampleTypes: len(p.sampleTypes),
		Samples:     len(p.samples),
		Locations:   len(p.locations),
		Functions:   len(p.functions),
		Strings:     len(p.strings),
	}
}

// Encode writes the profile in wire format.
func (p *Profile) Encode(b *wire.Buffer) {
	for i := range p.sampleTypes {
		b.Message(1, &p.sampleTypes[i])
	}
	for i := range p.samples {
		b.Message(2, &p.samples[i])
	}
	for i := range p.mappings {
		b.Message(3, &p.mappings[i])
	}
	for i := range p.locations {
		b.Message(4, &p.locations[i])
	}
	for i := range p.functions {
		b.Message(5, &p.functions[i])
	}
	b.Strings(6, p.strings)
	b.Int64Opt(7, p.dropFrames)
	b.Int64Opt(8, p.keepFrames)
	b.Int64Opt(9, p.timeNanos)
	b.Int64Opt(10, p.durationNanos)
	if p.periodType.Type != 0 || p.periodType.Unit != 0 {
		b.Message(11, &p.periodType)
	}
	b.Int64Opt(12, p.period)
	b.Int64s(13, p.comments)
	b.Int64(14, p.defaultSampleType)
}

// Bytes encodes the profile into a new buffer.
func (p *Profile) Bytes() []byte {
	b := wire.NewBuffer(0)
	p.Encode(b)
	return b.Bytes()
}
