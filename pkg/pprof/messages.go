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

package pprof

import (
	"github.com/parca-dev/treeprof/pkg/wire"
)

// The messages below mirror profile.proto. Fields holding string table
// indices are int64 and named after the message field they encode.
var (
	_ wire.Message = (*ValueType)(nil)
	_ wire.Message = (*Label)(nil)
	_ wire.Message = (*Mapping)(nil)
	_ wire.Message = (*Line)(nil)
	_ wire.Message = (*Function)(nil)
	_ wire.Message = (*Location)(nil)
	_ wire.Message = (*Sample)(nil)
	_ wire.Message = (*Profile)(nil)
)

// ValueType describes the type and unit of a sample value.
type ValueType struct {
	Type int64
	Unit int64
}

func (v *ValueType) Encode(b *wire.Buffer) {
	b.Int64Opt(1, v.Type)
	b.Int64Opt(2, v.Unit)
}

// Label attaches a string or numeric tag to a sample.
type Label struct {
	Key     int64
	Str     int64
	Num     int64
	NumUnit int64
}

func (l *Label) Encode(b *wire.Buffer) {
	b.Int64Opt(1, l.Key)
	b.Int64Opt(2, l.Str)
	b.Int64Opt(3, l.Num)
	b.Int64Opt(4, l.NumUnit)
}

// Mapping is a memory mapping. Tree profiles carry none, but the message is
// part of the schema.
type Mapping struct {
	ID              uint64
	Start           uint64
	Limit           uint64
	Offset          uint64
	Filename        int64
	BuildID         int64
	HasFunctions    bool
	HasFilenames    bool
	HasLineNumbers  bool
	HasInlineFrames bool
}

func (m *Mapping) Encode(b *wire.Buffer) {
	b.Uint64Opt(1, m.ID)
	b.Uint64Opt(2, m.Start)
	b.Uint64Opt(3, m.Limit)
	b.Uint64Opt(4, m.Offset)
	b.Int64Opt(5, m.Filename)
	b.Int64Opt(6, m.BuildID)
	b.BoolOpt(7, m.HasFunctions)
	b.BoolOpt(8, m.HasFilenames)
	b.BoolOpt(9, m.HasLineNumbers)
	b.BoolOpt(10, m.HasInlineFrames)
}

// Line points at a source line within a function.
type Line struct {
	FunctionID uint64
	Line       int64
}

func (l *Line) Encode(b *wire.Buffer) {
	b.Uint64Opt(1, l.FunctionID)
	b.Int64Opt(2, l.Line)
}

// Function is a deduplicated routine.
type Function struct {
	ID         uint64
	Name       int64
	SystemName int64
	Filename   int64
	StartLine  int64
}

func (f *Function) Encode(b *wire.Buffer) {
	b.Uint64Opt(1, f.ID)
	b.Int64Opt(2, f.Name)
	b.Int64Opt(3, f.SystemName)
	b.Int64Opt(4, f.Filename)
	b.Int64Opt(5, f.StartLine)
}

// Location is a deduplicated call stack frame.
type Location struct {
	ID        uint64
	MappingID uint64
	Address   uint64
	Line      []Line
	IsFolded  bool
}

func (l *Location) Encode(b *wire.Buffer) {
	b.Uint64Opt(1, l.ID)
	b.Uint64Opt(2, l.MappingID)
	b.Uint64Opt(3, l.Address)
	for i := range l.Line {
		b.Message(4, &l.Line[i])
	}
	b.BoolOpt(5, l.IsFolded)
}

// Sample is one weighted observation. LocationID lists the call stack
// innermost frame first and Value is aligned with the profile's sample types.
type Sample struct {
	LocationID []uint64
	Value      []int64
	Label      []Label
}

func (s *Sample) Encode(b *wire.Buffer) {
	b.Uint64s(1, s.LocationID)
	b.Int64s(2, s.Value)
	for i := range s.Label {
		b.Message(3, &s.Label[i])
	}
}
