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

package calltree

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	pprofprofile "github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"
)

type flatSample struct {
	Stack  []string
	Values []int64
}

func flatSamples(p *pprofprofile.Profile) []flatSample {
	out := make([]flatSample, 0, len(p.Sample))
	for _, s := range p.Sample {
		stack := make([]string, 0, len(s.Location))
		for _, l := range s.Location {
			stack = append(stack, l.Line[0].Function.Name)
		}
		out = append(out, flatSample{Stack: stack, Values: s.Value})
	}
	return out
}

var sortFlatSamples = cmpopts.SortSlices(func(a, b flatSample) bool {
	return fmt.Sprint(a) < fmt.Sprint(b)
})

func TestTimeProfileTwoLeaves(t *testing.T) {
	tp := &TimeProfile{
		StartTime: 100,
		EndTime:   1100,
		TopDownRoot: &TimeNode{
			Name: "(root)",
			Children: []*TimeNode{
				{Name: "A", ScriptName: "a.js", ScriptID: 1, LineNumber: 1, HitCount: 3},
				{Name: "B", ScriptName: "b.js", ScriptID: 2, LineNumber: 1, HitCount: 5},
			},
		},
	}

	p, err := pprofprofile.ParseData(SerializeTimeProfile(tp, 1000, 42))
	require.NoError(t, err)
	require.NoError(t, p.CheckValid())

	require.Equal(t, &pprofprofile.ValueType{Type: "wall", Unit: "microseconds"}, p.PeriodType)
	require.Equal(t, int64(1000), p.Period)
	require.Equal(t, int64(42), p.TimeNanos)
	require.Equal(t, int64(1_000_000), p.DurationNanos)
	require.Equal(t, []*pprofprofile.ValueType{
		{Type: "sample", Unit: "count"},
		{Type: "wall", Unit: "microseconds"},
	}, p.SampleType)

	require.Len(t, p.Location, 2)
	require.Len(t, p.Function, 2)
	require.Empty(t, cmp.Diff([]flatSample{
		{Stack: []string{"A"}, Values: []int64{3, 3000}},
		{Stack: []string{"B"}, Values: []int64{5, 5000}},
	}, flatSamples(p), sortFlatSamples))
}

func TestTimeProfileNestedStacks(t *testing.T) {
	tp := &TimeProfile{
		TopDownRoot: &TimeNode{Children: []*TimeNode{{
			Name: "main", ScriptID: 1, LineNumber: 1, HitCount: 1,
			Children: []*TimeNode{
				{Name: "parse", ScriptID: 1, LineNumber: 10, HitCount: 2},
				nil,
				{Name: "render", ScriptID: 1, LineNumber: 20, Children: []*TimeNode{
					{Name: "paint", ScriptID: 2, LineNumber: 5, HitCount: 7},
				}},
			},
		}}},
	}

	p := BuildTimeProfile(tp, 10, 0)
	require.Equal(t, 4, p.Stats().Samples)
	require.Equal(t, 4, p.Stats().Locations)

	parsed, err := pprofprofile.ParseData(p.Bytes())
	require.NoError(t, err)
	require.Equal(t, []flatSample{
		{Stack: []string{"main"}, Values: []int64{1, 10}},
		{Stack: []string{"parse", "main"}, Values: []int64{2, 20}},
		{Stack: []string{"render", "main"}, Values: []int64{0, 0}},
		{Stack: []string{"paint", "render", "main"}, Values: []int64{7, 70}},
	}, flatSamples(parsed))
}

func TestTimeProfileLineTicks(t *testing.T) {
	tp := &TimeProfile{
		TopDownRoot: &TimeNode{Children: []*TimeNode{{
			Name: "hot", ScriptName: "hot.js", ScriptID: 3, LineNumber: 10, ColumnNumber: 4,
			HitCount:  10,
			LineTicks: []LineTick{{Line: 12, HitCount: 4}, {Line: 15, HitCount: 6}},
		}}},
	}

	p := BuildTimeProfile(tp, 100, 0)
	require.Len(t, p.Locations(), 3)
	require.Len(t, p.Functions(), 2)

	parsed, err := pprofprofile.ParseData(p.Bytes())
	require.NoError(t, err)
	require.Equal(t, []flatSample{
		{Stack: []string{"hot"}, Values: []int64{0, 0}},
		{Stack: []string{"", "hot"}, Values: []int64{4, 400}},
		{Stack: []string{"", "hot"}, Values: []int64{6, 600}},
	}, flatSamples(parsed))

	tick := parsed.Sample[2].Location[0]
	require.Equal(t, int64(15), tick.Line[0].Line)
	require.Equal(t, "hot.js", tick.Line[0].Function.Filename)
}

func TestTimeProfileLineTicksIgnoredWithChildren(t *testing.T) {
	tp := &TimeProfile{
		TopDownRoot: &TimeNode{Children: []*TimeNode{{
			Name: "outer", ScriptID: 1, HitCount: 2,
			LineTicks: []LineTick{{Line: 3, HitCount: 2}},
			Children:  []*TimeNode{{Name: "inner", ScriptID: 1, HitCount: 1}},
		}}},
	}

	p := BuildTimeProfile(tp, 1, 0)
	require.Len(t, p.Samples(), 2)
	require.Equal(t, []int64{2, 2}, p.Samples()[0].Value)
}

func TestTimeProfileSharedCallSite(t *testing.T) {
	leaf := func(hits int64) *TimeNode {
		return &TimeNode{Name: "f", ScriptID: 1, LineNumber: 7, ColumnNumber: 2, HitCount: hits}
	}
	tp := &TimeProfile{
		TopDownRoot: &TimeNode{Children: []*TimeNode{
			leaf(1),
			{Name: "g", ScriptID: 1, LineNumber: 30, Children: []*TimeNode{leaf(2)}},
		}},
	}

	p := BuildTimeProfile(tp, 1, 0)
	require.Len(t, p.Locations(), 2)
	require.Len(t, p.Functions(), 2)
	require.Equal(t, []uint64{1}, p.Samples()[0].LocationID)
	require.Equal(t, []uint64{1, 2}, p.Samples()[2].LocationID)
}

func TestHeapProfileFanOut(t *testing.T) {
	ap := &AllocationProfile{Root: &AllocationNode{Children: []*AllocationNode{{
		Name: "alloc", ScriptName: "alloc.js", ScriptID: 4, LineNumber: 3,
		Allocations: []Allocation{{SizeBytes: 10, Count: 8}, {SizeBytes: 72, Count: 15}},
	}}}}

	p, err := pprofprofile.ParseData(SerializeHeapProfile(ap, 512*1024, 99))
	require.NoError(t, err)
	require.NoError(t, p.CheckValid())

	require.Equal(t, &pprofprofile.ValueType{Type: "space", Unit: "bytes"}, p.PeriodType)
	require.Equal(t, int64(512*1024), p.Period)
	require.Equal(t, int64(99), p.TimeNanos)
	require.Equal(t, int64(0), p.DurationNanos)
	require.Equal(t, []*pprofprofile.ValueType{
		{Type: "objects", Unit: "count"},
		{Type: "space", Unit: "bytes"},
	}, p.SampleType)

	require.Len(t, p.Sample, 2)
	require.Equal(t, []int64{8, 80}, p.Sample[0].Value)
	require.Equal(t, []int64{15, 1080}, p.Sample[1].Value)
	require.Equal(t, map[string][]int64{"allocation": {10}}, p.Sample[0].NumLabel)
	require.Equal(t, map[string][]int64{"allocation": {72}}, p.Sample[1].NumLabel)
	require.Equal(t, map[string][]string{"allocation": {"bytes"}}, p.Sample[1].NumUnit)
}

func TestHeapProfileNodeWithoutAllocations(t *testing.T) {
	ap := &AllocationProfile{Root: &AllocationNode{Children: []*AllocationNode{
		{Name: "idle", ScriptID: 1, LineNumber: 1},
		{Name: "busy", ScriptID: 1, LineNumber: 2, Children: []*AllocationNode{{
			Name: "leaf", ScriptID: 1, LineNumber: 3,
			Allocations: []Allocation{{SizeBytes: 32, Count: 1}},
		}}},
	}}}

	p := BuildHeapProfile(ap, 1024, 0)
	require.Len(t, p.Locations(), 3)
	require.Len(t, p.Samples(), 1)
	require.Equal(t, []uint64{3, 2}, p.Samples()[0].LocationID)
}

func TestEmptyTrees(t *testing.T) {
	for name, data := range map[string][]byte{
		"nil time":          SerializeTimeProfile(nil, 1000, 0),
		"time root only":    SerializeTimeProfile(&TimeProfile{TopDownRoot: &TimeNode{Name: "(root)", HitCount: 9}}, 1000, 0),
		"nil heap":          SerializeHeapProfile(nil, 1024, 0),
		"heap root only":    SerializeHeapProfile(&AllocationProfile{Root: &AllocationNode{Name: "(root)"}}, 1024, 0),
		"heap without root": SerializeHeapProfile(&AllocationProfile{}, 1024, 0),
	} {
		t.Run(name, func(t *testing.T) {
			p, err := pprofprofile.ParseData(data)
			require.NoError(t, err)
			require.Len(t, p.SampleType, 2)
			require.NotNil(t, p.PeriodType)
			require.Empty(t, p.Sample)
			require.Empty(t, p.Location)
			require.Empty(t, p.Function)
		})
	}
}

func TestDeepChain(t *testing.T) {
	const depth = 2000

	root := &AllocationNode{Name: "(root)"}
	cur := root
	for i := 0; i < depth; i++ {
		child := &AllocationNode{Name: "frame", ScriptID: 1, LineNumber: int64(i + 1)}
		cur.Children = []*AllocationNode{child}
		cur = child
	}
	cur.Allocations = []Allocation{{SizeBytes: 8, Count: 2}}

	p := BuildHeapProfile(&AllocationProfile{Root: root}, 1024, 0)
	require.Len(t, p.Locations(), depth)
	require.Len(t, p.Functions(), 1)
	require.Len(t, p.Samples(), 1)

	stack := p.Samples()[0].LocationID
	require.Len(t, stack, depth)
	require.Equal(t, uint64(depth), stack[0])
	require.Equal(t, uint64(1), stack[depth-1])

	parsed, err := pprofprofile.ParseData(p.Bytes())
	require.NoError(t, err)
	require.Len(t, parsed.Sample[0].Location, depth)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("time")
	require.NoError(t, err)
	require.Equal(t, KindTime, k)

	k, err = ParseKind("heap")
	require.NoError(t, err)
	require.Equal(t, KindHeap, k)

	_, err = ParseKind("cpu")
	require.True(t, errors.Is(err, ErrUnknownKind))
}
