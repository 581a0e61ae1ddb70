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

// Package calltree flattens captured time and heap call trees into pprof
// profiles.
package calltree

import (
	"github.com/parca-dev/treeprof/pkg/pprof"
)

// BuildTimeProfile flattens a CPU time call tree. Every node contributes one
// sample valued [hits, hits*intervalMicros]. The root itself is not sampled.
func BuildTimeProfile(tp *TimeProfile, intervalMicros, startTimeNanos int64) *pprof.Profile {
	var durationNanos int64
	if tp != nil {
		durationNanos = (tp.EndTime - tp.StartTime) * 1000
	}

	p := pprof.NewProfile(pprof.ProfileConfig{
		PeriodType:    "wall",
		PeriodUnit:    "microseconds",
		Period:        intervalMicros,
		TimeNanos:     startTimeNanos,
		DurationNanos: durationNanos,
	})
	p.AddSampleType("sample", "count")
	p.AddSampleType("wall", "microseconds")

	if tp == nil || tp.TopDownRoot == nil {
		return p
	}

	flatten(p, timeChildren(tp.TopDownRoot),
		func(n *TimeNode) pprof.Node {
			return timeNode{node: n, intervalMicros: intervalMicros}
		},
		timeChildren,
	)
	return p
}

// SerializeTimeProfile returns the encoded form of BuildTimeProfile.
func SerializeTimeProfile(tp *TimeProfile, intervalMicros, startTimeNanos int64) []byte {
	return BuildTimeProfile(tp, intervalMicros, startTimeNanos).Bytes()
}

// BuildHeapProfile flattens a sampling heap call tree. Every allocation
// bucket contributes one sample valued [count, count*size] and labelled with
// the allocation size.
func BuildHeapProfile(ap *AllocationProfile, intervalBytes, startTimeNanos int64) *pprof.Profile {
	p := pprof.NewProfile(pprof.ProfileConfig{
		PeriodType: "space",
		PeriodUnit: "bytes",
		Period:     intervalBytes,
		TimeNanos:  startTimeNanos,
	})
	p.AddSampleType("objects", "count")
	p.AddSampleType("space", "bytes")

	if ap == nil || ap.Root == nil {
		return p
	}

	flatten(p, heapChildren(ap.Root),
		func(n *AllocationNode) pprof.Node {
			return heapNode{node: n}
		},
		heapChildren,
	)
	return p
}

// SerializeHeapProfile returns the encoded form of BuildHeapProfile.
func SerializeHeapProfile(ap *AllocationProfile, intervalBytes, startTimeNanos int64) []byte {
	return BuildHeapProfile(ap, intervalBytes, startTimeNanos).Bytes()
}

func timeChildren(n *TimeNode) []*TimeNode {
	if ticks := n.lineTickChildren(); ticks != nil {
		return ticks
	}
	return nonNil(n.Children)
}

func heapChildren(n *AllocationNode) []*AllocationNode {
	return nonNil(n.Children)
}

func nonNil[T any](nodes []*T) []*T {
	for i, n := range nodes {
		if n != nil {
			continue
		}
		out := make([]*T, 0, len(nodes)-1)
		out = append(out, nodes[:i]...)
		for _, n := range nodes[i+1:] {
			if n != nil {
				out = append(out, n)
			}
		}
		return out
	}
	return nodes
}

type entry[T any] struct {
	node  T
	stack []uint64
}

// flatten walks the tree depth first with an explicit work list, so that the
// depth of the tree is not bounded by the goroutine stack. Every entry
// carries the location stack of its parent.
func flatten[T any](p *pprof.Profile, roots []T, adapt func(T) pprof.Node, children func(T) []T) {
	work := make([]entry[T], 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		work = append(work, entry[T]{node: roots[i]})
	}

	for len(work) > 0 {
		e := work[len(work)-1]
		work = work[:len(work)-1]

		loc := p.AddSample(adapt(e.node), e.stack)

		kids := children(e.node)
		if len(kids) == 0 {
			continue
		}

		stack := make([]uint64, 0, len(e.stack)+1)
		stack = append(stack, loc)
		stack = append(stack, e.stack...)
		for i := len(kids) - 1; i >= 0; i-- {
			work = append(work, entry[T]{node: kids[i], stack: stack})
		}
	}
}
