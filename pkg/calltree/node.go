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
	"github.com/parca-dev/treeprof/pkg/pprof"
)

var (
	_ pprof.Node = timeNode{}
	_ pprof.Node = heapNode{}
)

type timeNode struct {
	node           *TimeNode
	intervalMicros int64
}

func (n timeNode) Name() string        { return n.node.Name }
func (n timeNode) Filename() string    { return n.node.ScriptName }
func (n timeNode) FileID() int64       { return n.node.ScriptID }
func (n timeNode) LineNumber() int64   { return n.node.LineNumber }
func (n timeNode) ColumnNumber() int64 { return n.node.ColumnNumber }

func (n timeNode) Samples(_ *pprof.Profile, stack []uint64) []pprof.Sample {
	hits := n.node.HitCount
	if len(n.node.Children) == 0 && len(n.node.LineTicks) > 0 {
		// Hits are reported by the line tick children instead.
		hits = 0
	}
	return []pprof.Sample{{
		LocationID: stack,
		Value:      []int64{hits, hits * n.intervalMicros},
	}}
}

type heapNode struct {
	node *AllocationNode
}

func (n heapNode) Name() string        { return n.node.Name }
func (n heapNode) Filename() string    { return n.node.ScriptName }
func (n heapNode) FileID() int64       { return n.node.ScriptID }
func (n heapNode) LineNumber() int64   { return n.node.LineNumber }
func (n heapNode) ColumnNumber() int64 { return n.node.ColumnNumber }

func (n heapNode) Samples(p *pprof.Profile, stack []uint64) []pprof.Sample {
	if len(n.node.Allocations) == 0 {
		return nil
	}

	key, unit := p.StringID("allocation"), p.StringID("bytes")
	samples := make([]pprof.Sample, 0, len(n.node.Allocations))
	for _, a := range n.node.Allocations {
		samples = append(samples, pprof.Sample{
			LocationID: stack,
			Value:      []int64{a.Count, a.Count * a.SizeBytes},
			Label:      []pprof.Label{{Key: key, Num: a.SizeBytes, NumUnit: unit}},
		})
	}
	return samples
}
