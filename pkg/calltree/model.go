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
)

// ErrUnknownKind is returned when a profile kind is neither time nor heap.
var ErrUnknownKind = errors.New("unknown profile kind")

// Kind is the kind of captured call tree.
type Kind string

const (
	KindTime Kind = "time"
	KindHeap Kind = "heap"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTime:
		return KindTime, nil
	case KindHeap:
		return KindHeap, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// TimeProfile is a captured CPU time call tree. StartTime and EndTime are in
// microseconds.
type TimeProfile struct {
	Title       string    `json:"title,omitempty"`
	StartTime   int64     `json:"startTime"`
	EndTime     int64     `json:"endTime"`
	TopDownRoot *TimeNode `json:"topDownRoot"`
}

type TimeNode struct {
	Name         string      `json:"name"`
	ScriptName   string      `json:"scriptName"`
	ScriptID     int64       `json:"scriptId"`
	LineNumber   int64       `json:"lineNumber"`
	ColumnNumber int64       `json:"columnNumber"`
	HitCount     int64       `json:"hitCount"`
	LineTicks    []LineTick  `json:"lineTicks,omitempty"`
	Children     []*TimeNode `json:"children,omitempty"`
}

// LineTick is the number of hits attributed to one source line of a node.
type LineTick struct {
	Line     int64 `json:"line"`
	HitCount int64 `json:"hitCount"`
}

// lineTickChildren returns one synthetic child per line tick of a leaf.
func (n *TimeNode) lineTickChildren() []*TimeNode {
	if len(n.Children) > 0 || len(n.LineTicks) == 0 {
		return nil
	}
	children := make([]*TimeNode, 0, len(n.LineTicks))
	for _, t := range n.LineTicks {
		children = append(children, &TimeNode{
			ScriptName: n.ScriptName,
			ScriptID:   n.ScriptID,
			LineNumber: t.Line,
			HitCount:   t.HitCount,
		})
	}
	return children
}

// AllocationProfile is a captured sampling heap call tree.
type AllocationProfile struct {
	Root *AllocationNode `json:"root"`
}

type AllocationNode struct {
	Name         string            `json:"name"`
	ScriptName   string            `json:"scriptName"`
	ScriptID     int64             `json:"scriptId"`
	LineNumber   int64             `json:"lineNumber"`
	ColumnNumber int64             `json:"columnNumber"`
	Allocations  []Allocation      `json:"allocations,omitempty"`
	Children     []*AllocationNode `json:"children,omitempty"`
}

// Allocation is a bucket of Count sampled allocations of SizeBytes each.
type Allocation struct {
	SizeBytes int64 `json:"sizeBytes"`
	Count     int64 `json:"count"`
}
