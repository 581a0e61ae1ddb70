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

package calltree

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var errCorrupted = errors.New("corrupted folded stack")

// ReadFoldedTimeProfile reads stacks in the folded format, one
// "outer;...;inner count" line per stack, and merges them into a call tree.
// Frames are identified by name only.
func ReadFoldedTimeProfile(r io.Reader) (*TimeProfile, error) {
	root := &TimeNode{Name: "(root)"}
	index := map[*TimeNode]map[string]*TimeNode{}

	child := func(parent *TimeNode, name string) *TimeNode {
		children, ok := index[parent]
		if !ok {
			children = map[string]*TimeNode{}
			index[parent] = children
		}
		if n, ok := children[name]; ok {
			return n
		}
		n := &TimeNode{Name: name}
		children[name] = n
		parent.Children = append(parent.Children, n)
		return n
	}

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := bytes.TrimSpace(s.Bytes())
		if len(line) == 0 {
			continue
		}

		i := bytes.LastIndexByte(line, ' ')
		if i <= 0 {
			return nil, fmt.Errorf("line %d: %w: missing count", lineNo, errCorrupted)
		}
		count, err := strconv.ParseInt(string(line[i+1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %w", lineNo, errCorrupted, err)
		}

		n := root
		for _, frame := range bytes.Split(bytes.TrimSpace(line[:i]), []byte{';'}) {
			n = child(n, string(frame))
		}
		n.HitCount += count
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read folded stacks: %w", err)
	}

	return &TimeProfile{TopDownRoot: root}, nil
}
