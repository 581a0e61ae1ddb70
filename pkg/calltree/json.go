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
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
)

func ReadTimeProfile(r io.Reader) (*TimeProfile, error) {
	var tp TimeProfile
	if err := gojson.NewDecoder(r).Decode(&tp); err != nil {
		return nil, fmt.Errorf("decode time profile: %w", err)
	}
	return &tp, nil
}

func ReadAllocationProfile(r io.Reader) (*AllocationProfile, error) {
	var ap AllocationProfile
	if err := gojson.NewDecoder(r).Decode(&ap); err != nil {
		return nil, fmt.Errorf("decode allocation profile: %w", err)
	}
	return &ap, nil
}

func WriteTimeProfile(w io.Writer, tp *TimeProfile) error {
	if err := gojson.NewEncoder(w).Encode(tp); err != nil {
		return fmt.Errorf("encode time profile: %w", err)
	}
	return nil
}

func WriteAllocationProfile(w io.Writer, ap *AllocationProfile) error {
	if err := gojson.NewEncoder(w).Encode(ap); err != nil {
		return fmt.Errorf("encode allocation profile: %w", err)
	}
	return nil
}
