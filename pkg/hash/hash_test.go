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

package hash

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumMatchesReader(t *testing.T) {
	data := bytes.Repeat([]byte{0x0a, 0x04, 0x08, 0x01, 0x10, 0x02}, 1000)

	got, err := Reader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, Sum(data), got)
	require.Equal(t, Sum(data), Sum(append([]byte(nil), data...)))
	require.NotEqual(t, Sum(data), Sum(data[1:]))
}

func TestETag(t *testing.T) {
	etag := ETag([]byte("profile"))
	require.Regexp(t, regexp.MustCompile(`^"[0-9a-f]{16}"$`), etag)
	require.Equal(t, etag, ETag([]byte("profile")))
	require.NotEqual(t, etag, ETag([]byte("profile2")))
}
