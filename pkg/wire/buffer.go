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

// Package wire is a minimal protocol buffer writer for the fixed set of
// messages in profile.proto. The format is described at
// https://protobuf.dev/programming-guides/encoding/.
package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// packedThreshold is the number of elements a repeated scalar field must
// exceed before it is written in packed form.
const packedThreshold = 2

// Message is a value that can write itself into a Buffer.
type Message interface {
	Encode(b *Buffer)
}

// Buffer accumulates wire-format bytes. The zero value is ready to use.
type Buffer struct {
	data []byte
}

// NewBuffer returns a Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes. The slice aliases the buffer's storage.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of encoded bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Reset empties the buffer but keeps its storage.
func (b *Buffer) Reset() { b.data = b.data[:0] }

// Varint writes x as a base-128 varint.
func (b *Buffer) Varint(x uint64) {
	b.data = protowire.AppendVarint(b.data, x)
}

// Length writes a length-delimited tag followed by n.
func (b *Buffer) Length(tag int, n int) {
	b.data = protowire.AppendTag(b.data, protowire.Number(tag), protowire.BytesType)
	b.Varint(uint64(n))
}

// Uint64 writes a varint field.
func (b *Buffer) Uint64(tag int, x uint64) {
	b.data = protowire.AppendTag(b.data, protowire.Number(tag), protowire.VarintType)
	b.Varint(x)
}

// Uint64Opt writes a varint field unless x is zero.
func (b *Buffer) Uint64Opt(tag int, x uint64) {
	if x == 0 {
		return
	}
	b.Uint64(tag, x)
}

// Uint64s writes a repeated varint field.
func (b *Buffer) Uint64s(tag int, xs []uint64) {
	if len(xs) > packedThreshold {
		var packed []byte
		for _, x := range xs {
			packed = protowire.AppendVarint(packed, x)
		}
		b.Length(tag, len(packed))
		b.data = append(b.data, packed...)
		return
	}
	for _, x := range xs {
		b.Uint64(tag, x)
	}
}

// Int64 writes a varint field. Negative values are not zigzag encoded and
// always take ten bytes.
func (b *Buffer) Int64(tag int, x int64) {
	b.Uint64(tag, uint64(x))
}

// Int64Opt writes a varint field unless x is zero.
func (b *Buffer) Int64Opt(tag int, x int64) {
	if x == 0 {
		return
	}
	b.Int64(tag, x)
}

// Int64s writes a repeated varint field.
func (b *Buffer) Int64s(tag int, xs []int64) {
	if len(xs) > packedThreshold {
		var packed []byte
		for _, x := range xs {
			packed = protowire.AppendVarint(packed, uint64(x))
		}
		b.Length(tag, len(packed))
		b.data = append(b.data, packed...)
		return
	}
	for _, x := range xs {
		b.Int64(tag, x)
	}
}

// String writes a length-delimited string field.
func (b *Buffer) String(tag int, s string) {
	b.Length(tag, len(s))
	b.data = append(b.data, s...)
}

// Strings writes one string field per element, including empty ones.
func (b *Buffer) Strings(tag int, ss []string) {
	for _, s := range ss {
		b.String(tag, s)
	}
}

// Bool writes a boolean as a 0 or 1 varint field.
func (b *Buffer) Bool(tag int, x bool) {
	if x {
		b.Uint64(tag, 1)
		return
	}
	b.Uint64(tag, 0)
}

// BoolOpt writes a boolean field only if it is true.
func (b *Buffer) BoolOpt(tag int, x bool) {
	if x {
		b.Uint64(tag, 1)
	}
}

// Message encodes m into a scratch buffer and writes it as a
// length-delimited field.
func (b *Buffer) Message(tag int, m Message) {
	var scratch Buffer
	m.Encode(&scratch)
	b.Length(tag, scratch.Len())
	b.data = append(b.data, scratch.data...)
}
