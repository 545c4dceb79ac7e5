// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package segfmt implements the uvarint/zigzag primitives shared by
// the segment decoder and the test-only fixture encoder, so both
// sides of the *.seg.zst record framing (SPEC_FULL.md §F.4) agree on
// one definition. The uvarint size/encode shape is modeled on
// ion.Uvsize and ion.UnsafeWriteUVarint (ion/writer.go, ion/write.go).
package segfmt

import (
	"fmt"
	"io"
	"math/bits"
)

// Uvsize returns the number of bytes needed to uvarint-encode value.
func Uvsize(value uint64) int {
	return (bits.Len64(value|1) + 6) / 7
}

// PutUvarint appends the uvarint encoding of v to dst and returns the
// extended slice.
func PutUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// ZigzagEncode maps a signed integer onto an unsigned one so that
// small-magnitude values (positive or negative) stay small after
// uvarint encoding.
func ZigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// ZigzagDecode is the inverse of ZigzagEncode.
func ZigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// ReadUvarint decodes a uvarint from r.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("segfmt: uvarint overflow")
		}
	}
}
