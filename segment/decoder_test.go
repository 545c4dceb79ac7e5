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

package segment

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/michielmj/disco-data-logger/internal/segfmt"
)

type testRecord struct {
	streamID uint32
	epochQ   uint64
	indices  []int64
	values   []int64 // quantized, pre zig-zag
}

func writeSegment(t *testing.T, dir, name string, records []testRecord) string {
	t.Helper()
	var plain []byte
	for _, r := range records {
		plain = segfmt.PutUvarint(plain, uint64(r.streamID))
		plain = segfmt.PutUvarint(plain, r.epochQ)
		plain = segfmt.PutUvarint(plain, uint64(len(r.indices)))
		var prev int64
		for i, idx := range r.indices {
			var delta int64
			if i == 0 {
				delta = idx
			} else {
				delta = idx - prev
			}
			prev = idx
			plain = segfmt.PutUvarint(plain, uint64(delta))
			plain = segfmt.PutUvarint(plain, segfmt.ZigzagEncode(r.values[i]))
		}
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll(plain, nil)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecoderRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := writeSegment(t, dir, "a.seg.zst", []testRecord{
		{streamID: 1, epochQ: 100, indices: []int64{0, 5}, values: []int64{10, -3}},
		{streamID: 2, epochQ: 200, indices: []int64{2}, values: []int64{7}},
	})
	scales := map[uint32]ScalePair{
		1: {EpochScale: 0.1, ValueScale: 0.5},
		2: {EpochScale: 0.1, ValueScale: 1.0},
	}
	dec, err := NewDecoder(path, scales)
	if err != nil {
		t.Fatal(err)
	}
	got, err := dec.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 measurements, got %d", len(got))
	}
	m0 := got[0]
	if m0.StreamID != 1 || m0.Epoch != 10 {
		t.Fatalf("unexpected first record: %+v", m0)
	}
	if len(m0.Indices) != 2 || m0.Indices[0] != 0 || m0.Indices[1] != 5 {
		t.Fatalf("unexpected indices: %+v", m0.Indices)
	}
	if m0.Values[0] != 5.0 || m0.Values[1] != -1.5 {
		t.Fatalf("unexpected values: %+v", m0.Values)
	}
	m1 := got[1]
	if m1.StreamID != 2 || m1.Epoch != 20 || m1.Values[0] != 7.0 {
		t.Fatalf("unexpected second record: %+v", m1)
	}
}

func TestDecoderMissingScale(t *testing.T) {
	dir := t.TempDir()
	path := writeSegment(t, dir, "b.seg.zst", []testRecord{
		{streamID: 9, epochQ: 1, indices: []int64{0}, values: []int64{1}},
	})
	dec, err := NewDecoder(path, map[uint32]ScalePair{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = dec.Next()
	if err == nil {
		t.Fatal("expected error for missing scale")
	}
}

func TestDecoderEOF(t *testing.T) {
	dir := t.TempDir()
	path := writeSegment(t, dir, "empty.seg.zst", nil)
	dec, err := NewDecoder(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = dec.Next()
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
