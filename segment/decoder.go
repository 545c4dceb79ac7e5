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
	"bytes"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/michielmj/disco-data-logger/internal/segfmt"
)

// sharedDecoder mirrors compr.zstdDecoder: one process-wide *zstd.Decoder
// configured for full GOMAXPROCS concurrency, reused across calls
// rather than constructed per file.
var (
	sharedDecoder     *zstd.Decoder
	sharedDecoderOnce sync.Once
	sharedDecoderErr  error
)

func getSharedDecoder() (*zstd.Decoder, error) {
	sharedDecoderOnce.Do(func() {
		sharedDecoder, sharedDecoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	})
	return sharedDecoder, sharedDecoderErr
}

// Decoder produces a lazy, finite, single-pass sequence of
// SparseMeasurement values from one segment file (spec.md §4.2). It
// applies per-stream scaling as records are read; it does not require
// Scales to cover every stream id present in the file, but Next fails
// with a DecodeError if a present stream_id lacks a ScalePair.
type Decoder struct {
	path   string
	scales map[uint32]ScalePair
	r      *bytes.Reader
	done   bool
}

// NewDecoder opens path, zstd-decompresses it in full (segment files
// are expected to be small enough that this is the simplest correct
// approach; there is no requirement to stream the zstd frame itself),
// and returns a Decoder ready to yield measurements via Next.
func NewDecoder(path string, scales map[uint32]ScalePair) (*Decoder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Reason: "reading file", Err: err}
	}
	dec, err := getSharedDecoder()
	if err != nil {
		return nil, &DecodeError{Path: path, Reason: "initializing zstd decoder", Err: err}
	}
	plain, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, &DecodeError{Path: path, Reason: "zstd decompression", Err: err}
	}
	return &Decoder{path: path, scales: scales, r: bytes.NewReader(plain)}, nil
}

// Next returns the next measurement in the file, or (nil, io.EOF) once
// every record has been consumed.
func (d *Decoder) Next() (*SparseMeasurement, error) {
	if d.done {
		return nil, io.EOF
	}
	if d.r.Len() == 0 {
		d.done = true
		return nil, io.EOF
	}
	sid64, err := segfmt.ReadUvarint(d.r)
	if err != nil {
		return nil, d.fail("reading stream_id", err)
	}
	sid := uint32(sid64)
	epochQ, err := segfmt.ReadUvarint(d.r)
	if err != nil {
		return nil, d.fail("reading epoch", err)
	}
	count, err := segfmt.ReadUvarint(d.r)
	if err != nil {
		return nil, d.fail("reading count", err)
	}
	scale, ok := d.scales[sid]
	if !ok {
		return nil, &DecodeError{Path: d.path, Reason: "no ScalePair for stream id present in file"}
	}
	if !scale.Valid() {
		return nil, &DecodeError{Path: d.path, Reason: "non-positive scale for stream id"}
	}

	indices := make([]int64, count)
	values := make([]float64, count)
	var cur int64
	for i := uint64(0); i < count; i++ {
		delta, err := segfmt.ReadUvarint(d.r)
		if err != nil {
			return nil, d.fail("reading index delta", err)
		}
		if i == 0 {
			cur = int64(delta)
		} else {
			cur += int64(delta)
		}
		indices[i] = cur

		valQ, err := segfmt.ReadUvarint(d.r)
		if err != nil {
			return nil, d.fail("reading value", err)
		}
		values[i] = float64(segfmt.ZigzagDecode(valQ)) * scale.ValueScale
	}

	return &SparseMeasurement{
		StreamID: sid,
		Epoch:    float64(epochQ) * scale.EpochScale,
		Indices:  indices,
		Values:   values,
	}, nil
}

func (d *Decoder) fail(reason string, err error) error {
	d.done = true
	return &DecodeError{Path: d.path, Reason: reason, Err: err}
}

// All drains the decoder and returns every measurement. It exists for
// tests and small fixtures; the Collector uses Next directly so its
// memory footprint stays bounded by one decoded measurement at a time
// (spec.md §5).
func (d *Decoder) All() ([]SparseMeasurement, error) {
	var out []SparseMeasurement
	for {
		m, err := d.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, *m)
	}
}
