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

// Package fixture builds throwaway logger directory trees (streams/
// metadata, *.seg.zst segment files, and the _DONE marker) for
// collector-level integration tests. It is test-only scaffolding, not
// a production segment writer: the real writer is an external
// collaborator (SPEC_FULL.md §F.4).
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/michielmj/disco-data-logger/internal/segfmt"
)

// Stream describes one stream's metadata document, written to
// streams/<stream_id>.json.
type Stream struct {
	ID         uint32
	EpochScale float64
	ValueScale float64
	Labels     map[string]interface{}
}

// Record is one quantized measurement to append to a segment file.
type Record struct {
	StreamID uint32
	EpochQ   uint64
	Indices  []int64
	ValuesQ  []int64 // pre zig-zag
}

// Dir writes a complete logger directory under root: streams/*.json
// for each of streams, and one segment file per entry of segments
// (each a list of Records, written in order to a name like
// seg-0000.seg.zst). It returns the directory path.
func Dir(root string, streams []Stream, segments [][]Record) (string, error) {
	if err := os.MkdirAll(filepath.Join(root, "streams"), 0o755); err != nil {
		return "", fmt.Errorf("fixture: creating streams dir: %w", err)
	}
	for _, s := range streams {
		doc := map[string]interface{}{
			"stream_id":   s.ID,
			"epoch_scale": s.EpochScale,
			"value_scale": s.ValueScale,
		}
		for k, v := range s.Labels {
			doc[k] = v
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("fixture: encoding stream %d: %w", s.ID, err)
		}
		name := filepath.Join(root, "streams", fmt.Sprintf("%d.json", s.ID))
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return "", fmt.Errorf("fixture: writing %s: %w", name, err)
		}
	}
	for i, records := range segments {
		name := filepath.Join(root, fmt.Sprintf("seg-%04d.seg.zst", i))
		if err := writeSegment(name, records); err != nil {
			return "", err
		}
	}
	return root, nil
}

// Done writes the _DONE completion sentinel at root.
func Done(root string) error {
	return os.WriteFile(filepath.Join(root, "_DONE"), nil, 0o644)
}

func writeSegment(path string, records []Record) error {
	var plain []byte
	for _, r := range records {
		plain = segfmt.PutUvarint(plain, uint64(r.StreamID))
		plain = segfmt.PutUvarint(plain, r.EpochQ)
		plain = segfmt.PutUvarint(plain, uint64(len(r.Indices)))
		var prev int64
		for i, idx := range r.Indices {
			var delta int64
			if i == 0 {
				delta = idx
			} else {
				delta = idx - prev
			}
			prev = idx
			plain = segfmt.PutUvarint(plain, uint64(delta))
			plain = segfmt.PutUvarint(plain, segfmt.ZigzagEncode(r.ValuesQ[i]))
		}
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("fixture: creating zstd writer: %w", err)
	}
	compressed := enc.EncodeAll(plain, nil)
	if err := enc.Close(); err != nil {
		return fmt.Errorf("fixture: closing zstd writer: %w", err)
	}
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("fixture: writing %s: %w", path, err)
	}
	return nil
}
