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

// Package segment holds the data decoded out of one logger directory:
// stream metadata, scale pairs, sparse measurements, and the decoder
// that turns a `*.seg.zst` file plus a stream_id -> ScalePair map into
// a lazy sequence of measurements.
package segment

import (
	"encoding/json"
	"fmt"

	"github.com/michielmj/disco-data-logger/cell"
)

// ScalePair recovers float64 epoch and value magnitudes from the
// quantized integers stored in a segment file.
type ScalePair struct {
	EpochScale float64
	ValueScale float64
}

// Valid reports whether both scales are strictly positive, as
// required by spec.md §3.
func (s ScalePair) Valid() bool {
	return s.EpochScale > 0 && s.ValueScale > 0
}

// StreamMetadata is the immutable, read-only descriptor for one
// stream within one logger directory (spec.md §3).
type StreamMetadata struct {
	StreamID   uint32
	EpochScale float64
	ValueScale float64
	Labels     map[string]cell.Value

	// dir is the owning directory path; it is an implicit binding
	// populated by the loader, never serialized.
	dir string
}

// Dir returns the logger directory that produced this metadata.
func (m StreamMetadata) Dir() string { return m.dir }

// WithDir returns a copy of m bound to dir. Used by the loader; kept
// exported so tests can construct fixtures without going through JSON.
func (m StreamMetadata) WithDir(dir string) StreamMetadata {
	m.dir = dir
	return m
}

// Scale returns the ScalePair implied by this metadata.
func (m StreamMetadata) Scale() ScalePair {
	return ScalePair{EpochScale: m.EpochScale, ValueScale: m.ValueScale}
}

// StringLabels projects m.Labels down to map[string]string for
// evaluation by a selector.Rule, which only ever sees strings.
// Non-string cells render via cell.Value.String; null cells are
// omitted, so the rule sees them as absent.
func (m StreamMetadata) StringLabels() map[string]string {
	out := make(map[string]string, len(m.Labels))
	for k, v := range m.Labels {
		if v.IsNull() {
			continue
		}
		out[k] = v.String()
	}
	return out
}

// ParseMetadata decodes one streams/<id>.json document. A missing
// stream_id is a fatal InvalidInputError per spec.md §7. Missing or
// non-positive scales are tolerated here: a missing or undecodable
// scale is recorded as zero, and any non-positive scale fails
// ScalePair.Valid. The collector rejects a directory if any of its
// descriptors, selected or not, has an invalid ScalePair.
func ParseMetadata(data []byte) (StreamMetadata, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return StreamMetadata{}, fmt.Errorf("segment: decoding metadata: %w", err)
	}
	idRaw, ok := all["stream_id"]
	if !ok {
		return StreamMetadata{}, &InvalidInputError{Reason: "stream metadata missing stream_id"}
	}
	var id uint32
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return StreamMetadata{}, &InvalidInputError{Reason: fmt.Sprintf("stream_id is not a uint32: %v", err)}
	}
	m := StreamMetadata{StreamID: id, Labels: make(map[string]cell.Value, len(all))}
	if raw, ok := all["epoch_scale"]; ok {
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			m.EpochScale = f
		}
	}
	if raw, ok := all["value_scale"]; ok {
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			m.ValueScale = f
		}
	}
	for k, raw := range all {
		if k == "stream_id" || k == "epoch_scale" || k == "value_scale" {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		m.Labels[k] = cell.FromAny(v)
	}
	return m, nil
}
