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

package batch

import (
	"strconv"

	"golang.org/x/exp/slices"

	"github.com/michielmj/disco-data-logger/cell"
)

// DefaultCapacity is the row capacity a Collector uses when none is
// configured, matching the Python original's DEFAULT_BATCH_SIZE.
const DefaultCapacity = 2048

// DedupeColumns removes duplicate entries from columns, keeping the
// first occurrence of each name and preserving order.
func DedupeColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Row is one decoded measurement plus its passthrough label values,
// as appended to a Buffer.
type Row struct {
	StreamID uint32
	Epoch    float64
	Indices  []int64
	Values   []float64
	Extra    map[string]cell.Value
}

// RecordBatch is the column-oriented output of a drained Buffer: the
// fixed leading columns, followed by the configured extra columns in
// order (spec.md §3).
type RecordBatch struct {
	Schema   Schema
	StreamID []uint32
	Epoch    []float64
	Indices  [][]int64
	Values   [][]float64
	Extra    map[string][]cell.Value
}

// Len returns the number of rows in the batch.
func (b *RecordBatch) Len() int { return len(b.StreamID) }

// Buffer accumulates decoded rows and assembles them into a
// RecordBatch on demand (spec.md §4.1).
type Buffer struct {
	columns  []string
	capacity int

	rows []Row
}

// New constructs a Buffer for the given (deduplicated) extra label
// columns and capacity. A capacity of 0 disables IsFull; the caller
// is then responsible for draining the buffer itself.
func New(columns []string, capacity int) *Buffer {
	return &Buffer{columns: DedupeColumns(columns), capacity: capacity}
}

// Size returns the number of rows currently buffered.
func (b *Buffer) Size() int { return len(b.rows) }

// IsFull reports size >= capacity when capacity > 0, else false.
func (b *Buffer) IsFull() bool {
	return b.capacity > 0 && len(b.rows) >= b.capacity
}

// Append copies the sparse row and each configured label column's
// value from metadata into the buffer. Missing keys produce a null
// cell. Append never retains the caller's indices/values slices;
// subsequent mutation of them by the caller does not affect the
// buffered row (spec.md §4.1).
func (b *Buffer) Append(streamID uint32, epoch float64, indices []int64, values []float64, metadata map[string]cell.Value) {
	idx := make([]int64, len(indices))
	copy(idx, indices)
	vals := make([]float64, len(values))
	copy(vals, values)

	row := Row{StreamID: streamID, Epoch: epoch, Indices: idx, Values: vals}
	if len(b.columns) > 0 {
		row.Extra = make(map[string]cell.Value, len(b.columns))
		for _, col := range b.columns {
			if v, ok := metadata[col]; ok {
				row.Extra[col] = v
			} else {
				row.Extra[col] = cell.Nil
			}
		}
	}
	b.rows = append(b.rows, row)
}

// DrainToBatch returns a single RecordBatch containing every buffered
// row in append order, then empties the buffer. If hint is non-nil,
// the returned batch's Schema is hint (its column order wins);
// otherwise a Schema is derived from the buffer's configured columns.
func (b *Buffer) DrainToBatch(hint *Schema) *RecordBatch {
	schema := b.deriveSchema()
	if hint != nil {
		schema = *hint
	}

	out := &RecordBatch{
		Schema:   schema,
		StreamID: make([]uint32, len(b.rows)),
		Epoch:    make([]float64, len(b.rows)),
		Indices:  make([][]int64, len(b.rows)),
		Values:   make([][]float64, len(b.rows)),
	}
	if len(schema.Extra) > 0 {
		out.Extra = make(map[string][]cell.Value, len(schema.Extra))
		for _, c := range schema.Extra {
			out.Extra[c.Name] = make([]cell.Value, len(b.rows))
		}
	}
	for i, row := range b.rows {
		out.StreamID[i] = row.StreamID
		out.Epoch[i] = row.Epoch
		out.Indices[i] = row.Indices
		out.Values[i] = row.Values
		for _, c := range schema.Extra {
			v := row.Extra[c.Name]
			out.Extra[c.Name][i] = conform(v, c.Kind)
		}
	}
	b.rows = b.rows[:0]
	return out
}

// deriveSchema infers one cell.Kind per configured column from the
// first non-null value observed for it across the buffered rows,
// defaulting to cell.String per spec.md §9's design note.
func (b *Buffer) deriveSchema() Schema {
	s := Schema{Extra: make([]Column, len(b.columns))}
	for i, name := range b.columns {
		kind := cell.String
		for _, row := range b.rows {
			if v, ok := row.Extra[name]; ok && !v.IsNull() {
				kind = v.Kind
				break
			}
		}
		s.Extra[i] = Column{Name: name, Kind: kind}
	}
	return s
}

// conform coerces v to kind when v's own kind disagrees, so a batch
// drained against a schema hint presents a single consistent cell
// type per column. A value that cannot be represented as kind (e.g. a
// non-numeric string asked to conform to Float64) degrades to Null
// rather than fabricating data.
func conform(v cell.Value, kind cell.Kind) cell.Value {
	if v.IsNull() || v.Kind == kind {
		return v
	}
	switch kind {
	case cell.String:
		return cell.FromString(v.String())
	case cell.Float64:
		if v.Kind == cell.String {
			if f, err := strconv.ParseFloat(v.Str, 64); err == nil {
				return cell.FromFloat64(f)
			}
		}
		return cell.Nil
	case cell.Bool:
		if v.Kind == cell.String {
			if b, err := strconv.ParseBool(v.Str); err == nil {
				return cell.FromBool(b)
			}
		}
		return cell.Nil
	default:
		return cell.Nil
	}
}
