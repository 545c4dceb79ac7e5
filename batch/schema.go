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

// Package batch implements the column-oriented batch buffer described
// in spec.md §4.1: it accumulates decoded rows and drains them into a
// fixed-leading-schema RecordBatch.
package batch

import "github.com/michielmj/disco-data-logger/cell"

// Column describes one passthrough label column: its name and the
// cell.Kind the batch settled on for it.
type Column struct {
	Name string
	Kind cell.Kind
}

// Schema is the fixed leading columns (stream_id, epoch, indices,
// values) plus zero or more label passthrough columns, in the order
// they were requested. It is the "schema_hint" argument to
// DrainToBatch and also the shape returned alongside each RecordBatch.
type Schema struct {
	Extra []Column
}

// ColumnNames returns the full column name list, fixed columns first.
func (s Schema) ColumnNames() []string {
	names := []string{"stream_id", "epoch", "indices", "values"}
	for _, c := range s.Extra {
		names = append(names, c.Name)
	}
	return names
}
