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

package periodic

import (
	"math"

	"github.com/michielmj/disco-data-logger/sparse"
)

// drainAccumulatorBefore emits every completed bin strictly before
// periodIndex: the current in-progress bin if its index equals
// next_k, otherwise an empty record, per spec.md §4.3.2.
func (s *Stream) drainAccumulatorBefore(periodIndex int64) {
	for s.nextAccK < periodIndex {
		emitK := s.nextAccK
		var v sparse.Vector
		if s.haveCurK && s.curK == emitK {
			if s.acc != nil {
				v = *s.acc
			} else {
				v = sparse.Empty()
			}
			s.haveCurK = false
			s.acc = nil
		} else {
			v = sparse.Empty()
		}
		s.emit.Emit(s.streamID, float64(emitK)*s.periodicity, v)
		s.nextAccK++
	}
}

func (s *Stream) recordAccumulator(epoch float64, v sparse.Vector) {
	kIn := int64(math.Floor(epoch / s.periodicity))
	s.drainAccumulatorBefore(kIn)

	if !s.haveCurK || s.curK != kIn {
		s.curK = kIn
		s.haveCurK = true
		if v.Len() != 0 {
			s.acc = &v
		} else {
			s.acc = nil
		}
		return
	}

	if v.Len() == 0 {
		return
	}
	if s.acc == nil {
		s.acc = &v
		return
	}
	sum := sparse.Add(*s.acc, v)
	s.acc = &sum
}
