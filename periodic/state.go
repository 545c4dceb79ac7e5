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

// emitStateUpTo flushes cached state for every completed period up
// to epoch, honoring include_equal the way spec.md §4.3.1 describes:
// strict '<' for ordinary records, '<=' at close.
func (s *Stream) emitStateUpTo(epoch float64, includeEqual bool) {
	for s.lastVec != nil {
		boundary := float64(s.nextStateK) * s.periodicity
		if boundary > epoch || (!includeEqual && boundary == epoch) {
			break
		}
		s.emit.Emit(s.streamID, boundary, *s.lastVec)
		s.nextStateK++
	}
}

func (s *Stream) recordState(epoch float64, v sparse.Vector) {
	if s.lastVec == nil {
		// No measurement has ever been observed, so no boundary up to
		// and including this one has a last-known value to emit
		// (spec.md §4.3.1: "if no measurement was ever received,
		// emit nothing for that period"). Start flushing from the
		// first period this measurement could possibly close.
		s.nextStateK = int64(math.Ceil(epoch / s.periodicity))
	} else {
		s.emitStateUpTo(epoch, false)
	}
	s.lastVec = &v
}
