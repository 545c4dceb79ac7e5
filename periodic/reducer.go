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

// Package periodic implements the per-stream periodic reducer
// (spec.md §4.3): a state machine that turns a stream of sparse
// measurements into one emitted record per time period, under either
// latched-state or additive-accumulator semantics. Modeled as a
// tagged variant (State vs. Accumulator fields) plus a shared next_k
// and P, the same shape described in spec.md §9's design notes,
// rather than as two polymorphic implementations of a common
// interface.
package periodic

import (
	"math"

	"github.com/michielmj/disco-data-logger/sparse"
)

// Kind selects the reduction semantics for a Stream.
type Kind int

const (
	// StateKind re-emits the most recently observed sparse vector at
	// every period boundary (spec.md §4.3.1).
	StateKind Kind = iota
	// AccumulatorKind sums every measurement landing in a period bin
	// and emits the sum once the bin closes (spec.md §4.3.2).
	AccumulatorKind
)

// Emitter is the raw logger `emit(sid, boundary_epoch, indices,
// values)` contract a Stream writes its output records to.
type Emitter interface {
	Emit(streamID uint32, boundaryEpoch float64, v sparse.Vector)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(streamID uint32, boundaryEpoch float64, v sparse.Vector)

// Emit implements Emitter.
func (f EmitterFunc) Emit(streamID uint32, boundaryEpoch float64, v sparse.Vector) {
	f(streamID, boundaryEpoch, v)
}

// Stream is a per-stream periodic reducer attached to a logical
// output stream with a fixed positive periodicity and one of the two
// kinds (spec.md §4.3).
type Stream struct {
	streamID    uint32
	periodicity float64
	kind        Kind
	emit        Emitter

	// state-kind bookkeeping
	nextStateK int64
	lastVec    *sparse.Vector

	// accumulator-kind bookkeeping
	nextAccK int64
	curK     int64
	haveCurK bool
	acc      *sparse.Vector
}

// New constructs a Stream. periodicity must be strictly positive and
// kind must be one of StateKind or AccumulatorKind; otherwise New
// returns an *InvalidInputError.
func New(emit Emitter, streamID uint32, periodicity float64, kind Kind) (*Stream, error) {
	if periodicity <= 0 {
		return nil, &InvalidInputError{Reason: "periodicity must be positive"}
	}
	if kind != StateKind && kind != AccumulatorKind {
		return nil, &InvalidInputError{Reason: "kind must be StateKind or AccumulatorKind"}
	}
	return &Stream{
		streamID:    streamID,
		periodicity: periodicity,
		kind:        kind,
		emit:        emit,
	}, nil
}

// StreamID returns the stream this reducer emits under.
func (s *Stream) StreamID() uint32 { return s.streamID }

// Record ingests one measurement. indices and values must have equal
// length; Record copies them into owned storage before returning, so
// later caller-side mutation of the backing arrays never affects a
// previously or subsequently emitted record (spec.md §4.3 invariant 4).
func (s *Stream) Record(epoch float64, indices []int64, values []float64) error {
	if len(indices) != len(values) {
		return &InvalidInputError{Reason: "indices and values must have the same length"}
	}
	v := sparse.FromSlices(indices, values)
	switch s.kind {
	case StateKind:
		s.recordState(epoch, v)
	default:
		s.recordAccumulator(epoch, v)
	}
	return nil
}

// Close flushes any residual state up to finalEpoch. For StateKind,
// the boundary equal to finalEpoch is included (spec.md §4.3.1); for
// AccumulatorKind, only bins strictly before floor(finalEpoch/P) are
// flushed, leaving any bin containing finalEpoch open and unemitted
// (spec.md §4.3.2, and the open question recorded in spec.md §9).
func (s *Stream) Close(finalEpoch float64) {
	switch s.kind {
	case StateKind:
		s.emitStateUpTo(finalEpoch, true)
	default:
		kIn := int64(math.Floor(finalEpoch / s.periodicity))
		s.drainAccumulatorBefore(kIn)
	}
}
