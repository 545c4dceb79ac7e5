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

package collector

import (
	"testing"
	"time"

	"github.com/michielmj/disco-data-logger/batch"
	"github.com/michielmj/disco-data-logger/internal/fixture"
	"github.com/michielmj/disco-data-logger/selector"
)

type fakeWriter struct {
	batches []*batch.RecordBatch
}

func (w *fakeWriter) WriteBatch(rb *batch.RecordBatch) error {
	w.batches = append(w.batches, rb)
	return nil
}

func (w *fakeWriter) totalRows() int {
	n := 0
	for _, b := range w.batches {
		n += b.Len()
	}
	return n
}

// TestCollectFilterAndProject mirrors scenario S1: two streams in one
// logger directory, a selector keeping only one of them, and a
// "region" passthrough column.
func TestCollectFilterAndProject(t *testing.T) {
	root := t.TempDir()
	_, err := fixture.Dir(root, []fixture.Stream{
		{ID: 1, EpochScale: 1, ValueScale: 1, Labels: map[string]interface{}{"host": "a", "region": "us"}},
		{ID: 2, EpochScale: 1, ValueScale: 1, Labels: map[string]interface{}{"host": "b", "region": "eu"}},
	}, [][]fixture.Record{
		{
			{StreamID: 1, EpochQ: 10, Indices: []int64{0, 1}, ValuesQ: []int64{5, -2}},
			{StreamID: 2, EpochQ: 20, Indices: []int64{0}, ValuesQ: []int64{9}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := fixture.Done(root); err != nil {
		t.Fatal(err)
	}

	c, err := New([]string{root})
	if err != nil {
		t.Fatal(err)
	}
	w := &fakeWriter{}
	ok, err := c.Collect(w, Options{
		Rule:    selector.Equals("host", "a"),
		Columns: []string{"region"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected success")
	}
	if got := w.totalRows(); got != 1 {
		t.Fatalf("expected 1 row after filtering, got %d", got)
	}
	rb := w.batches[0]
	if rb.StreamID[0] != 1 {
		t.Fatalf("expected stream 1 to survive the filter, got %d", rb.StreamID[0])
	}
	if rb.Extra["region"][0].Str != "us" {
		t.Fatalf("expected region=us passthrough, got %+v", rb.Extra["region"][0])
	}
}

// TestCollectTimesOut mirrors scenario S2: a directory never marked
// _DONE causes Collect to return (false, nil) once the deadline
// elapses.
func TestCollectTimesOut(t *testing.T) {
	root := t.TempDir()
	_, err := fixture.Dir(root, []fixture.Stream{
		{ID: 1, EpochScale: 1, ValueScale: 1},
	}, [][]fixture.Record{
		{{StreamID: 1, EpochQ: 1, Indices: []int64{0}, ValuesQ: []int64{1}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	// deliberately no fixture.Done(root)

	c, err := New([]string{root})
	if err != nil {
		t.Fatal(err)
	}
	timeout := 5 * time.Millisecond
	w := &fakeWriter{}
	ok, err := c.Collect(w, Options{Backoff: time.Millisecond, Timeout: &timeout})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected timeout since _DONE was never written")
	}
	if len(w.batches) != 0 {
		t.Fatalf("expected no batches written on timeout, got %d", len(w.batches))
	}
}

// TestCollectEmptySelectionNoOp covers a rule matching nothing: the
// collector succeeds without waiting or decoding anything.
func TestCollectEmptySelectionNoOp(t *testing.T) {
	root := t.TempDir()
	_, err := fixture.Dir(root, []fixture.Stream{
		{ID: 1, EpochScale: 1, ValueScale: 1, Labels: map[string]interface{}{"host": "a"}},
	}, [][]fixture.Record{
		{{StreamID: 1, EpochQ: 1, Indices: []int64{0}, ValuesQ: []int64{1}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	// no _DONE marker; if the collector tried to wait, this would hang
	// or time out instead of returning immediately.

	c, err := New([]string{root})
	if err != nil {
		t.Fatal(err)
	}
	w := &fakeWriter{}
	ok, err := c.Collect(w, Options{Rule: selector.Equals("host", "nobody")})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected success for an empty selection")
	}
	if len(w.batches) != 0 {
		t.Fatalf("expected no batches, got %d", len(w.batches))
	}
}

// TestCollectMissingScaleFailsFatally exercises the original_source
// derived rule: a directory's ScalePair map is validated against ALL
// of its stream descriptors, not only the selected ones, so an
// unselected stream with a non-positive scale still fails the
// Collect call.
func TestCollectMissingScaleFailsFatally(t *testing.T) {
	root := t.TempDir()
	_, err := fixture.Dir(root, []fixture.Stream{
		{ID: 1, EpochScale: 1, ValueScale: 1, Labels: map[string]interface{}{"host": "a"}},
		{ID: 2, EpochScale: 0, ValueScale: 0, Labels: map[string]interface{}{"host": "b"}},
	}, [][]fixture.Record{
		{{StreamID: 1, EpochQ: 1, Indices: []int64{0}, ValuesQ: []int64{1}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := fixture.Done(root); err != nil {
		t.Fatal(err)
	}

	c, err := New([]string{root})
	if err != nil {
		t.Fatal(err)
	}
	w := &fakeWriter{}
	_, err = c.Collect(w, Options{Rule: selector.Equals("host", "a")})
	if err == nil {
		t.Fatal("expected a fatal error from stream 2's missing scale, even though only stream 1 was selected")
	}
}

func TestCollectTwoDirectoriesPreserveOrder(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	if _, err := fixture.Dir(rootA, []fixture.Stream{{ID: 1, EpochScale: 1, ValueScale: 1}},
		[][]fixture.Record{{{StreamID: 1, EpochQ: 1, Indices: []int64{0}, ValuesQ: []int64{1}}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := fixture.Dir(rootB, []fixture.Stream{{ID: 2, EpochScale: 1, ValueScale: 1}},
		[][]fixture.Record{{{StreamID: 2, EpochQ: 2, Indices: []int64{0}, ValuesQ: []int64{2}}}}); err != nil {
		t.Fatal(err)
	}
	if err := fixture.Done(rootA); err != nil {
		t.Fatal(err)
	}
	if err := fixture.Done(rootB); err != nil {
		t.Fatal(err)
	}

	c, err := New([]string{rootA, rootB})
	if err != nil {
		t.Fatal(err)
	}
	w := &fakeWriter{}
	ok, err := c.Collect(w, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected success")
	}
	if got := w.totalRows(); got != 2 {
		t.Fatalf("expected 2 rows across both directories, got %d", got)
	}
	var ids []uint32
	for _, b := range w.batches {
		ids = append(ids, b.StreamID...)
	}
	if ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected rows from the first configured directory before the second, got %v", ids)
	}
}

func TestNewRejectsEmptyPaths(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected an error constructing a Collector with no paths")
	}
}
