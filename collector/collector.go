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

// Package collector implements the fan-in collector (spec.md §4.5): it
// discovers stream metadata across one or more logger directories,
// filters by a label rule, waits for producer completion, decodes
// segments through a shared batch.Buffer, and flushes record batches
// to a caller-supplied writer.
package collector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/michielmj/disco-data-logger/batch"
	"github.com/michielmj/disco-data-logger/fsutil"
	"github.com/michielmj/disco-data-logger/segment"
	"github.com/michielmj/disco-data-logger/selector"
	"github.com/michielmj/disco-data-logger/waiter"
)

// Writer is the caller-supplied record-batch sink. It is external to
// this module (spec.md §1, "the parquet exporter" and similar are
// collaborators, not implemented here).
type Writer interface {
	WriteBatch(*batch.RecordBatch) error
}

// SchemaHinter is optionally implemented by a Writer to pin the
// schema a drained RecordBatch must conform to (spec.md §4.1,
// "schema_hint").
type SchemaHinter interface {
	Schema() *batch.Schema
}

// Options configures one Collect call (spec.md §6).
type Options struct {
	// Rule, if non-nil, restricts streams to those whose labels
	// satisfy it.
	Rule selector.Rule
	// Columns lists extra passthrough columns; duplicates are
	// removed preserving first occurrence.
	Columns []string
	// Backoff is the poll interval while waiting for _DONE; negative
	// is treated as zero.
	Backoff time.Duration
	// Timeout is the optional deadline for waiting; nil waits
	// forever.
	Timeout *time.Duration
}

// CleanupOptions configures one Cleanup call (spec.md §4.5).
type CleanupOptions struct {
	// KeepMeta, when false, also removes the streams/ subdirectory.
	KeepMeta bool
	// WaitForDone, when true, waits for _DONE before deleting
	// anything.
	WaitForDone bool
	Backoff     time.Duration
	Timeout     *time.Duration
}

// Collector orchestrates collection and cleanup across a fixed set of
// logger directories.
type Collector struct {
	paths []string
	// Logf, if non-nil, receives diagnostic messages the way
	// db.GCConfig.Logf does; it is never wired to a concrete logger
	// by this package.
	Logf func(format string, args ...interface{})
}

// New constructs a Collector over paths. At least one path must be
// provided (spec.md §7).
func New(paths []string) (*Collector, error) {
	if len(paths) == 0 {
		return nil, &InvalidInputError{Reason: "at least one path must be provided"}
	}
	cp := make([]string, len(paths))
	copy(cp, paths)
	return &Collector{paths: cp}, nil
}

func (c *Collector) logf(format string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// Collect runs discovery, selection, waiting, decoding, and final
// flush as described in spec.md §4.5. It returns (true, nil) on
// success, (false, nil) if the completion waiter timed out, and
// (false, err) for any fatal input or decode error.
func (c *Collector) Collect(writer Writer, opts Options) (bool, error) {
	runID := uuid.New()
	c.logf("collect[%s]: starting over %d path(s)", runID, len(c.paths))

	disc, err := loadStreams(c.paths)
	if err != nil {
		return false, err
	}

	selected := disc.all
	if opts.Rule != nil {
		selected = selected[:0:0]
		for _, meta := range disc.all {
			if opts.Rule.Matches(meta.StringLabels()) {
				selected = append(selected, meta)
			}
		}
	}
	if len(selected) == 0 {
		c.logf("collect[%s]: selection empty, nothing to do", runID)
		return true, nil
	}

	columns := batch.DedupeColumns(opts.Columns)

	selectedDirs, selectedByDir := groupByDir(selected, disc.dirList)

	pending := make(map[string]struct{}, len(selectedDirs))
	for _, dir := range selectedDirs {
		pending[dir] = struct{}{}
	}
	if len(pending) > 0 {
		ok := waiter.Wait(pending, waiter.Config{Backoff: opts.Backoff, Timeout: opts.Timeout})
		if !ok {
			c.logf("collect[%s]: timed out waiting for completion", runID)
			return false, nil
		}
	}

	buf := batch.New(columns, batch.DefaultCapacity)
	var hint *batch.Schema
	if sh, ok := writer.(SchemaHinter); ok {
		hint = sh.Schema()
	}

	for _, dir := range selectedDirs {
		ids := selectedByDir[dir]
		metaMap := disc.byDir[dir]
		if err := c.decodeDir(dir, ids, metaMap, buf, writer, hint); err != nil {
			return false, err
		}
	}
	if err := flush(buf, writer, hint); err != nil {
		return false, err
	}
	c.logf("collect[%s]: done", runID)
	return true, nil
}

// groupByDir partitions the selected descriptors by owning directory,
// preserving dirOrder (the order directories were first discovered)
// for the directory iteration order spec.md §5 requires.
func groupByDir(selected []segment.StreamMetadata, dirOrder []string) ([]string, map[string]map[uint32]struct{}) {
	byDir := make(map[string]map[uint32]struct{})
	for _, m := range selected {
		set, ok := byDir[m.Dir()]
		if !ok {
			set = make(map[uint32]struct{})
			byDir[m.Dir()] = set
		}
		set[m.StreamID] = struct{}{}
	}
	var ordered []string
	for _, dir := range dirOrder {
		if _, ok := byDir[dir]; ok {
			ordered = append(ordered, dir)
		}
	}
	return ordered, byDir
}

// decodeDir decodes every *.seg.zst file in dir, in lexicographic
// order, appending selected measurements to buf and flushing whenever
// it reports full (spec.md §4.5 step 5, §5 ordering guarantees).
func (c *Collector) decodeDir(dir string, selectedIDs map[uint32]struct{}, metaMap map[uint32]segment.StreamMetadata, buf *batch.Buffer, writer Writer, hint *batch.Schema) error {
	if len(metaMap) == 0 {
		return &InvalidInputError{Reason: fmt.Sprintf("no metadata available for logger %s", dir)}
	}
	scales := make(map[uint32]segment.ScalePair, len(metaMap))
	for sid, meta := range metaMap {
		sp := meta.Scale()
		if !sp.Valid() {
			return &InvalidInputError{Reason: fmt.Sprintf("stream metadata missing scales for stream %d in %s", sid, dir)}
		}
		scales[sid] = sp
	}

	segFiles, err := listSegments(dir)
	if err != nil {
		return err
	}
	for _, path := range segFiles {
		dec, err := segment.NewDecoder(path, scales)
		if err != nil {
			return err
		}
		for {
			m, err := dec.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if _, ok := selectedIDs[m.StreamID]; !ok {
				continue
			}
			meta, ok := metaMap[m.StreamID]
			if !ok {
				continue
			}
			buf.Append(m.StreamID, m.Epoch, m.Indices, m.Values, meta.Labels)
			if buf.IsFull() {
				if err := flush(buf, writer, hint); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func flush(buf *batch.Buffer, writer Writer, hint *batch.Schema) error {
	if buf.Size() == 0 {
		return nil
	}
	rb := buf.DrainToBatch(hint)
	return writer.WriteBatch(rb)
}

// listSegments returns the *.seg.zst files directly under dir, in the
// lexicographic order fsutil.VisitMatches visits them, which is the
// ingestion order spec.md §5 requires.
func listSegments(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	files, err := fsutil.OpenMatches(os.DirFS(dir), "*.seg.zst")
	if err != nil {
		return nil, fmt.Errorf("collector: listing %s: %w", dir, err)
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dir, f.Path())
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("collector: closing %s: %w", f.Path(), err)
		}
	}
	return paths, nil
}
