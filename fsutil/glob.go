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

// Package fsutil enumerates the two kinds of files a logger directory
// holds — stream descriptors under streams/*.json and collected
// segments matching *.seg.zst — in sorted order, without requiring
// every caller to re-derive the glob-then-open dance (the collector's
// discovery pass and its per-path segment scan both need it; see
// loadStreams in collector/discover.go and listSegments in
// collector/collector.go).
package fsutil

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// VisitMatchFn is the callback passed to VisitMatches for each file
// whose path matches the glob pattern.
//
// If VisitMatches encounters an error opening a file, VisitMatchFn is
// called with a nil file and the error encountered opening it;
// VisitMatches continues if the callback returns a nil error.
// Similarly, if VisitMatchFn returns a non-nil error, walking stops.
type VisitMatchFn func(name string, file fs.File, err error) error

// GlobWalkerFS is implemented by file systems that can enumerate
// glob matches more efficiently than a full recursive walk (for
// example, an object-store-backed fs.FS that can list a prefix
// directly rather than descending directory by directory).
type GlobWalkerFS interface {
	fs.FS
	VisitMatches(seek, pattern string, visit VisitMatchFn) error
}

// VisitMatches opens every non-directory file in f whose path matches
// pattern, in lexicographic order starting after seek.
//
// If seek is non-empty, it must begin with pattern's constant
// (non-wildcard) leading directory component, as returned by
// literalPrefix; otherwise VisitMatches returns an error. Passing the
// last-seen path as seek skips every file at or before it.
//
// If f implements GlobWalkerFS, f.VisitMatches is called directly.
// Otherwise VisitMatches falls back to fs.WalkDir over the pattern's
// literal prefix, opening matches sequentially.
func VisitMatches(f fs.FS, seek, pattern string, visit VisitMatchFn) error {
	pattern = path.Clean(pattern)
	if _, err := path.Match(pattern, ""); err != nil {
		return err
	}
	pre := literalPrefix(pattern)
	seek = path.Clean(seek)
	if seek == "." {
		seek = ""
	}
	if seek != "" && (!strings.HasPrefix(seek, pre) || seek < pre) {
		return fmt.Errorf("fsutil: seek %q doesn't match pattern %q", seek, pattern)
	}
	if gw, ok := f.(GlobWalkerFS); ok {
		return gw.VisitMatches(seek, pattern, visit)
	}
	outer := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return visit(p, nil, err)
		}
		if d.IsDir() {
			if p < seek && p != "." && !strings.HasPrefix(seek, p) {
				return fs.SkipDir
			}
			return nil
		}
		if p <= seek {
			return nil
		}
		match, err := path.Match(pattern, p)
		if err != nil || !match {
			return err
		}
		opened, err := f.Open(p)
		if err != nil {
			return visit(p, nil, err)
		}
		return visit(p, opened, nil)
	}
	if pre == "" {
		pre = "."
	}
	return fs.WalkDir(f, pre, outer)
}

// literalPrefix returns the longest directory path pattern is
// guaranteed to live under, i.e. the portion before its first
// wildcard metacharacter. VisitMatches uses it to avoid walking
// siblings of the directory a pattern like "streams/*.json" actually
// targets.
func literalPrefix(pattern string) string {
	j := 0
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '?', '\\', '[':
			return pattern[:j]
		case '/':
			j = i
		}
	}
	return pattern
}

// PathFile pairs an open fs.File with the path it was opened from,
// since fs.File alone doesn't expose the name it was matched under.
type PathFile interface {
	fs.File
	Path() string
}

type pathFile struct {
	fs.File
	path string
}

func (p *pathFile) Path() string { return p.path }

// WithPath wraps f so its originating path travels with it. If f
// already implements PathFile (as a GlobWalkerFS's Open might),
// WithPath returns it unchanged.
func WithPath(f fs.File, name string) PathFile {
	if pf, ok := f.(PathFile); ok {
		return pf
	}
	return &pathFile{f, name}
}

// OpenMatches runs VisitMatches over f and pattern and collects every
// match into a slice of PathFiles, in the order visited. Callers that
// need to stream rather than buffer (a directory with many thousands
// of segments) should call VisitMatches directly instead.
func OpenMatches(f fs.FS, pattern string) ([]PathFile, error) {
	var out []PathFile
	visit := func(name string, file fs.File, err error) error {
		if err != nil {
			return err
		}
		out = append(out, WithPath(file, name))
		return nil
	}
	err := VisitMatches(f, "", pattern, visit)
	return out, err
}
