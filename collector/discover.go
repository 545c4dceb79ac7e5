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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/michielmj/disco-data-logger/fsutil"
	"github.com/michielmj/disco-data-logger/segment"
)

// streamsDirName is the fixed subdirectory name holding per-stream
// metadata documents (spec.md §6).
const streamsDirName = "streams"

// discovered holds every stream descriptor loaded across all
// configured paths, plus a lookup indexed by (dir, stream_id) as
// spec.md §4.5 Discovery requires.
type discovered struct {
	all     []segment.StreamMetadata
	byDir   map[string]map[uint32]segment.StreamMetadata
	dirList []string // directories with at least one streams/*.json descriptor, in configured-path order
}

// loadStreams enumerates streams/*.json under each of paths, silently
// skipping directories with no streams subdirectory. A descriptor
// missing stream_id is a fatal InvalidInputError (surfaced from
// segment.ParseMetadata as *segment.InvalidInputError), which halts
// discovery and propagates to the caller (spec.md §7).
func loadStreams(paths []string) (*discovered, error) {
	d := &discovered{byDir: make(map[string]map[uint32]segment.StreamMetadata)}
	for _, base := range paths {
		info, err := os.Stat(filepath.Join(base, streamsDirName))
		if err != nil || !info.IsDir() {
			continue
		}
		files, err := fsutil.OpenMatches(os.DirFS(base), streamsDirName+"/*.json")
		if err != nil {
			return nil, fmt.Errorf("collector: listing %s: %w", filepath.Join(base, streamsDirName), err)
		}
		dirMap := make(map[uint32]segment.StreamMetadata, len(files))
		for _, f := range files {
			data, err := io.ReadAll(f)
			cerr := f.Close()
			if err != nil {
				return nil, fmt.Errorf("collector: reading %s: %w", f.Path(), err)
			}
			if cerr != nil {
				return nil, fmt.Errorf("collector: closing %s: %w", f.Path(), cerr)
			}
			meta, err := segment.ParseMetadata(data)
			if err != nil {
				return nil, err
			}
			meta = meta.WithDir(base)
			dirMap[meta.StreamID] = meta
			d.all = append(d.all, meta)
		}
		if len(files) > 0 {
			d.byDir[base] = dirMap
			d.dirList = append(d.dirList, base)
		}
	}
	return d, nil
}
