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
	"os"
	"path/filepath"

	"github.com/michielmj/disco-data-logger/waiter"
)

// Cleanup removes collected segment files (and optionally stream
// metadata) across every path this Collector was constructed with, not
// just a selected subset: cleanup is a retention operation over whole
// logger directories (spec.md §4.5, §9). It returns (true, nil) on
// success, (false, nil) if WaitForDone was requested and timed out,
// and (false, err) for any filesystem error other than a missing file.
func (c *Collector) Cleanup(opts CleanupOptions) (bool, error) {
	if opts.WaitForDone {
		pending := make(map[string]struct{}, len(c.paths))
		for _, dir := range c.paths {
			pending[dir] = struct{}{}
		}
		ok := waiter.Wait(pending, waiter.Config{Backoff: opts.Backoff, Timeout: opts.Timeout})
		if !ok {
			c.logf("cleanup: timed out waiting for completion")
			return false, nil
		}
	}

	for _, dir := range c.paths {
		segFiles, err := listSegments(dir)
		if err != nil {
			return false, err
		}
		for _, path := range segFiles {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return false, fmt.Errorf("collector: removing %s: %w", path, err)
			}
		}
		if !opts.KeepMeta {
			streamsDir := filepath.Join(dir, streamsDirName)
			if err := os.RemoveAll(streamsDir); err != nil {
				return false, fmt.Errorf("collector: removing %s: %w", streamsDir, err)
			}
		}
	}
	c.logf("cleanup: done over %d path(s), keep_meta=%v", len(c.paths), opts.KeepMeta)
	return true, nil
}
