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

// Package waiter implements the completion waiter (spec.md §4.4): it
// blocks until every participating logger directory exposes a _DONE
// sentinel file, or a deadline elapses. The sentinel is a filesystem
// marker rather than a lock, so waiting here is strictly advisory and
// safe under eventual-consistency filesystems (spec.md §9).
package waiter

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/maps"
)

// DoneMarker is the name of the zero-byte completion sentinel written
// at the root of a logger directory by its producer.
const DoneMarker = "_DONE"

// Config controls a Wait call's polling behavior.
type Config struct {
	// Backoff is the sleep interval between polls. Negative values
	// are treated as zero (spec.md §4.4, §6).
	Backoff time.Duration
	// Timeout, if non-nil, is the deadline for waiting. A nil
	// Timeout waits indefinitely.
	Timeout *time.Duration
	// Now, if set, overrides time.Now (used by tests to make timeout
	// behavior deterministic without sleeping for real).
	Now func() time.Time
	// Sleep, if set, overrides time.Sleep.
	Sleep func(time.Duration)
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (c Config) backoff() time.Duration {
	if c.Backoff < 0 {
		return 0
	}
	return c.Backoff
}

// Wait polls each of dirs for DoneMarker, sleeping Config.Backoff
// between passes, until every directory has the marker (returns true)
// or the configured deadline elapses (returns false). An empty dirs
// set succeeds immediately.
func Wait(dirs map[string]struct{}, cfg Config) bool {
	if len(dirs) == 0 {
		return true
	}
	pending := maps.Clone(dirs)

	var deadline time.Time
	hasDeadline := cfg.Timeout != nil
	if hasDeadline {
		deadline = cfg.now().Add(*cfg.Timeout)
	}

	for {
		for dir := range pending {
			if exists(filepath.Join(dir, DoneMarker)) {
				delete(pending, dir)
			}
		}
		if len(pending) == 0 {
			return true
		}
		if hasDeadline && !cfg.now().Before(deadline) {
			return false
		}
		cfg.sleep(cfg.backoff())
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
