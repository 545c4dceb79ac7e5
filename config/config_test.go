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

package config

import (
	"testing"
	"time"
)

func TestLoadCollectConfigYAML(t *testing.T) {
	doc := []byte(`
paths: ["/data/a", "/data/b"]
selector:
  key: host
  value: web-1
columns: ["region", "host"]
backoff_ms: 250
timeout_ms: 60000
`)
	cfg, err := LoadCollectConfig(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Paths) != 2 || cfg.Paths[0] != "/data/a" {
		t.Fatalf("unexpected paths: %+v", cfg.Paths)
	}
	if cfg.Selector == nil || cfg.Selector.Key != "host" || cfg.Selector.Value != "web-1" {
		t.Fatalf("unexpected selector: %+v", cfg.Selector)
	}
	opts := cfg.Options()
	if opts.Backoff != 250*time.Millisecond {
		t.Fatalf("unexpected backoff: %v", opts.Backoff)
	}
	if opts.Timeout == nil || *opts.Timeout != 60*time.Second {
		t.Fatalf("unexpected timeout: %v", opts.Timeout)
	}
	if opts.Rule == nil {
		t.Fatal("expected a Rule built from the configured selector")
	}
	if !opts.Rule.Matches(map[string]string{"host": "web-1"}) {
		t.Fatal("expected the configured selector to match host=web-1")
	}
	if opts.Rule.Matches(map[string]string{"host": "web-2"}) {
		t.Fatal("expected the configured selector to reject host=web-2")
	}
}

func TestLoadCollectConfigNoSelector(t *testing.T) {
	cfg, err := LoadCollectConfig([]byte(`paths: ["/data/a"]`))
	if err != nil {
		t.Fatal(err)
	}
	opts := cfg.Options()
	if opts.Rule != nil {
		t.Fatal("expected a nil Rule when no selector is configured")
	}
	if opts.Timeout != nil {
		t.Fatal("expected a nil Timeout when timeout_ms is absent")
	}
}

func TestLoadCleanupConfigJSON(t *testing.T) {
	doc := []byte(`{"paths": ["/data/a"], "keep_meta": true, "wait_for_done": true, "backoff_ms": 10, "timeout_ms": 1000}`)
	cfg, err := LoadCleanupConfig(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.KeepMeta || !cfg.WaitForDone {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	opts := cfg.Options()
	if opts.Backoff != 10*time.Millisecond {
		t.Fatalf("unexpected backoff: %v", opts.Backoff)
	}
	if opts.Timeout == nil || *opts.Timeout != time.Second {
		t.Fatalf("unexpected timeout: %v", opts.Timeout)
	}
}

func TestLoadCollectConfigInvalidYAML(t *testing.T) {
	_, err := LoadCollectConfig([]byte("paths: [unterminated"))
	if err == nil {
		t.Fatal("expected a decode error for malformed input")
	}
}
