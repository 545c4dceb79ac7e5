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

// Package config decodes the on-disk YAML/JSON documents that drive a
// Collect or Cleanup run (spec.md §6) into the option structs the
// collector package consumes directly.
package config

import (
	"fmt"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/michielmj/disco-data-logger/collector"
	"github.com/michielmj/disco-data-logger/selector"
)

// CollectConfig mirrors collector.Options in a form that decodes
// cleanly from YAML (sigs.k8s.io/yaml round-trips YAML through
// encoding/json, so the same struct also decodes plain JSON).
type CollectConfig struct {
	Paths []string `json:"paths"`
	// Selector names a simple equality rule, (key, value). The real
	// expression language is an external collaborator; this is the
	// minimal selector config shape the reference matchers in the
	// selector package can satisfy.
	Selector  *EqualsSelector `json:"selector,omitempty"`
	Columns   []string        `json:"columns,omitempty"`
	BackoffMS int64           `json:"backoff_ms,omitempty"`
	TimeoutMS *int64          `json:"timeout_ms,omitempty"`
}

// EqualsSelector is the simplest selector config shape: match one
// label key against one value.
type EqualsSelector struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CleanupConfig mirrors collector.CleanupOptions.
type CleanupConfig struct {
	Paths       []string `json:"paths"`
	KeepMeta    bool     `json:"keep_meta,omitempty"`
	WaitForDone bool     `json:"wait_for_done,omitempty"`
	BackoffMS   int64    `json:"backoff_ms,omitempty"`
	TimeoutMS   *int64   `json:"timeout_ms,omitempty"`
}

// LoadCollectConfig decodes a YAML or JSON document into a
// CollectConfig.
func LoadCollectConfig(data []byte) (CollectConfig, error) {
	var cfg CollectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CollectConfig{}, fmt.Errorf("config: decoding collect config: %w", err)
	}
	return cfg, nil
}

// LoadCleanupConfig decodes a YAML or JSON document into a
// CleanupConfig.
func LoadCleanupConfig(data []byte) (CleanupConfig, error) {
	var cfg CleanupConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CleanupConfig{}, fmt.Errorf("config: decoding cleanup config: %w", err)
	}
	return cfg, nil
}

// Options converts cfg into collector.Options. A configured Selector
// becomes a selector.Equals rule; richer rules (And/Or/Not
// combinations, In) are built by the caller and assigned to the
// returned Options.Rule directly.
func (cfg CollectConfig) Options() collector.Options {
	opts := collector.Options{
		Columns: cfg.Columns,
		Backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if cfg.TimeoutMS != nil {
		d := time.Duration(*cfg.TimeoutMS) * time.Millisecond
		opts.Timeout = &d
	}
	if cfg.Selector != nil {
		opts.Rule = selector.Equals(cfg.Selector.Key, cfg.Selector.Value)
	}
	return opts
}

// Options converts cfg into collector.CleanupOptions.
func (cfg CleanupConfig) Options() collector.CleanupOptions {
	opts := collector.CleanupOptions{
		KeepMeta:    cfg.KeepMeta,
		WaitForDone: cfg.WaitForDone,
		Backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if cfg.TimeoutMS != nil {
		d := time.Duration(*cfg.TimeoutMS) * time.Millisecond
		opts.Timeout = &d
	}
	return opts
}
