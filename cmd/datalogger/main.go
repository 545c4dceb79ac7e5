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

// Command datalogger runs a collect or cleanup pass over one or more
// logger directories, driven by a YAML or JSON config document.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/michielmj/disco-data-logger/batch"
	"github.com/michielmj/disco-data-logger/collector"
	"github.com/michielmj/disco-data-logger/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "collect":
		err = runCollect(os.Args[2:])
	case "cleanup":
		err = runCleanup(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: datalogger collect -c config.yaml | cleanup -c config.yaml")
}

func runCollect(args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	cfgPath := fs.String("c", "", "path to a collect config document (YAML or JSON)")
	verbose := fs.Bool("v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cfgPath == "" {
		return fmt.Errorf("datalogger: -c is required")
	}
	data, err := os.ReadFile(*cfgPath)
	if err != nil {
		return fmt.Errorf("datalogger: reading %s: %w", *cfgPath, err)
	}
	cfg, err := config.LoadCollectConfig(data)
	if err != nil {
		return err
	}
	c, err := collector.New(cfg.Paths)
	if err != nil {
		return err
	}
	if *verbose {
		c.Logf = func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	ok, err := c.Collect(&jsonlWriter{w: bufio.NewWriter(os.Stdout)}, cfg.Options())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("datalogger: collect timed out waiting for completion")
	}
	return nil
}

func runCleanup(args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	cfgPath := fs.String("c", "", "path to a cleanup config document (YAML or JSON)")
	verbose := fs.Bool("v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cfgPath == "" {
		return fmt.Errorf("datalogger: -c is required")
	}
	data, err := os.ReadFile(*cfgPath)
	if err != nil {
		return fmt.Errorf("datalogger: reading %s: %w", *cfgPath, err)
	}
	cfg, err := config.LoadCleanupConfig(data)
	if err != nil {
		return err
	}
	c, err := collector.New(cfg.Paths)
	if err != nil {
		return err
	}
	if *verbose {
		c.Logf = func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	ok, err := c.Cleanup(cfg.Options())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("datalogger: cleanup timed out waiting for completion")
	}
	return nil
}

// jsonlWriter renders each drained RecordBatch as newline-delimited
// JSON rows, a convenient default sink for a CLI that has no
// dedicated exporter wired in (spec.md §1 names the real exporter as
// an external collaborator).
type jsonlWriter struct {
	w *bufio.Writer
}

func (j *jsonlWriter) WriteBatch(rb *batch.RecordBatch) error {
	for i := 0; i < rb.Len(); i++ {
		row := map[string]interface{}{
			"stream_id": rb.StreamID[i],
			"epoch":     rb.Epoch[i],
			"indices":   rb.Indices[i],
			"values":    rb.Values[i],
		}
		for _, col := range rb.Schema.Extra {
			v := rb.Extra[col.Name][i]
			if !v.IsNull() {
				row[col.Name] = v.String()
			}
		}
		enc := json.NewEncoder(j.w)
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return j.w.Flush()
}
