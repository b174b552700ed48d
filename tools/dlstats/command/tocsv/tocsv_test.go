// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tocsv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conan-community/dlstats/pkg/act/cli"
	"github.com/conan-community/dlstats/pkg/report"
	"github.com/conan-community/dlstats/pkg/stats"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid config", cfg: Config{Input: "report.txt", Output: "-"}},
		{name: "missing input", cfg: Config{Output: "-"}, wantErr: true},
		{name: "missing output", cfg: Config{Input: "report.txt"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	var text bytes.Buffer
	report.WritePackage(&text, "zlib", stats.Counters{Arch: map[string]int{"x86": 4}, OS: map[string]int{"Windows": 4}, Total: 4})
	report.WriteTotal(&text, stats.Counters{Arch: map[string]int{"x86": 4}, Total: 4})
	fs := memfs.New()
	reportPath, err := filepath.Abs("report.txt")
	if err != nil {
		t.Fatal(err)
	}
	if err := util.WriteFile(fs, reportPath, text.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	for _, output := range []string{"-", "downloads.csv"} {
		t.Run(output, func(t *testing.T) {
			var out bytes.Buffer
			deps := &Deps{FS: fs}
			deps.SetIO(cli.IO{Out: &out})
			if _, err := Handler(context.Background(), Config{Input: "report.txt", Output: output}, deps); err != nil {
				t.Fatal(err)
			}
			got := out.String()
			if output != "-" {
				abs, err := filepath.Abs(output)
				if err != nil {
					t.Fatal(err)
				}
				b, err := util.ReadFile(fs, abs)
				if err != nil {
					t.Fatal(err)
				}
				got = string(b)
			}
			lines := strings.Split(strings.TrimSpace(got), "\n")
			if len(lines) != 2 {
				t.Fatalf("got %d lines, want 2:\n%s", len(lines), got)
			}
			if !strings.HasPrefix(lines[1], "ZLIB,0,4,") || !strings.HasSuffix(lines[1], ",0,0,4,4") {
				t.Errorf("row = %q", lines[1])
			}
		})
	}
}

func TestHandlerOSPaths(t *testing.T) {
	var text bytes.Buffer
	report.WritePackage(&text, "zlib", stats.Counters{Arch: map[string]int{"x86": 4}, Total: 4})
	dir := t.TempDir()
	input := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(input, text.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	relInput, err := filepath.Rel(wd, input)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name   string
		input  string
		output string
	}{
		{name: "absolute paths", input: input, output: filepath.Join(dir, "abs.csv")},
		{name: "relative paths outside the working directory", input: relInput, output: filepath.Join(filepath.Dir(relInput), "rel.csv")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			deps, err := InitDeps(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			deps.SetIO(cli.IO{Out: &bytes.Buffer{}})
			if _, err := Handler(context.Background(), Config{Input: tc.input, Output: tc.output}, deps); err != nil {
				t.Fatalf("Handler() failed: %v", err)
			}
			path := tc.output
			if !filepath.IsAbs(path) {
				path = filepath.Join(wd, path)
			}
			b, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(b), "ZLIB,") {
				t.Errorf("csv missing ZLIB row:\n%s", b)
			}
		})
	}
}

func TestHandlerMissingReport(t *testing.T) {
	deps, err := InitDeps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	deps.SetIO(cli.IO{Out: &bytes.Buffer{}})
	_, err = Handler(context.Background(), Config{Input: filepath.Join(t.TempDir(), "missing.txt"), Output: "-"}, deps)
	if err == nil {
		t.Error("Handler() of a missing report succeeded")
	}
}
