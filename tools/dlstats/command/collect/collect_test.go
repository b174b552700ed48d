// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package collect

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/conan-community/dlstats/internal/config"
	"github.com/conan-community/dlstats/pkg/act/cli"
	"github.com/conan-community/dlstats/pkg/report"
	"github.com/conan-community/dlstats/pkg/stats"
	"github.com/conan-community/dlstats/pkg/storage"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/google/go-cmp/cmp"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "file remote", cfg: Config{Remote: "file:///tmp/stats", Format: "json"}},
		{name: "bintray remote", cfg: Config{Remote: "org/repo/pkg", Format: "json", Credentials: config.Credentials{Username: "u", APIKey: "k"}}},
		{name: "bintray remote without credentials", cfg: Config{Remote: "org/repo/pkg", Format: "json"}, wantErr: true},
		{name: "missing remote", cfg: Config{Format: "json"}, wantErr: true},
		{name: "bad date", cfg: Config{Remote: "file:///x", Date: "14-02-2019", Format: "json"}, wantErr: true},
		{name: "bad format", cfg: Config{Remote: "file:///x", Format: "csv"}, wantErr: true},
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

func put(t *testing.T, store storage.Store, version, name string, s report.Summary) {
	t.Helper()
	var buf bytes.Buffer
	if err := s.Encode(&buf, report.JSON); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), version, name, &buf); err != nil {
		t.Fatal(err)
	}
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2019, 2, 14, 0, 0, 0, 0, time.UTC)
	store := storage.NewFSStore(memfs.New())
	put(t, store, "20190214", "statistics-20190214_a.json", report.NewSummary(stats.Counters{Arch: map[string]int{"x86": 2}, Total: 2}, map[string]int{"Travis": 1}, date, "a"))
	put(t, store, "20190214", "statistics-20190214_b.json", report.NewSummary(stats.Counters{Arch: map[string]int{"x86": 1}, Total: 5}, map[string]int{"Unknown": 4}, date, "b"))
	put(t, store, "20190214", "statistics-total-20190214.json", report.NewSummary(stats.Counters{Total: 1000}, nil, date, "stale"))
	put(t, store, "20190213", "statistics-20190213_a.json", report.NewSummary(stats.Counters{Total: 1000}, nil, date, "old"))
	var out bytes.Buffer
	deps := &Deps{
		OpenStore: func(context.Context, string, storage.Options) (storage.Store, error) { return store, nil },
		Now:       func() time.Time { return date.Add(15 * time.Hour) },
	}
	deps.SetIO(cli.IO{Out: &out})
	if _, err := Handler(ctx, Config{Remote: "file:///stats", Format: "json"}, deps); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "TOTAL: 7") {
		t.Errorf("output missing total:\n%s", out.String())
	}
	rc, err := store.Get(ctx, "20190214", "statistics-total-20190214.json")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := report.DecodeSummary(rc, report.JSON)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(stats.Counters{Arch: map[string]int{"x86": 3}, Total: 7}, got.Counters); diff != "" {
		t.Errorf("merged counters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"Travis": 1, "Unknown": 4}, got.Providers); diff != "" {
		t.Errorf("merged providers mismatch (-want +got):\n%s", diff)
	}
	if len(got.Merged) != 2 {
		t.Errorf("Merged = %v, want 2 run ids", got.Merged)
	}
}

func TestHandlerNothingToCollect(t *testing.T) {
	deps := &Deps{
		OpenStore: func(context.Context, string, storage.Options) (storage.Store, error) {
			return storage.NewFSStore(memfs.New()), nil
		},
		Now: time.Now,
	}
	deps.SetIO(cli.IO{Out: &bytes.Buffer{}})
	if _, err := Handler(context.Background(), Config{Remote: "file:///stats", Date: "20190214", Format: "json"}, deps); err == nil {
		t.Error("Handler() succeeded without summaries")
	}
}
