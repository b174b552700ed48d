// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package packagestats

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conan-community/dlstats/internal/config"
	"github.com/conan-community/dlstats/internal/httpx/httpxtest"
	"github.com/conan-community/dlstats/pkg/act/cli"
	"github.com/conan-community/dlstats/pkg/downloadlog"
	"github.com/conan-community/dlstats/pkg/report"
	"github.com/conan-community/dlstats/pkg/storage"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/google/go-cmp/cmp"
)

func validConfig() Config {
	return Config{
		Credentials:   config.Credentials{Username: "user", APIKey: "key"},
		ConanRemote:   "https://conan.example.com",
		Pattern:       "*",
		CenterSubject: "conan",
		CenterRepo:    "conan-center",
		AllowedOwners: []string{"conan-community", "bincrafters"},
		Job:           "job1",
		Format:        "json",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing credentials", mutate: func(c *Config) { c.APIKey = "" }, wantErr: true},
		{name: "missing center", mutate: func(c *Config) { c.CenterRepo = "" }, wantErr: true},
		{name: "no owners", mutate: func(c *Config) { c.AllowedOwners = nil }, wantErr: true},
		{name: "page past total", mutate: func(c *Config) { c.TotalPages, c.CurrentPage = 2, 3 }, wantErr: true},
		{name: "sharded", mutate: func(c *Config) { c.TotalPages, c.CurrentPage = 2, 2 }},
		{name: "bad format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

const zlibLog = `ip_address,country,path_information
1.2.3.4,US,/conan-community/conan/conan/zlib/1.2.11/stable/0/package/abc/0/conan_package.tgz
1.2.3.4,US,/conan-community/conan/conan/zlib/1.2.11/stable/0/package/abc/0/conan_package.tgz
67.225.164.53,US,/conan-community/conan/conan/zlib/1.2.11/stable/0/package/abc/0/conan_package.tgz
5.6.7.8,DE,/conan-community/conan/conan/zlib/1.2.8/stable/0/package/def/0/conan_package.tgz
5.6.7.8,DE,/conan-community/conan/conan/zlib/1.2.11/stable/0/export/conanfile.py
`

const zlibBinaries = `{"abc": {"settings": {"os": "Linux", "arch": "x86_64", "compiler": "gcc", "compiler.version": "7"}}}`

func zlibCalls() []httpxtest.Call {
	return []httpxtest.Call{
		{
			URL:      "https://api.bintray.com/packages/conan/conan-center/zlib:conan",
			Response: httpxtest.OK(`{"name": "zlib:conan", "repo": "conan", "owner": "conan-community"}`),
		},
		{
			URL:      "https://api.bintray.com/packages/conan-community/conan/zlib:conan/logs",
			Response: httpxtest.OK(`[{"name": "download-14-02-2019.csv.gz"}]`),
		},
		{
			URL:      "https://api.bintray.com/packages/conan-community/conan/zlib:conan/logs/download-14-02-2019.csv.gz",
			Response: httpxtest.OK(zlibLog),
		},
		{
			URL:      "https://conan.example.com/v1/conans/zlib/1.2.11/conan/stable/search",
			Response: httpxtest.OK(zlibBinaries),
		},
	}
}

func testDeps(client *httpxtest.MockClient, out, errOut *bytes.Buffer) *Deps {
	d := &Deps{
		HTTPClient: client,
		NewStager: func() (*downloadlog.Stager, func(), error) {
			return &downloadlog.Stager{FS: memfs.New()}, func() {}, nil
		},
		Now: func() time.Time { return time.Date(2019, 2, 14, 10, 0, 0, 0, time.UTC) },
	}
	d.SetIO(cli.IO{Out: out, Err: errOut})
	return d
}

func TestHandler(t *testing.T) {
	calls := []httpxtest.Call{
		{
			URL: "https://conan.example.com/v1/conans/search?q=%2A",
			Response: httpxtest.OK(`{"results": [
				"boost/1.69.0@other/stable",
				"fmt/5.3.0@bincrafters/stable",
				"zlib/1.2.11@conan/stable",
				"zlib/1.2.8@conan/stable"
			]}`),
		},
		{
			URL:      "https://api.bintray.com/packages/conan/conan-center/boost:other",
			Response: httpxtest.OK(`{"name": "boost:other", "repo": "conan", "owner": "other"}`),
		},
		{
			URL:      "https://api.bintray.com/packages/conan/conan-center/fmt:bincrafters",
			Response: httpxtest.OK(`{"name": "fmt:bincrafters", "repo": "public-conan", "owner": "bincrafters"}`),
		},
		{
			URL:      "https://api.bintray.com/packages/bincrafters/public-conan/fmt:bincrafters/logs",
			Response: httpxtest.Status(http.StatusInternalServerError),
		},
	}
	calls = append(calls, zlibCalls()...)
	calls = append(calls, httpxtest.Call{
		URL:      "https://conan.example.com/v1/conans/zlib/1.2.8/conan/stable/search",
		Response: httpxtest.Status(http.StatusNotFound),
	})
	client := &httpxtest.MockClient{Calls: calls, URLValidator: httpxtest.NewURLValidator(t)}
	var out, errOut bytes.Buffer
	if _, err := Handler(context.Background(), validConfig(), testDeps(client, &out, &errOut)); err != nil {
		t.Fatal(err)
	}
	if client.CallCount() != len(calls) {
		t.Errorf("CallCount() = %d, want %d", client.CallCount(), len(calls))
	}
	got := out.String()
	for _, want := range []string{"===== ZLIB =====", "x86_64", "gcc 7", "Linux", "TOTAL: 3", "===== TOTAL =====", `"total":3`, `"providers":{"Appveyor":1,"Unknown":4}`} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "BOOST") {
		t.Errorf("foreign-owned package reported:\n%s", got)
	}
	if !strings.Contains(errOut.String(), "fmt: ") {
		t.Errorf("failure for fmt not reported: %s", errOut.String())
	}
}

func TestHandlerUploadsSummary(t *testing.T) {
	search := filepath.Join(t.TempDir(), "search.json")
	content := `{"results": [{"items": [{"recipe": {"id": "zlib/1.2.11@conan/stable"}}]}]}`
	if err := os.WriteFile(search, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := validConfig()
	cfg.SearchFile = search
	cfg.Remote = "file:///stats"
	cfg.Format = "yaml"
	client := &httpxtest.MockClient{Calls: zlibCalls(), URLValidator: httpxtest.NewURLValidator(t)}
	var out, errOut bytes.Buffer
	deps := testDeps(client, &out, &errOut)
	store := storage.NewFSStore(memfs.New())
	var gotRemote string
	deps.OpenStore = func(_ context.Context, remote string, _ storage.Options) (storage.Store, error) {
		gotRemote = remote
		return store, nil
	}
	if _, err := Handler(context.Background(), cfg, deps); err != nil {
		t.Fatal(err)
	}
	if gotRemote != cfg.Remote {
		t.Errorf("OpenStore() remote = %q, want %q", gotRemote, cfg.Remote)
	}
	names, err := store.List(context.Background(), "20190214")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"statistics-20190214_job1.yaml"}, names); diff != "" {
		t.Errorf("uploaded artifacts mismatch (-want +got):\n%s", diff)
	}
	rc, err := store.Get(context.Background(), "20190214", names[0])
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	s, err := report.DecodeSummary(rc, report.YAML)
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 3 || s.Job != "job1" || s.Arch["x86_64"] != 3 {
		t.Errorf("uploaded summary = %+v", s)
	}
}
