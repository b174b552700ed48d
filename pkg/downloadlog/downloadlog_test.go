// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package downloadlog

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/conan-community/dlstats/internal/httpx/httpxtest"
	"github.com/conan-community/dlstats/internal/ipclass"
	"github.com/conan-community/dlstats/pkg/registry/bintray"
	"github.com/conan-community/dlstats/pkg/stats"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

const sampleLog = `ip_address,country,path_information
1.2.3.4,US,/bincrafters/public-conan/bincrafters/protobuf/3.5.1/stable/0/package/abc/0/conan_package.tgz
67.225.164.53,DE,/bincrafters/public-conan/bincrafters/protobuf/3.5.1/stable/0/package/abc/0/conan_package.tgz
5.6.7.8,US,/bincrafters/public-conan/bincrafters/protobuf/3.5.1/stable/0/export/conanfile.py
`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestOpen(t *testing.T) {
	for _, tc := range []struct {
		name  string
		input []byte
	}{
		{"plain", []byte(sampleLog)},
		{"gzip", gzipped(t, sampleLog)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Open(bytes.NewReader(tc.input))
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(sampleLog, string(got)); diff != "" {
				t.Errorf("Open() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRead(t *testing.T) {
	date := time.Date(2019, 2, 14, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		name    string
		input   string
		want    []Record
		wantErr error
	}{
		{
			name:  "empty",
			input: "",
		},
		{
			name:  "without country",
			input: "path_information,ip_address\n/a/b,1.1.1.1\n",
			want:  []Record{{Date: date, IPAddress: "1.1.1.1", PathInformation: "/a/b"}},
		},
		{
			name:  "with country",
			input: "ip_address,country,path_information\n1.1.1.1,FR,/x\n",
			want:  []Record{{Date: date, IPAddress: "1.1.1.1", Country: "FR", PathInformation: "/x"}},
		},
		{
			name:    "missing ip",
			input:   "country,path_information\nFR,/x\n",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "missing path",
			input:   "ip_address,country\n1.1.1.1,FR\n",
			wantErr: ErrMissingColumn,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Read(strings.NewReader(tc.input), date)
			if errors.Cause(err) != tc.wantErr {
				t.Fatalf("Read() error = %v, want %v", err, tc.wantErr)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Read() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadShortRow(t *testing.T) {
	_, err := Read(strings.NewReader("ip_address,path_information\n1.1.1.1\n"), time.Time{})
	if err == nil {
		t.Error("Read() succeeded on a short row")
	}
}

func TestDateFromName(t *testing.T) {
	got, err := DateFromName("download-14-02-2019.csv.gz")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2019, 2, 14, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("DateFromName() = %v, want %v", got, want)
	}
	for _, name := range []string{"download.csv.gz", "download-40-13-2019.csv.gz"} {
		if _, err := DateFromName(name); errors.Cause(err) != ErrBadLogName {
			t.Errorf("DateFromName(%q) error = %v, want %v", name, err, ErrBadLogName)
		}
	}
}

func TestParsePackagePath(t *testing.T) {
	for _, tc := range []struct {
		path    string
		version string
		id      string
		ok      bool
	}{
		{"/bincrafters/public-conan/bincrafters/protobuf/3.5.1/stable/0/package/abc/0/conan_package.tgz", "3.5.1", "abc", true},
		{"bincrafters/public-conan/bincrafters/protobuf/3.5.1/stable/0/package/abc/0/conan_package.tgz", "3.5.1", "abc", true},
		{"/bincrafters/public-conan/bincrafters/protobuf/3.5.1/stable/0/export/conan_package.tgz", "", "", false},
		{"/bincrafters/public-conan/bincrafters/protobuf/3.5.1/stable/0/package/abc/0/conaninfo.txt", "", "", false},
		{"/a/conan_package.tgz", "", "", false},
	} {
		v, id, ok := ParsePackagePath(tc.path)
		if v != tc.version || id != tc.id || ok != tc.ok {
			t.Errorf("ParsePackagePath(%q) = (%q, %q, %v), want (%q, %q, %v)", tc.path, v, id, ok, tc.version, tc.id, tc.ok)
		}
	}
}

func TestCount(t *testing.T) {
	records, err := Read(strings.NewReader(sampleLog), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	want := stats.LogCounts{"3.5.1": {"abc": 2}}
	if diff := cmp.Diff(want, Count(records)); diff != "" {
		t.Errorf("Count() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	d1 := time.Date(2019, 2, 14, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2019, 2, 16, 0, 0, 0, 0, time.UTC)
	a := Summarize([]Record{
		{Date: d2, IPAddress: "67.225.164.53", Country: "DE"},
		{Date: d2, IPAddress: "1.2.3.4", Country: "US"},
	}, ipclass.Default())
	b := Summarize([]Record{
		{Date: d1, IPAddress: "1.2.3.4", Country: "US"},
	}, ipclass.Default())
	a.Merge(b)
	want := Summary{
		Total:     3,
		First:     d1,
		Last:      d2,
		Providers: map[string]int{"Appveyor": 1, ipclass.Unknown: 2},
		Countries: map[string]int{"DE": 1, "US": 2},
		IPs:       map[string]int{"67.225.164.53": 1, "1.2.3.4": 2},
	}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIntoZero(t *testing.T) {
	var s Summary
	s.Merge(Summary{Total: 1, Countries: map[string]int{"US": 1}})
	if s.Total != 1 || s.Countries["US"] != 1 || s.Providers == nil {
		t.Errorf("Merge() into zero Summary = %+v", s)
	}
}

func TestStager(t *testing.T) {
	s := &Stager{FS: memfs.New()}
	if err := s.Stage("download-15-02-2019.csv.gz", bytes.NewReader(gzipped(t, sampleLog))); err != nil {
		t.Fatal(err)
	}
	if err := s.Stage("download-14-02-2019.csv", strings.NewReader("ip_address,path_information\n9.9.9.9,/x\n")); err != nil {
		t.Fatal(err)
	}
	names, err := s.Names()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"download-14-02-2019.csv", "download-15-02-2019.csv.gz"}, names); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	records, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("LoadAll() returned %d records, want 4", len(records))
	}
	if want := time.Date(2019, 2, 14, 0, 0, 0, 0, time.UTC); !records[0].Date.Equal(want) {
		t.Errorf("records[0].Date = %v, want %v", records[0].Date, want)
	}
}

func TestStagerBadName(t *testing.T) {
	s := &Stager{FS: memfs.New()}
	if err := s.Stage("undated.csv", strings.NewReader("ip_address,path_information\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("undated.csv"); errors.Cause(err) != ErrBadLogName {
		t.Errorf("Load() error = %v, want %v", err, ErrBadLogName)
	}
}

func TestFetch(t *testing.T) {
	client := &httpxtest.MockClient{
		Calls: []httpxtest.Call{
			{
				URL:      "https://api.bintray.com/packages/org/conan/zlib:org/logs",
				Response: httpxtest.OK(`[{"name": "download-14-02-2019.csv.gz", "size": 10}, {"name": "README"}]`),
			},
			{
				URL:      "https://api.bintray.com/packages/org/conan/zlib:org/logs/download-14-02-2019.csv.gz",
				Response: httpxtest.OK(sampleLog),
			},
		},
		URLValidator: httpxtest.NewURLValidator(t),
	}
	s := &Stager{FS: memfs.New()}
	names, err := Fetch(context.Background(), bintray.HTTPRegistry{Client: client}, "org", "conan", "zlib:org", s)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"download-14-02-2019.csv.gz"}, names); diff != "" {
		t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
	}
	records, err := s.Load(names[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("Load() returned %d records, want 3", len(records))
	}
}
