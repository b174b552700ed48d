// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package downloadlog parses the per-day CSV download logs of a package.
package downloadlog

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/conan-community/dlstats/internal/ipclass"
	"github.com/conan-community/dlstats/pkg/stats"
	"github.com/pkg/errors"
)

// Column names of the log header.
const (
	ColumnIP      = "ip_address"
	ColumnCountry = "country"
	ColumnPath    = "path_information"
)

// PackageFile is the archive name of a binary package download.
const PackageFile = "conan_package.tgz"

var (
	ErrMissingColumn = errors.New("missing log column")
	ErrBadLogName    = errors.New("log name carries no DD-MM-YYYY date")
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	dateRegex = regexp.MustCompile(`(\d{2}-\d{2}-\d{4})`)
)

// Record is one download.
type Record struct {
	Date            time.Time
	IPAddress       string
	Country         string
	PathInformation string
}

// Open returns a reader over the decompressed log. Plain CSV is passed
// through untouched.
func Open(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if !bytes.Equal(head, gzipMagic) {
		return br, nil
	}
	return gzip.NewReader(br)
}

// Read parses CSV log rows, stamping every record with date. The country
// column is optional.
func Read(r io.Reader, date time.Time) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "reading log header")
	}
	col := make(map[string]int)
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	ipIdx, ok := col[ColumnIP]
	if !ok {
		return nil, errors.Wrap(ErrMissingColumn, ColumnIP)
	}
	pathIdx, ok := col[ColumnPath]
	if !ok {
		return nil, errors.Wrap(ErrMissingColumn, ColumnPath)
	}
	countryIdx, hasCountry := col[ColumnCountry]
	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "reading log row")
		}
		rec := Record{Date: date, IPAddress: row[ipIdx], PathInformation: row[pathIdx]}
		if hasCountry {
			rec.Country = row[countryIdx]
		}
		records = append(records, rec)
	}
	return records, nil
}

// DateFromName extracts the day of a log file named like
// "download-14-02-2019.csv.gz".
func DateFromName(name string) (time.Time, error) {
	m := dateRegex.FindString(name)
	if m == "" {
		return time.Time{}, errors.Wrapf(ErrBadLogName, "%q", name)
	}
	t, err := time.Parse("02-01-2006", m)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrBadLogName, "%q: %v", name, err)
	}
	return t, nil
}

// ParsePackagePath returns the recipe version and binary package id of a
// binary download path such as
// "/bincrafters/public-conan/bincrafters/protobuf/3.5.1/stable/0/package/<id>/0/conan_package.tgz".
// ok is false for any other path.
func ParsePackagePath(p string) (version, packageID string, ok bool) {
	if !strings.HasSuffix(p, "/"+PackageFile) {
		return "", "", false
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	parts := strings.Split(p, "/")
	if len(parts) < 11 || parts[8] != "package" {
		return "", "", false
	}
	return parts[5], parts[9], true
}

// Count tallies binary downloads by version and package id.
func Count(records []Record) stats.LogCounts {
	counts := stats.LogCounts{}
	for _, r := range records {
		if v, id, ok := ParsePackagePath(r.PathInformation); ok {
			counts.Inc(v, id, 1)
		}
	}
	return counts
}

// IPs returns the client address of every record.
func IPs(records []Record) []string {
	ips := make([]string, len(records))
	for i, r := range records {
		ips[i] = r.IPAddress
	}
	return ips
}

// Summary is the provider, country and address breakdown of raw downloads.
type Summary struct {
	Total     int
	First     time.Time
	Last      time.Time
	Providers map[string]int
	Countries map[string]int
	IPs       map[string]int
}

func (s *Summary) observe(t time.Time) {
	if t.IsZero() {
		return
	}
	if s.First.IsZero() || t.Before(s.First) {
		s.First = t
	}
	if t.After(s.Last) {
		s.Last = t
	}
}

// Summarize breaks records down by owning provider, country and address.
func Summarize(records []Record, reg *ipclass.Registry) Summary {
	s := Summary{
		Providers: reg.Tally(IPs(records)),
		Countries: make(map[string]int),
		IPs:       make(map[string]int),
	}
	for _, r := range records {
		s.Total++
		s.Countries[r.Country]++
		s.IPs[r.IPAddress]++
		s.observe(r.Date)
	}
	return s
}

// Merge adds o into s.
func (s *Summary) Merge(o Summary) {
	s.Total += o.Total
	s.observe(o.First)
	s.observe(o.Last)
	addAll(&s.Providers, o.Providers)
	addAll(&s.Countries, o.Countries)
	addAll(&s.IPs, o.IPs)
}

func addAll(dst *map[string]int, src map[string]int) {
	if *dst == nil {
		*dst = make(map[string]int)
	}
	for k, v := range src {
		(*dst)[k] += v
	}
}
