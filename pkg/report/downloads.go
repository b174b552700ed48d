// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/conan-community/dlstats/pkg/downloadlog"
	"github.com/conan-community/dlstats/pkg/registry/bintray"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

const dayLayout = "2006-01-02"

// ranked orders m by descending count, then key.
func ranked(m map[string]int) []table.Row {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	rows := make([]table.Row, len(keys))
	for i, k := range keys {
		rows[i] = table.Row{k, m[k]}
	}
	return rows
}

// WriteDownloads writes the provider, country and address breakdown of a
// package's raw downloads. limit caps the address table; 0 means no cap.
func WriteDownloads(w io.Writer, name string, s downloadlog.Summary, limit int) {
	fmt.Fprintf(w, "===== %s =====\n", strings.ToUpper(name))
	if !s.First.IsZero() {
		fmt.Fprintf(w, "Period: %s to %s\n", s.First.Format(dayLayout), s.Last.Format(dayLayout))
	}
	for _, b := range []struct {
		header string
		m      map[string]int
		limit  int
	}{
		{"Provider", s.Providers, 0},
		{"Country", s.Countries, 0},
		{"IP", s.IPs, limit},
	} {
		if len(b.m) == 0 {
			continue
		}
		rows := ranked(b.m)
		if b.limit > 0 && len(rows) > b.limit {
			rows = rows[:b.limit]
		}
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(gridStyle())
		t.AppendHeader(table.Row{b.header, countHeader})
		t.AppendRows(rows)
		t.Render()
	}
	fmt.Fprintf(w, "TOTAL: %d\n", s.Total)
}

// WriteQuota writes the storage and download quota of an organization.
func WriteQuota(w io.Writer, o bintray.Organization) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(gridStyle())
	t.AppendHeader(table.Row{"Quota", "Used", "Limit"})
	t.AppendRow(table.Row{
		"Storage",
		humanize.Bytes(uint64(max(o.QuotaUsedBytes, 0))),
		humanize.Bytes(uint64(max(o.FreeStorageQuotaLimit, 0))),
	})
	t.AppendRow(table.Row{
		"Downloads (last month)",
		humanize.Bytes(uint64(max(o.LastMonthFreeDownloads, 0))),
		humanize.Bytes(uint64(max(o.MonthlyFreeDownloadsQuotaLimit, 0))),
	})
	fmt.Fprintf(w, "===== %s =====\n", strings.ToUpper(o.Name))
	t.Render()
	fmt.Fprintf(w, "Free storage: %s\n", humanize.Bytes(uint64(max(o.FreeStorage, 0))))
}
