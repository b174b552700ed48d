// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package report renders download statistics as text tables, CSV and
// summary documents.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/conan-community/dlstats/pkg/stats"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TotalTitle is the section name of the run total.
const TotalTitle = "TOTAL"

const countHeader = "Downloads"

func gridStyle() table.Style {
	s := table.StyleDefault
	s.Format.Header = text.FormatDefault
	s.Options.SeparateRows = true
	return s
}

func writeTable(w io.Writer, header string, m map[string]int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(gridStyle())
	t.AppendHeader(table.Row{header, countHeader})
	for _, r := range stats.Rows(m) {
		t.AppendRow(table.Row{r.Key, r.Count})
	}
	t.Render()
}

func writeSection(w io.Writer, title string, c stats.Counters, skipEmpty bool) {
	fmt.Fprintf(w, "===== %s =====\n", strings.ToUpper(title))
	for _, b := range []struct {
		header string
		m      map[string]int
	}{
		{"Arch", c.Arch},
		{"Compiler", c.Compiler},
		{"OS", c.OS},
	} {
		if skipEmpty && len(b.m) == 0 {
			continue
		}
		writeTable(w, b.header, b.m)
	}
	fmt.Fprintf(w, "TOTAL: %d\n", c.Total)
}

// WritePackage writes the tables of one package. Empty buckets are omitted.
func WritePackage(w io.Writer, name string, c stats.Counters) {
	writeSection(w, name, c, true)
}

// WriteTotal writes the run total with every bucket table.
func WriteTotal(w io.Writer, c stats.Counters) {
	writeSection(w, TotalTitle, c, false)
	fmt.Fprintln(w)
}

// WriteFailures lists packages that could not be processed.
func WriteFailures(w io.Writer, failures []stats.Failure) {
	if len(failures) == 0 {
		return
	}
	red := color.New(color.FgRed)
	red.Fprintf(w, "%d package(s) failed:\n", len(failures))
	for _, f := range failures {
		red.Fprintf(w, "  %v\n", f)
	}
}
