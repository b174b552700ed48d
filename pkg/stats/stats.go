// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package stats aggregates binary-package download counts by build setting.
package stats

import (
	"sort"
	"strings"
)

// Setting names consulted by the aggregator.
const (
	SettingArch            = "arch"
	SettingArchBuild       = "arch_build"
	SettingOS              = "os"
	SettingOSBuild         = "os_build"
	SettingCompiler        = "compiler"
	SettingCompilerVersion = "compiler.version"
)

// Settings maps build-setting names to values.
type Settings map[string]string

// Entry is the settings of one downloaded binary annotated with its count.
type Entry struct {
	PackageID string
	Settings  Settings
	Downloads int
}

// headerOnly reports whether the binary has none of the platform settings.
func (s Settings) headerOnly() bool {
	for _, k := range []string{SettingArch, SettingCompiler, SettingArchBuild, SettingOS, SettingOSBuild} {
		if _, ok := s[k]; ok {
			return false
		}
	}
	return true
}

// preferred returns the value of the first present key.
func (s Settings) preferred(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := s[k]; ok {
			return v, true
		}
	}
	return "", false
}

// CompilerLabel returns "compiler version", or just the compiler when no
// version is set.
func (s Settings) CompilerLabel() (string, bool) {
	c, ok := s[SettingCompiler]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(c + " " + s[SettingCompilerVersion]), true
}

// Counters holds download totals per bucket. The zero value is ready to use.
type Counters struct {
	Arch     map[string]int `json:"arch" yaml:"arch"`
	Compiler map[string]int `json:"compiler" yaml:"compiler"`
	OS       map[string]int `json:"os" yaml:"os"`
	Total    int            `json:"total" yaml:"total"`
}

func inc(m *map[string]int, k string, n int) {
	if *m == nil {
		*m = make(map[string]int)
	}
	(*m)[k] += n
}

// Add counts e. Header-only entries reach Total but no bucket.
func (c *Counters) Add(e Entry) {
	c.Total += e.Downloads
	if e.Settings.headerOnly() {
		return
	}
	if arch, ok := e.Settings.preferred(SettingArchBuild, SettingArch); ok {
		inc(&c.Arch, arch, e.Downloads)
	}
	if os, ok := e.Settings.preferred(SettingOSBuild, SettingOS); ok {
		inc(&c.OS, os, e.Downloads)
	}
	if label, ok := e.Settings.CompilerLabel(); ok {
		inc(&c.Compiler, label, e.Downloads)
	}
}

// Merge adds every count in o to c.
func (c *Counters) Merge(o Counters) {
	for k, n := range o.Arch {
		inc(&c.Arch, k, n)
	}
	for k, n := range o.Compiler {
		inc(&c.Compiler, k, n)
	}
	for k, n := range o.OS {
		inc(&c.OS, k, n)
	}
	c.Total += o.Total
}

// Aggregate counts entries into fresh Counters.
func Aggregate(entries []Entry) Counters {
	var c Counters
	for _, e := range entries {
		c.Add(e)
	}
	return c
}

// Sum returns the total of the values in m.
func Sum(m map[string]int) int {
	var n int
	for _, v := range m {
		n += v
	}
	return n
}

// Row is one bucket of a Counters map.
type Row struct {
	Key   string
	Count int
}

// Rows returns m as rows sorted by key.
func Rows(m map[string]int) []Row {
	rows := make([]Row, 0, len(m))
	for k, v := range m {
		rows = append(rows, Row{k, v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}
