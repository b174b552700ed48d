// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stats

import (
	"maps"
	"slices"

	"github.com/conan-community/dlstats/pkg/registry/conan"
)

// LogCounts maps recipe version to binary package id to download count.
type LogCounts map[string]map[string]int

// Inc records n downloads of the given binary.
func (l LogCounts) Inc(version, packageID string, n int) {
	if l[version] == nil {
		l[version] = make(map[string]int)
	}
	l[version][packageID] += n
}

// Join pairs logged downloads with binary metadata of the same recipe
// version. Logged ids with no matching binary are dropped. Settings are
// copied, never shared with recipes.
func Join(logs LogCounts, recipes []conan.RecipeBinaries) []Entry {
	var entries []Entry
	for _, version := range slices.Sorted(maps.Keys(logs)) {
		ids := slices.Sorted(maps.Keys(logs[version]))
		for _, rb := range recipes {
			if rb.Reference.Version != version {
				continue
			}
			for _, id := range ids {
				idx := slices.IndexFunc(rb.Binaries, func(b conan.Binary) bool { return b.ID == id })
				if idx < 0 {
					continue
				}
				entries = append(entries, Entry{
					PackageID: id,
					Settings:  Settings(maps.Clone(rb.Binaries[idx].Settings)),
					Downloads: logs[version][id],
				})
			}
		}
	}
	return entries
}
