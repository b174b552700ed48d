// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package conan

import (
	"regexp"
	"sort"

	"github.com/pkg/errors"
)

// Reference identifies a recipe revision-agnostically, as in
// "protobuf/3.6.1@bincrafters/stable".
type Reference struct {
	Name    string
	Version string
	User    string
	Channel string
}

var referenceRegex = regexp.MustCompile(`^(?P<name>[^/@#:\s]+)/(?P<version>[^/@#:\s]+)(?:@(?P<user>[^/@#:\s]+)/(?P<channel>[^/@#:\s]+))?$`)

// ErrBadReference is returned for strings that are not recipe references.
var ErrBadReference = errors.New("bad recipe reference")

// ParseReference parses "name/version[@user/channel]".
func ParseReference(s string) (Reference, error) {
	m := referenceRegex.FindStringSubmatch(s)
	if m == nil {
		return Reference{}, errors.Wrapf(ErrBadReference, "%q", s)
	}
	return Reference{
		Name:    m[referenceRegex.SubexpIndex("name")],
		Version: m[referenceRegex.SubexpIndex("version")],
		User:    m[referenceRegex.SubexpIndex("user")],
		Channel: m[referenceRegex.SubexpIndex("channel")],
	}, nil
}

// String returns the full representation of the reference.
func (r Reference) String() string {
	if r.User == "" {
		return r.Name + "/" + r.Version
	}
	return r.Name + "/" + r.Version + "@" + r.User + "/" + r.Channel
}

// pathElems returns the reference as URL path elements, using "_" for an
// absent user and channel.
func (r Reference) pathElems() []string {
	user, channel := r.User, r.Channel
	if user == "" {
		user, channel = "_", "_"
	}
	return []string{r.Name, r.Version, user, channel}
}

// GroupByName groups refs by recipe name, preserving their relative order.
func GroupByName(refs []Reference) map[string][]Reference {
	groups := make(map[string][]Reference)
	for _, r := range refs {
		groups[r.Name] = append(groups[r.Name], r)
	}
	return groups
}

// Names returns the sorted keys of a GroupByName result.
func Names(groups map[string][]Reference) []string {
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Shard splits the sorted names into total near-equal chunks and returns the
// 1-based current one. A zero total or current disables sharding.
func Shard(names []string, total, current int) ([]string, error) {
	if total == 0 || current == 0 {
		return names, nil
	}
	if total < 0 || current < 0 || current > total {
		return nil, errors.Errorf("invalid shard %d of %d", current, total)
	}
	avg := float64(len(names)) / float64(total)
	lo := int(avg * float64(current-1))
	hi := int(avg * float64(current))
	if current == total {
		hi = len(names)
	}
	return names[lo:hi], nil
}
