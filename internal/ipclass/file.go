// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package ipclass

import (
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// LoadFile reads a provider registry from path. An empty path selects the
// built-in registry.
func LoadFile(path string, opts ...Option) (*Registry, error) {
	if path == "" {
		return Default(opts...), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening provider registry")
	}
	defer f.Close()
	return Load(f, opts...)
}

// ParseNames splits a comma or whitespace separated provider list. The
// result is never nil, so an empty list disables range matching when
// passed to WithRangeProviders.
func ParseNames(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
}
