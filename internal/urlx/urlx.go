// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package urlx

import "net/url"

// MustParse will call url.Parse and panic if there is an error, returning on success.
func MustParse(rawURL string) *url.URL {
	if u, err := url.Parse(rawURL); err != nil {
		panic(err)
	} else {
		return u
	}
}

// WithQuery returns a copy of u with the key/value pairs in kv set on its
// query. kv must have even length.
func WithQuery(u *url.URL, kv ...string) *url.URL {
	if len(kv)%2 != 0 {
		panic("WithQuery: odd number of arguments")
	}
	out := *u
	q := out.Query()
	for i := 0; i < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	out.RawQuery = q.Encode()
	return &out
}
