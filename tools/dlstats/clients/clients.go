// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package clients assembles the remote API clients shared by dlstats
// commands.
package clients

import (
	"net/url"
	"os"
	"time"

	"github.com/conan-community/dlstats/internal/cache"
	"github.com/conan-community/dlstats/internal/config"
	"github.com/conan-community/dlstats/internal/httpx"
	"github.com/conan-community/dlstats/pkg/registry/bintray"
	"github.com/conan-community/dlstats/pkg/registry/conan"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
)

// UserAgent identifies dlstats to remote services.
const UserAgent = "dlstats"

// Bintray returns an authenticated Bintray client.
func Bintray(client httpx.BasicClient, creds config.Credentials) *bintray.HTTPRegistry {
	return &bintray.HTTPRegistry{
		Client: &httpx.WithBasicAuth{
			BasicClient: &httpx.WithUserAgent{BasicClient: client, UserAgent: UserAgent},
			Username:    creds.Username,
			Password:    creds.APIKey,
		},
	}
}

// Conan returns a client of the Conan remote at remote. Responses are
// memoized in cacheDir when set and in memory otherwise. A positive
// interval spaces out requests.
func Conan(client httpx.BasicClient, remote, cacheDir string, interval time.Duration) (*conan.HTTPRegistry, error) {
	u := conan.DefaultRemote
	if remote != "" {
		var err error
		if u, err = url.Parse(remote); err != nil {
			return nil, errors.Wrap(err, "parsing conan remote")
		}
	}
	var c cache.Cache = &cache.MemoryCache{}
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			return nil, errors.Wrap(err, "creating cache directory")
		}
		c = cache.FSCache{FS: osfs.New(cacheDir)}
	}
	var base httpx.BasicClient = &httpx.WithUserAgent{BasicClient: client, UserAgent: UserAgent}
	if interval > 0 {
		base = &httpx.RateLimitedClient{BasicClient: base, Ticker: time.NewTicker(interval)}
	}
	return &conan.HTTPRegistry{Client: httpx.NewCachedClient(base, c), URL: u}, nil
}

