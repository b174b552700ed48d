// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package httpx provides a simpler http.Client abstraction and derivative uses.
package httpx

import (
	"bufio"
	"bytes"
	"net/http"
	"time"

	"github.com/conan-community/dlstats/internal/cache"
)

// BasicClient is a simpler http.Client that only requires a Do method.
type BasicClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ BasicClient = http.DefaultClient

// WithUserAgent is a basic HTTP client that adds a User-Agent header.
type WithUserAgent struct {
	BasicClient
	UserAgent string
}

var _ BasicClient = &WithUserAgent{}

// Do adds the User-Agent header and sends the request.
func (c *WithUserAgent) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.UserAgent)
	return c.BasicClient.Do(req)
}

// WithBasicAuth is a basic HTTP client that authenticates every request.
// Requests to hosts other than Host are sent unauthenticated.
type WithBasicAuth struct {
	BasicClient
	Host     string
	Username string
	Password string
}

var _ BasicClient = &WithBasicAuth{}

// Do sets the Authorization header and sends the request.
func (c *WithBasicAuth) Do(req *http.Request) (*http.Response, error) {
	if c.Host == "" || req.URL.Host == c.Host {
		req.SetBasicAuth(c.Username, c.Password)
	}
	return c.BasicClient.Do(req)
}

// CachedClient is a BasicClient that caches GET responses.
type CachedClient struct {
	BasicClient
	ch cache.Cache
}

// NewCachedClient returns a new CachedClient.
func NewCachedClient(client BasicClient, c cache.Cache) *CachedClient {
	return &CachedClient{client, c}
}

// Do attempts to fetch from cache (if applicable) or fulfills the request using the underlying client.
func (cc *CachedClient) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return cc.BasicClient.Do(req)
	}
	key := req.URL.String()
	respBytes, err := cc.ch.Get(key)
	if err == cache.ErrNotExist {
		resp, err := cc.BasicClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		buf := new(bytes.Buffer)
		if err := resp.Write(buf); err != nil {
			return nil, err
		}
		// Only successful lookups are stable enough to reuse.
		if resp.StatusCode == http.StatusOK {
			if err := cc.ch.Set(key, buf.Bytes()); err != nil {
				return nil, err
			}
		}
		respBytes = buf.Bytes()
	} else if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(respBytes)), req)
}

var _ BasicClient = &CachedClient{}

// RateLimitedClient waits for a tick before every request.
type RateLimitedClient struct {
	BasicClient
	Ticker *time.Ticker
}

func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	<-c.Ticker.C // Wait for next tick
	return c.BasicClient.Do(req)
}

var _ BasicClient = &RateLimitedClient{}
