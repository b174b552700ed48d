// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package cache provides keyed byte caches used to memoise registry responses.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
)

// Cache is a simple interface defining a byte cache keyed by string.
type Cache interface {
	Get(string) ([]byte, error)
	Set(string, []byte) error
}

// ErrNotExist is returned when a key does not exist in the cache.
var ErrNotExist = errors.New("does not exist")

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

// Get returns the value for the given key.
func (c *MemoryCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, ErrNotExist
	}
	return v, nil
}

// Set stores a copy of value under key.
func (c *MemoryCache) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = append([]byte(nil), value...)
	return nil
}

var _ Cache = &MemoryCache{}

// FSCache persists entries as files on a billy.Filesystem so that repeated
// runs can reuse metadata fetched by earlier ones.
type FSCache struct {
	FS billy.Filesystem
}

func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get returns the value for the given key.
func (c FSCache) Get(key string) ([]byte, error) {
	b, err := util.ReadFile(c.FS, fileName(key))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading cache entry %s", key)
	}
	return b, nil
}

// Set writes value under key, replacing any existing entry.
func (c FSCache) Set(key string, value []byte) error {
	return errors.Wrapf(util.WriteFile(c.FS, fileName(key), value, 0644), "writing cache entry %s", key)
}

var _ Cache = FSCache{}
