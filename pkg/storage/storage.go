// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package storage persists report artifacts grouped by dated version.
package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/conan-community/dlstats/pkg/registry/bintray"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

var (
	// ErrNotFound indicates the requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrBadRemote indicates a remote descriptor that names no known backend.
	ErrBadRemote = errors.New("unsupported remote")
)

// Store holds named artifacts under versions such as "20190214".
type Store interface {
	Put(ctx context.Context, version, name string, content io.Reader) error
	// List returns the artifact names of a version in name order.
	List(ctx context.Context, version string) ([]string, error)
	Get(ctx context.Context, version, name string) (io.ReadCloser, error)
}

// Options carry the backend clients and settings Open may need.
type Options struct {
	Bintray    bintray.Registry
	S3         S3Config
	GCSOptions []option.ClientOption
}

// Open returns the Store described by remote:
//
//	gs://bucket/prefix
//	s3://bucket/prefix
//	file:///dir
//	subject/repo/package
func Open(ctx context.Context, remote string, opts Options) (Store, error) {
	if remote == "" {
		return nil, errors.Wrap(ErrBadRemote, "empty remote")
	}
	if !strings.Contains(remote, "://") {
		return openBintray(remote, opts.Bintray)
	}
	u, err := url.Parse(remote)
	if err != nil {
		return nil, errors.Wrap(err, "parsing remote")
	}
	prefix := strings.Trim(u.Path, "/")
	switch u.Scheme {
	case "gs":
		s, err := NewGCSStore(ctx, u.Host, prefix, opts.GCSOptions...)
		if err != nil {
			return nil, errors.Wrap(err, "creating GCS store")
		}
		return s, nil
	case "s3":
		cfg := opts.S3
		cfg.Bucket = u.Host
		cfg.Prefix = prefix
		s, err := NewS3Store(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "creating S3 store")
		}
		return s, nil
	case "file":
		if err := os.MkdirAll(u.Path, 0755); err != nil {
			return nil, errors.Wrap(err, "creating store directory")
		}
		return NewFSStore(osfs.New(u.Path)), nil
	default:
		return nil, errors.Wrapf(ErrBadRemote, "scheme %q", u.Scheme)
	}
}

func openBintray(remote string, reg bintray.Registry) (Store, error) {
	parts := strings.Split(remote, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, errors.Wrapf(ErrBadRemote, "%q is not subject/repo/package", remote)
	}
	if reg == nil {
		return nil, errors.New("bintray remote requires a registry client")
	}
	return &BintrayStore{Registry: reg, Subject: parts[0], Repo: parts[1], Package: parts[2]}, nil
}

func objectKey(prefix, version, name string) string {
	if prefix == "" {
		return version + "/" + name
	}
	return prefix + "/" + version + "/" + name
}
