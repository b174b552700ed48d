// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	stderrors "errors"
	"io"
	"path"
	"sort"

	gcs "cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore keeps artifacts in a GCS bucket as prefix/version/name.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore creates a new GCSStore.
func NewGCSStore(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("no bucket provided")
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create GCS client")
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) Put(ctx context.Context, version, name string, content io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(objectKey(s.prefix, version, name)).NewWriter(ctx)
	if _, err := io.Copy(w, content); err != nil {
		w.Close()
		return errors.Wrapf(err, "uploading %s", name)
	}
	return w.Close()
}

func (s *GCSStore) List(ctx context.Context, version string) ([]string, error) {
	dir := objectKey(s.prefix, version, "")
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: dir})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", dir)
		}
		if path.Dir(attrs.Name)+"/" == dir {
			names = append(names, path.Base(attrs.Name))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *GCSStore) Get(ctx context.Context, version, name string) (io.ReadCloser, error) {
	key := objectKey(s.prefix, version, name)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			err = stderrors.Join(err, ErrNotFound)
		}
		return nil, errors.Wrapf(err, "creating GCS reader for %s", key)
	}
	return r, nil
}

var _ Store = &GCSStore{}
