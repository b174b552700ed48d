// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"io"
	"sort"

	"github.com/conan-community/dlstats/pkg/registry/bintray"
	"github.com/pkg/errors"
)

// BintrayStore keeps artifacts as files of a Bintray package, one package
// version per store version.
type BintrayStore struct {
	Registry bintray.Registry
	Subject  string
	Repo     string
	Package  string
}

func (s *BintrayStore) Put(ctx context.Context, version, name string, content io.Reader) error {
	return s.Registry.UploadContent(ctx, s.Subject, s.Repo, s.Package, version, name, content)
}

func (s *BintrayStore) files(ctx context.Context, version string) ([]bintray.File, error) {
	all, err := s.Registry.PackageFiles(ctx, s.Subject, s.Repo, s.Package)
	if err != nil {
		return nil, errors.Wrap(err, "listing package files")
	}
	var files []bintray.File
	for _, f := range all {
		if f.Version == version {
			files = append(files, f)
		}
	}
	return files, nil
}

func (s *BintrayStore) List(ctx context.Context, version string) ([]string, error) {
	files, err := s.files(ctx, version)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *BintrayStore) Get(ctx context.Context, version, name string) (io.ReadCloser, error) {
	files, err := s.files(ctx, version)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name == name {
			return s.Registry.DownloadContent(ctx, s.Subject, s.Repo, f.Path)
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "%s/%s", version, name)
}

var _ Store = &BintrayStore{}
