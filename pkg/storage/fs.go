// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
)

// FSStore keeps artifacts in a billy.Filesystem as version/name.
type FSStore struct {
	fs billy.Filesystem
}

// NewFSStore creates a new FSStore.
func NewFSStore(fs billy.Filesystem) *FSStore {
	return &FSStore{fs: fs}
}

func (s *FSStore) Put(ctx context.Context, version, name string, content io.Reader) error {
	if err := s.fs.MkdirAll(version, 0755); err != nil {
		return errors.Wrapf(err, "creating version %s", version)
	}
	f, err := s.fs.Create(filepath.Join(version, name))
	if err != nil {
		return errors.Wrapf(err, "creating %s/%s", version, name)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s/%s", version, name)
	}
	return f.Close()
}

func (s *FSStore) List(ctx context.Context, version string) ([]string, error) {
	infos, err := s.fs.ReadDir(version)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var names []string
	for _, fi := range infos {
		if !fi.IsDir() {
			names = append(names, fi.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FSStore) Get(ctx context.Context, version, name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(filepath.Join(version, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = stderrors.Join(err, ErrNotFound)
		}
		return nil, errors.Wrapf(err, "opening %s/%s", version, name)
	}
	return f, nil
}

var _ Store = &FSStore{}
