// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package downloadlog

import (
	"context"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/conan-community/dlstats/pkg/registry/bintray"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
)

// Stager keeps fetched log files on a filesystem until they are parsed.
type Stager struct {
	FS billy.Filesystem
}

// NewTempStager returns a Stager rooted in a fresh temporary directory.
// The caller removes it with Cleanup.
func NewTempStager(pattern string) (*Stager, error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return nil, errors.Wrap(err, "creating staging directory")
	}
	return &Stager{FS: osfs.New(dir)}, nil
}

// Cleanup removes an on-disk staging directory.
func (s *Stager) Cleanup() error {
	return os.RemoveAll(s.FS.Root())
}

// Stage stores the content of a log file under name.
func (s *Stager) Stage(name string, r io.Reader) error {
	f, err := s.FS.Create(name)
	if err != nil {
		return errors.Wrapf(err, "creating %s", name)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", name)
	}
	return f.Close()
}

// Names lists the staged log files in name order.
func (s *Stager) Names() ([]string, error) {
	infos, err := s.FS.ReadDir("/")
	if err != nil {
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

// Load parses a staged log, dating its records from the file name.
func (s *Stager) Load(name string) ([]Record, error) {
	date, err := DateFromName(name)
	if err != nil {
		return nil, err
	}
	f, err := s.FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := Open(f)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	records, err := Read(r, date)
	return records, errors.Wrapf(err, "parsing %s", name)
}

// LoadAll parses every staged log in name order.
func (s *Stager) LoadAll() ([]Record, error) {
	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	var all []Record
	for _, n := range names {
		records, err := s.Load(n)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// Fetch stages every csv.gz download log of a package.
func Fetch(ctx context.Context, reg bintray.Registry, subject, repo, pkg string, s *Stager) ([]string, error) {
	logs, err := reg.DownloadLogs(ctx, subject, repo, pkg)
	if err != nil {
		return nil, errors.Wrap(err, "listing download logs")
	}
	var names []string
	for _, l := range logs {
		if !strings.Contains(l.Name, "csv.gz") {
			continue
		}
		names = append(names, l.Name)
	}
	for _, name := range names {
		log.Printf("Downloading %s...", name)
		if err := fetchOne(ctx, reg, subject, repo, pkg, name, s); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func fetchOne(ctx context.Context, reg bintray.Registry, subject, repo, pkg, name string, s *Stager) error {
	rc, err := reg.DownloadLog(ctx, subject, repo, pkg, name)
	if err != nil {
		return errors.Wrapf(err, "downloading %s", name)
	}
	defer rc.Close()
	return s.Stage(name, rc)
}
