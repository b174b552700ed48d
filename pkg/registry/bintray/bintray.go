// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package bintray describes the Bintray REST API used to fetch download logs
// and publish report artifacts.
package bintray

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/conan-community/dlstats/internal/httpx"
	"github.com/conan-community/dlstats/internal/urlx"
	"github.com/pkg/errors"
)

var (
	DefaultAPIURL      = urlx.MustParse("https://api.bintray.com")
	DefaultDownloadURL = urlx.MustParse("https://dl.bintray.com")
	DefaultSiteURL     = urlx.MustParse("https://bintray.com")
)

// Package is the metadata of a Bintray package.
type Package struct {
	Name  string `json:"name"`
	Repo  string `json:"repo"`
	Owner string `json:"owner"`
}

// PackageSummary is an entry of a repository's package listing.
type PackageSummary struct {
	Name   string `json:"name"`
	Linked bool   `json:"linked"`
}

// LogFile is a download log available for a package.
type LogFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// File is a file published in a package version.
type File struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Package string `json:"package"`
	Version string `json:"version"`
	Size    int64  `json:"size"`
}

// Organization carries the quota fields of an organization.
type Organization struct {
	Name                           string `json:"name"`
	FreeStorage                    int64  `json:"free_storage"`
	QuotaUsedBytes                 int64  `json:"quota_used_bytes"`
	FreeStorageQuotaLimit          int64  `json:"free_storage_quota_limit"`
	LastMonthFreeDownloads         int64  `json:"last_month_free_downloads"`
	MonthlyFreeDownloadsQuotaLimit int64  `json:"monthly_free_downloads_quota_limit"`
}

// Registry is the subset of the Bintray API used by dlstats.
type Registry interface {
	Package(ctx context.Context, subject, repo, pkg string) (*Package, error)
	Packages(ctx context.Context, subject, repo string, startPos int) ([]PackageSummary, error)
	DownloadLogs(ctx context.Context, subject, repo, pkg string) ([]LogFile, error)
	DownloadLog(ctx context.Context, subject, repo, pkg, name string) (io.ReadCloser, error)
	Organization(ctx context.Context, org string) (*Organization, error)
	PackageFiles(ctx context.Context, subject, repo, pkg string) ([]File, error)
	DownloadContent(ctx context.Context, subject, repo, filePath string) (io.ReadCloser, error)
	UploadContent(ctx context.Context, subject, repo, pkg, version, filePath string, content io.Reader) error
}

// HTTPRegistry is a Registry implementation backed by the Bintray HTTP API.
// Nil URLs fall back to the public endpoints.
type HTTPRegistry struct {
	Client      httpx.BasicClient
	APIURL      *url.URL
	DownloadURL *url.URL
	SiteURL     *url.URL
}

func orDefault(u, def *url.URL) *url.URL {
	if u == nil {
		return def
	}
	return u
}

func (r HTTPRegistry) api(elem ...string) *url.URL {
	return orDefault(r.APIURL, DefaultAPIURL).JoinPath(elem...)
}

func (r HTTPRegistry) do(ctx context.Context, method string, u *url.URL, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errors.Errorf("bintray error: %v", resp.Status)
	}
	return resp, nil
}

func (r HTTPRegistry) getJSON(ctx context.Context, u *url.URL, v any) error {
	resp, err := r.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// Package returns the metadata of a package.
func (r HTTPRegistry) Package(ctx context.Context, subject, repo, pkg string) (*Package, error) {
	var p Package
	if err := r.getJSON(ctx, r.api("packages", subject, repo, pkg), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Packages returns one page of a repository's packages starting at startPos.
func (r HTTPRegistry) Packages(ctx context.Context, subject, repo string, startPos int) ([]PackageSummary, error) {
	u := r.api("repos", subject, repo, "packages")
	if startPos > 0 {
		u = urlx.WithQuery(u, "start_pos", strconv.Itoa(startPos))
	}
	var ps []PackageSummary
	if err := r.getJSON(ctx, u, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// AllPackages pages through Packages until a page is empty or repeats.
func AllPackages(ctx context.Context, r Registry, subject, repo string) ([]PackageSummary, error) {
	var all, prev []PackageSummary
	for pos := 0; ; {
		page, err := r.Packages(ctx, subject, repo, pos)
		if err != nil {
			return nil, errors.Wrapf(err, "listing packages at %d", pos)
		}
		if len(page) == 0 || slices.Equal(page, prev) {
			break
		}
		all = append(all, page...)
		pos += len(page)
		prev = page
	}
	return all, nil
}

// DownloadLogs lists the download log files of a package.
func (r HTTPRegistry) DownloadLogs(ctx context.Context, subject, repo, pkg string) ([]LogFile, error) {
	var logs []LogFile
	if err := r.getJSON(ctx, r.api("packages", subject, repo, pkg, "logs"), &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// DownloadLog returns the content of a single download log file.
func (r HTTPRegistry) DownloadLog(ctx context.Context, subject, repo, pkg, name string) (io.ReadCloser, error) {
	resp, err := r.do(ctx, http.MethodGet, r.api("packages", subject, repo, pkg, "logs", name), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Organization returns quota information about an organization.
func (r HTTPRegistry) Organization(ctx context.Context, org string) (*Organization, error) {
	var o Organization
	if err := r.getJSON(ctx, r.api("orgs", org), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// PackageFiles lists all files published in a package.
func (r HTTPRegistry) PackageFiles(ctx context.Context, subject, repo, pkg string) ([]File, error) {
	var files []File
	if err := r.getJSON(ctx, r.api("packages", subject, repo, pkg, "files"), &files); err != nil {
		return nil, err
	}
	return files, nil
}

// DownloadContent fetches a published file by its repository path.
func (r HTTPRegistry) DownloadContent(ctx context.Context, subject, repo, filePath string) (io.ReadCloser, error) {
	u := orDefault(r.DownloadURL, DefaultDownloadURL).JoinPath(subject, repo, filePath)
	resp, err := r.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// UploadContent publishes content under filePath of a package version,
// overriding any existing file.
func (r HTTPRegistry) UploadContent(ctx context.Context, subject, repo, pkg, version, filePath string, content io.Reader) error {
	u := urlx.WithQuery(r.api("content", subject, repo, pkg, version, filePath), "override", "1")
	resp, err := r.do(ctx, http.MethodPut, u, content)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

var _ Registry = &HTTPRegistry{}

// StatisticsLogLinks scrapes the names of the csv.gz download logs linked
// from a package's statistics page. Conan packages are named "pkg:user".
func (r HTTPRegistry) StatisticsLogLinks(ctx context.Context, subject, repo, pkg, user string) ([]string, error) {
	u := orDefault(r.SiteURL, DefaultSiteURL).JoinPath(subject, repo, pkg+":"+user)
	resp, err := r.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "parsing statistics page")
	}
	var names []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "csv.gz") {
			return
		}
		name := path.Base(href)
		if i := strings.LastIndex(href, "="); i >= 0 {
			name = href[i+1:]
		}
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	})
	return names, nil
}
