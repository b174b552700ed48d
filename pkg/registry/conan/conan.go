// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package conan describes the Conan remote search API.
package conan

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/conan-community/dlstats/internal/httpx"
	"github.com/conan-community/dlstats/internal/urlx"
	"github.com/pkg/errors"
)

// DefaultRemote is the conan-center remote.
var DefaultRemote = urlx.MustParse("https://conan.bintray.com")

// Binary is one built variant of a recipe.
type Binary struct {
	ID       string            `json:"id"`
	Settings map[string]string `json:"settings"`
	Options  map[string]string `json:"options"`
}

// RecipeBinaries lists the binaries available for a single reference.
type RecipeBinaries struct {
	Reference Reference
	Binaries  []Binary
}

// Registry is a Conan remote.
type Registry interface {
	SearchRecipes(context.Context, string) ([]Reference, error)
	SearchPackages(context.Context, Reference) (*RecipeBinaries, error)
}

// HTTPRegistry is a Registry implementation that uses the v1 REST API.
type HTTPRegistry struct {
	Client httpx.BasicClient
	// URL of the remote. DefaultRemote when nil.
	URL *url.URL
}

func (r HTTPRegistry) remote() *url.URL {
	if r.URL == nil {
		return DefaultRemote
	}
	return r.URL
}

func (r HTTPRegistry) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		resp.Body.Close()
		return nil, errors.Errorf("conan remote error: %v", resp.Status)
	}
	return resp.Body, nil
}

type searchResponse struct {
	Results []string `json:"results"`
}

// SearchRecipes returns the references matching pattern, e.g. "*".
func (r HTTPRegistry) SearchRecipes(ctx context.Context, pattern string) ([]Reference, error) {
	u := urlx.WithQuery(r.remote().JoinPath("v1", "conans", "search"), "q", pattern)
	body, err := r.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var sr searchResponse
	if err := json.NewDecoder(body).Decode(&sr); err != nil {
		return nil, err
	}
	refs := make([]Reference, 0, len(sr.Results))
	for _, s := range sr.Results {
		ref, err := ParseReference(s)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// SearchPackages returns the binaries built for ref, sorted by id.
func (r HTTPRegistry) SearchPackages(ctx context.Context, ref Reference) (*RecipeBinaries, error) {
	elems := append([]string{"v1", "conans"}, ref.pathElems()...)
	u := r.remote().JoinPath(append(elems, "search")...)
	body, err := r.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var byID map[string]Binary
	if err := json.NewDecoder(body).Decode(&byID); err != nil {
		return nil, err
	}
	rb := &RecipeBinaries{Reference: ref}
	for id, b := range byID {
		b.ID = id
		rb.Binaries = append(rb.Binaries, b)
	}
	sort.Slice(rb.Binaries, func(i, j int) bool { return rb.Binaries[i].ID < rb.Binaries[j].ID })
	return rb, nil
}

var _ Registry = &HTTPRegistry{}

type searchFile struct {
	Results []struct {
		Items []struct {
			Recipe struct {
				ID string `json:"id"`
			} `json:"recipe"`
		} `json:"items"`
	} `json:"results"`
}

// ReadSearchFile reads the references out of a "conan search --json" report.
func ReadSearchFile(rd io.Reader) ([]Reference, error) {
	var sf searchFile
	if err := json.NewDecoder(rd).Decode(&sf); err != nil {
		return nil, errors.Wrap(err, "decoding search file")
	}
	if len(sf.Results) == 0 {
		return nil, nil
	}
	var refs []Reference
	for _, item := range sf.Results[0].Items {
		ref, err := ParseReference(item.Recipe.ID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
