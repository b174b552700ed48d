// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package ipclass attributes client IP addresses to the CI or cloud provider
// that owns them.
package ipclass

import (
	"encoding/json"
	"io"
	"net/netip"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Unknown is the provider name reported for unattributed addresses.
const Unknown = "Unknown"

// DefaultRangeProviders are the providers whose lists are also matched by
// CIDR containment.
var DefaultRangeProviders = []string{"Azure", "Amazon"}

// Built-in exact lists used when no provider file is supplied.
var (
	appveyorIPs = []string{
		"67.225.164.53", "67.225.164.54", "67.225.164.96", "67.225.165.66", "67.225.165.168", "67.225.165.171",
		"67.225.165.175", "67.225.165.183", "67.225.165.185", "67.225.165.193", "67.225.165.198",
		"67.225.165.200", "104.197.110.30", "104.197.145.181", "34.208.156.238", "34.209.164.53",
		"34.216.199.18", "52.43.29.82", "52.89.56.249", "54.200.227.141", "13.83.108.89", "138.91.141.243",
	}
	travisIPs = []string{
		"207.254.16.35", "207.254.16.36", "207.254.16.37", "207.254.16.38", "207.254.16.39", "34.66.178.120",
		"34.68.144.114", "35.184.96.71", "35.184.226.236", "35.188.1.99", "35.188.73.34", "35.192.85.2",
		"35.192.136.167", "35.192.187.174", "35.193.7.13", "35.193.14.140", "35.202.145.110", "35.224.112.202",
		"104.154.113.151", "104.154.120.187", "104.198.131.58",
	}
)

var (
	ErrBadPrefix   = errors.New("bad CIDR prefix")
	ErrBadRegistry = errors.New("provider registry must be a JSON object of string arrays")
)

// Entry is one provider's raw list of IP literals and CIDR prefixes.
type Entry struct {
	Name      string
	Addresses []string
}

type provider struct {
	name     string
	exact    map[string]struct{}
	prefixes []netip.Prefix
}

// Registry is an immutable, ordered set of providers.
type Registry struct {
	providers []provider
}

type options struct {
	rangeProviders []string
}

// Option configures a Registry.
type Option func(*options)

// WithRangeProviders replaces DefaultRangeProviders.
func WithRangeProviders(names ...string) Option {
	return func(o *options) { o.rangeProviders = names }
}

// normalize canonicalises parseable addresses so that "::ffff:1.2.3.4" and
// "1.2.3.4" share a key. Anything else is compared verbatim.
func normalize(s string) (string, netip.Addr, bool) {
	s = strings.TrimSpace(s)
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return s, netip.Addr{}, false
	}
	addr = addr.Unmap()
	return addr.String(), addr, true
}

func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, errors.Wrapf(ErrBadPrefix, "%q", s)
		}
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, errors.Wrapf(ErrBadPrefix, "%q", s)
	}
	if p != p.Masked() {
		return netip.Prefix{}, errors.Wrapf(ErrBadPrefix, "%q has host bits set", s)
	}
	return p, nil
}

// New builds a Registry from entries, preserving their order.
func New(entries []Entry, opts ...Option) (*Registry, error) {
	o := options{rangeProviders: DefaultRangeProviders}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Registry{}
	for _, e := range entries {
		p := provider{name: e.Name, exact: make(map[string]struct{}, len(e.Addresses))}
		ranged := slices.Contains(o.rangeProviders, e.Name)
		for _, a := range e.Addresses {
			key, _, _ := normalize(a)
			p.exact[key] = struct{}{}
			if ranged {
				prefix, err := parsePrefix(a)
				if err != nil {
					return nil, errors.Wrapf(err, "provider %s", e.Name)
				}
				p.prefixes = append(p.prefixes, prefix)
			}
		}
		r.providers = append(r.providers, p)
	}
	return r, nil
}

// Load reads a JSON object mapping provider name to addresses. Key order in
// the document decides match precedence. A repeated key replaces the earlier
// list but keeps its position.
func Load(rd io.Reader, opts ...Option) (*Registry, error) {
	dec := json.NewDecoder(rd)
	if tok, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "decoding provider registry")
	} else if tok != json.Delim('{') {
		return nil, ErrBadRegistry
	}
	var entries []Entry
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "decoding provider registry")
		}
		name, ok := tok.(string)
		if !ok {
			return nil, ErrBadRegistry
		}
		var addrs []string
		if err := dec.Decode(&addrs); err != nil {
			return nil, errors.Wrapf(ErrBadRegistry, "provider %s: %v", name, err)
		}
		if i, ok := index[name]; ok {
			entries[i].Addresses = addrs
			continue
		}
		index[name] = len(entries)
		entries = append(entries, Entry{Name: name, Addresses: addrs})
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "decoding provider registry")
	}
	return New(entries, opts...)
}

// Default returns the built-in Appveyor and Travis registry.
func Default(opts ...Option) *Registry {
	r, err := New([]Entry{
		{Name: "Appveyor", Addresses: appveyorIPs},
		{Name: "Travis", Addresses: travisIPs},
	}, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Providers returns provider names in precedence order.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.name)
	}
	return names
}

// Classify returns the first provider owning ip, or Unknown. Malformed
// addresses are never an error; they can only match a verbatim entry.
func (r *Registry) Classify(ip string) string {
	key, addr, ok := normalize(ip)
	for _, p := range r.providers {
		if _, found := p.exact[key]; found {
			return p.name
		}
		if !ok {
			continue
		}
		for _, prefix := range p.prefixes {
			if prefix.Contains(addr) {
				return p.name
			}
		}
	}
	return Unknown
}

// Tally counts ips per owning provider. Every element is counted, so
// repeated addresses contribute repeatedly.
func (r *Registry) Tally(ips []string) map[string]int {
	owner := make(map[string]string)
	counts := make(map[string]int)
	for _, ip := range ips {
		name, ok := owner[ip]
		if !ok {
			name = r.Classify(ip)
			owner[ip] = name
		}
		counts[name]++
	}
	return counts
}
