// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package ipreport

import (
	"context"
	"flag"
	"log"
	"net/http"
	"strings"

	"github.com/cheggaaa/pb"
	"github.com/conan-community/dlstats/internal/config"
	"github.com/conan-community/dlstats/internal/httpx"
	"github.com/conan-community/dlstats/internal/ipclass"
	"github.com/conan-community/dlstats/pkg/act"
	"github.com/conan-community/dlstats/pkg/act/cli"
	"github.com/conan-community/dlstats/pkg/downloadlog"
	"github.com/conan-community/dlstats/pkg/registry/bintray"
	"github.com/conan-community/dlstats/pkg/report"
	"github.com/conan-community/dlstats/pkg/stats"
	"github.com/conan-community/dlstats/tools/dlstats/clients"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config holds all configuration for the ip-report command.
type Config struct {
	config.Credentials
	Subject       string
	Repo          string
	Packages      []string
	MaxPackages   int
	ProvidersFile string
	// RangeProviders overrides ipclass.DefaultRangeProviders when non-nil.
	RangeProviders []string
	TopIPs         int
}

// Validate ensures the configuration is valid.
func (c Config) Validate() error {
	if err := c.Credentials.Validate(); err != nil {
		return err
	}
	if c.Subject == "" || c.Repo == "" {
		return errors.New("subject and repo are required")
	}
	if c.MaxPackages < 0 || c.TopIPs < 0 {
		return errors.New("limits must not be negative")
	}
	return nil
}

// Deps holds dependencies for the command.
type Deps struct {
	IO         cli.IO
	HTTPClient httpx.BasicClient
	NewStager  func() (*downloadlog.Stager, func(), error)
}

func (d *Deps) SetIO(cio cli.IO) { d.IO = cio }

// InitDeps initializes Deps.
func InitDeps(context.Context) (*Deps, error) {
	return &Deps{
		HTTPClient: http.DefaultClient,
		NewStager: func() (*downloadlog.Stager, func(), error) {
			s, err := downloadlog.NewTempStager("dlstats-ips-")
			if err != nil {
				return nil, nil, err
			}
			return s, func() {
				if err := s.Cleanup(); err != nil {
					log.Printf("removing %s: %v", s.FS.Root(), err)
				}
			}, nil
		},
	}, nil
}

func packageNames(ctx context.Context, cfg Config, reg bintray.Registry) ([]string, error) {
	names := cfg.Packages
	if len(names) == 0 {
		all, err := bintray.AllPackages(ctx, reg, cfg.Subject, cfg.Repo)
		if err != nil {
			return nil, errors.Wrap(err, "listing packages")
		}
		for _, p := range all {
			names = append(names, p.Name)
		}
	}
	if cfg.MaxPackages > 0 && len(names) > cfg.MaxPackages {
		names = names[:cfg.MaxPackages]
	}
	return names, nil
}

func summarize(ctx context.Context, cfg Config, deps *Deps, reg bintray.Registry, providers *ipclass.Registry, pkg string) (*downloadlog.Summary, error) {
	stager, cleanup, err := deps.NewStager()
	if err != nil {
		return nil, errors.Wrap(err, "creating stager")
	}
	defer cleanup()
	if _, err := downloadlog.Fetch(ctx, reg, cfg.Subject, cfg.Repo, pkg, stager); err != nil {
		return nil, err
	}
	records, err := stager.LoadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	s := downloadlog.Summarize(records, providers)
	return &s, nil
}

// Handler contains the business logic for the ip-report command.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*act.NoOutput, error) {
	var opts []ipclass.Option
	if cfg.RangeProviders != nil {
		opts = append(opts, ipclass.WithRangeProviders(cfg.RangeProviders...))
	}
	providers, err := ipclass.LoadFile(cfg.ProvidersFile, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading providers")
	}
	log.Printf("Classifying addresses against %s", strings.Join(providers.Providers(), ", "))
	reg := clients.Bintray(deps.HTTPClient, cfg.Credentials)
	names, err := packageNames(ctx, cfg, reg)
	if err != nil {
		return nil, err
	}
	log.Printf("Reporting downloads of %d packages", len(names))
	var total downloadlog.Summary
	var agg stats.Aggregator
	bar := pb.New(len(names))
	bar.Output = deps.IO.Stderr()
	bar.Start()
	for _, pkg := range names {
		s, err := summarize(ctx, cfg, deps, reg, providers, pkg)
		bar.Increment()
		if err != nil {
			agg.Fail(pkg, err)
			continue
		}
		if s == nil {
			log.Printf("%s: no download logs", pkg)
			continue
		}
		report.WriteDownloads(deps.IO.Out, pkg, *s, cfg.TopIPs)
		total.Merge(*s)
	}
	bar.Finish()
	report.WriteDownloads(deps.IO.Out, report.TotalTitle, total, cfg.TopIPs)
	report.WriteFailures(deps.IO.Stderr(), agg.Failures())
	return &act.NoOutput{}, nil
}

// Command creates a new ip-report command instance.
func Command() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "ip-report [--subject <org>] [--repo <repo>] [package...]",
		Short: "Break raw downloads down by provider, country and address",
		RunE: cli.RunE(
			&cfg,
			cli.AllArgs(func(c *Config, args []string) { c.Packages = args }),
			InitDeps,
			Handler,
		),
	}
	cmd.Flags().AddGoFlagSet(flagSet(cmd.Name(), &cfg))
	return cmd
}

// flagSet returns the command-line flags for the Config struct.
func flagSet(name string, cfg *Config) *flag.FlagSet {
	env := config.Lookup()
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.StringVar(&cfg.Username, "username", env.Username, "hosting service user name")
	set.StringVar(&cfg.APIKey, "api-key", env.APIKey, "hosting service API key")
	set.StringVar(&cfg.Subject, "subject", "conan-community", "organization owning the packages")
	set.StringVar(&cfg.Repo, "repo", "conan", "repository holding the packages")
	set.IntVar(&cfg.MaxPackages, "max-packages", 0, "only report the first N packages; 0 reports all")
	set.StringVar(&cfg.ProvidersFile, "providers", "", "JSON object of provider name to IPs and CIDR ranges")
	set.Func("range-providers", "comma separated providers also matched by CIDR range (default Azure,Amazon)", func(s string) error {
		cfg.RangeProviders = ipclass.ParseNames(s)
		return nil
	})
	set.IntVar(&cfg.TopIPs, "top-ips", 20, "rows of the address table; 0 shows all")
	return set
}
