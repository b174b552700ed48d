// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package packagestats

import (
	"bytes"
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/conan-community/dlstats/internal/config"
	"github.com/conan-community/dlstats/internal/httpx"
	"github.com/conan-community/dlstats/internal/ipclass"
	"github.com/conan-community/dlstats/pkg/act"
	"github.com/conan-community/dlstats/pkg/act/cli"
	"github.com/conan-community/dlstats/pkg/downloadlog"
	"github.com/conan-community/dlstats/pkg/registry/bintray"
	"github.com/conan-community/dlstats/pkg/registry/conan"
	"github.com/conan-community/dlstats/pkg/report"
	"github.com/conan-community/dlstats/pkg/stats"
	"github.com/conan-community/dlstats/pkg/storage"
	"github.com/conan-community/dlstats/tools/dlstats/clients"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config holds all configuration for the package-stats command.
type Config struct {
	config.Credentials
	ConanRemote   string
	SearchFile    string
	Pattern       string
	CenterSubject string
	CenterRepo    string
	AllowedOwners []string
	TotalPages    int
	CurrentPage   int
	Job           string
	Remote        string
	Format        string
	ProvidersFile string
	// RangeProviders overrides ipclass.DefaultRangeProviders when non-nil.
	RangeProviders []string
	CacheDir       string
	Interval       time.Duration
	S3             storage.S3Config
}

// Validate ensures the configuration is valid.
func (c Config) Validate() error {
	if err := c.Credentials.Validate(); err != nil {
		return err
	}
	if c.CenterSubject == "" || c.CenterRepo == "" {
		return errors.New("center-subject and center-repo are required")
	}
	if len(c.AllowedOwners) == 0 {
		return errors.New("at least one allowed owner is required")
	}
	if _, err := conan.Shard(nil, c.TotalPages, c.CurrentPage); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return err
	}
	return nil
}

// Deps holds dependencies for the command.
type Deps struct {
	IO         cli.IO
	HTTPClient httpx.BasicClient
	OpenStore  func(context.Context, string, storage.Options) (storage.Store, error)
	NewStager  func() (*downloadlog.Stager, func(), error)
	Now        func() time.Time
}

func (d *Deps) SetIO(cio cli.IO) { d.IO = cio }

// InitDeps initializes Deps.
func InitDeps(context.Context) (*Deps, error) {
	return &Deps{
		HTTPClient: http.DefaultClient,
		OpenStore:  storage.Open,
		NewStager: func() (*downloadlog.Stager, func(), error) {
			s, err := downloadlog.NewTempStager("dlstats-logs-")
			if err != nil {
				return nil, nil, err
			}
			return s, func() {
				if err := s.Cleanup(); err != nil {
					log.Printf("removing %s: %v", s.FS.Root(), err)
				}
			}, nil
		},
		Now: time.Now,
	}, nil
}

func loadRecipes(ctx context.Context, cfg Config, reg conan.Registry) ([]conan.Reference, error) {
	if cfg.SearchFile != "" {
		f, err := os.Open(cfg.SearchFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return conan.ReadSearchFile(f)
	}
	return reg.SearchRecipes(ctx, cfg.Pattern)
}

type run struct {
	cfg     Config
	deps    *Deps
	conan   conan.Registry
	bintray *bintray.HTTPRegistry
	agg     stats.Aggregator
	ips     []string
}

// stage downloads the logs of an owner's package, falling back to the links
// on its statistics page when the API lists none.
func (r *run) stage(ctx context.Context, owner, repo string, ref conan.Reference) ([]downloadlog.Record, error) {
	stager, cleanup, err := r.deps.NewStager()
	if err != nil {
		return nil, errors.Wrap(err, "creating stager")
	}
	defer cleanup()
	pkg := ref.Name + ":" + ref.User
	names, err := downloadlog.Fetch(ctx, r.bintray, owner, repo, pkg, stager)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		links, err := r.bintray.StatisticsLogLinks(ctx, owner, repo, ref.Name, ref.User)
		if err != nil {
			return nil, errors.Wrap(err, "scraping statistics page")
		}
		for _, name := range links {
			rc, err := r.bintray.DownloadLog(ctx, owner, repo, pkg, name)
			if err != nil {
				return nil, errors.Wrapf(err, "downloading %s", name)
			}
			err = stager.Stage(name, rc)
			rc.Close()
			if err != nil {
				return nil, err
			}
		}
	}
	return stager.LoadAll()
}

// process aggregates one recipe name. Names without usable package metadata
// or with a foreign owner are skipped.
func (r *run) process(ctx context.Context, name string, refs []conan.Reference) error {
	first := refs[0]
	if first.User == "" {
		return errors.Errorf("reference %s has no user", first)
	}
	pkg, err := r.bintray.Package(ctx, r.cfg.CenterSubject, r.cfg.CenterRepo, first.Name+":"+first.User)
	if err != nil {
		log.Printf("%s: no package metadata: %v", name, err)
		return nil
	}
	if !slices.Contains(r.cfg.AllowedOwners, pkg.Owner) {
		log.Printf("%s: owner %s not allowed", name, pkg.Owner)
		return nil
	}
	records, err := r.stage(ctx, pkg.Owner, pkg.Repo, first)
	if err != nil {
		return err
	}
	r.ips = append(r.ips, downloadlog.IPs(records)...)
	var recipes []conan.RecipeBinaries
	for _, ref := range refs {
		rb, err := r.conan.SearchPackages(ctx, ref)
		if err != nil {
			log.Printf("%s: no binary metadata: %v", ref, err)
			continue
		}
		recipes = append(recipes, *rb)
	}
	c := stats.Aggregate(stats.Join(downloadlog.Count(records), recipes))
	r.agg.Add(name, c)
	report.WritePackage(r.deps.IO.Out, name, c)
	return nil
}

func (r *run) upload(ctx context.Context, s report.Summary, f report.Format, date time.Time) error {
	store, err := r.deps.OpenStore(ctx, r.cfg.Remote, storage.Options{Bintray: r.bintray, S3: r.cfg.S3})
	if err != nil {
		return errors.Wrap(err, "opening remote")
	}
	var buf bytes.Buffer
	if err := s.Encode(&buf, f); err != nil {
		return errors.Wrap(err, "encoding summary")
	}
	name := report.FileName(date, r.cfg.Job, f)
	log.Printf("Uploading %s", name)
	return errors.Wrapf(store.Put(ctx, date.Format(report.DateLayout), name, &buf), "uploading %s", name)
}

// Handler contains the business logic for the package-stats command.
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
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	creg, err := clients.Conan(deps.HTTPClient, cfg.ConanRemote, cfg.CacheDir, cfg.Interval)
	if err != nil {
		return nil, err
	}
	r := &run{cfg: cfg, deps: deps, conan: creg, bintray: clients.Bintray(deps.HTTPClient, cfg.Credentials)}
	log.Println("Retrieving recipes...")
	refs, err := loadRecipes(ctx, cfg, r.conan)
	if err != nil {
		return nil, errors.Wrap(err, "listing recipes")
	}
	groups := conan.GroupByName(refs)
	names, err := conan.Shard(conan.Names(groups), cfg.TotalPages, cfg.CurrentPage)
	if err != nil {
		return nil, err
	}
	log.Printf("Recipes to be analyzed (%d): %v", len(names), names)
	bar := pb.New(len(names))
	bar.Output = deps.IO.Stderr()
	bar.ShowTimeLeft = true
	bar.Start()
	for _, name := range names {
		if err := r.process(ctx, name, groups[name]); err != nil {
			r.agg.Fail(name, err)
		}
		bar.Increment()
	}
	bar.Finish()
	total := r.agg.Total()
	report.WriteTotal(deps.IO.Out, total)
	report.WriteFailures(deps.IO.Stderr(), r.agg.Failures())
	now := deps.Now()
	summary := report.NewSummary(total, providers.Tally(r.ips), now, cfg.Job)
	if cfg.Remote == "" {
		log.Println("No remote configured, printing summary")
		return &act.NoOutput{}, summary.Encode(deps.IO.Out, format)
	}
	if err := r.upload(ctx, summary, format, now); err != nil {
		return nil, err
	}
	return &act.NoOutput{}, nil
}

// Command creates a new package-stats command instance.
func Command() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "package-stats [--search-file <file>] [--remote <store>] [--format json|yaml]",
		Short: "Aggregate binary downloads by arch, compiler and os",
		Args:  cobra.NoArgs,
		RunE: cli.RunE(
			&cfg,
			cli.SkipArgs[Config],
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
	cfg.AllowedOwners = env.AllowedOwners
	cfg.S3 = env.S3
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.StringVar(&cfg.Username, "username", env.Username, "hosting service user name")
	set.StringVar(&cfg.APIKey, "api-key", env.APIKey, "hosting service API key")
	set.StringVar(&cfg.ConanRemote, "conan-remote", conan.DefaultRemote.String(), "the Conan remote to search")
	set.StringVar(&cfg.SearchFile, "search-file", "", "read recipes from a 'conan search --json' report instead of the remote")
	set.StringVar(&cfg.Pattern, "pattern", "*", "recipe search pattern")
	set.StringVar(&cfg.CenterSubject, "center-subject", "conan", "subject of the repository linking every package")
	set.StringVar(&cfg.CenterRepo, "center-repo", "conan-center", "repository linking every package")
	set.Func("allowed-owners", "whitespace separated package owners to count", func(s string) error {
		cfg.AllowedOwners = config.ParseOwners(s)
		return nil
	})
	set.IntVar(&cfg.TotalPages, "total-pages", env.TotalPages, "split recipe names into this many shards")
	set.IntVar(&cfg.CurrentPage, "current-page", env.CurrentPage, "1-based shard to process")
	set.StringVar(&cfg.Job, "job", env.Job, "job id recorded in the summary name")
	set.StringVar(&cfg.Remote, "remote", env.Remote, "summary store: gs://, s3://, file:// or subject/repo/package")
	set.StringVar(&cfg.Format, "format", string(report.JSON), "summary format: json or yaml")
	set.StringVar(&cfg.ProvidersFile, "providers", "", "JSON object of provider name to IPs and CIDR ranges")
	set.Func("range-providers", "comma separated providers also matched by CIDR range (default Azure,Amazon)", func(s string) error {
		cfg.RangeProviders = ipclass.ParseNames(s)
		return nil
	})
	set.StringVar(&cfg.CacheDir, "cache-dir", "", "directory caching Conan metadata between runs")
	set.DurationVar(&cfg.Interval, "interval", 0, "minimum time between Conan requests")
	return set
}
