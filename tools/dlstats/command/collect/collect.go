// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package collect

import (
	"bytes"
	"context"
	"flag"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/conan-community/dlstats/internal/config"
	"github.com/conan-community/dlstats/internal/httpx"
	"github.com/conan-community/dlstats/pkg/act"
	"github.com/conan-community/dlstats/pkg/act/cli"
	"github.com/conan-community/dlstats/pkg/report"
	"github.com/conan-community/dlstats/pkg/storage"
	"github.com/conan-community/dlstats/tools/dlstats/clients"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config holds all configuration for the collect command.
type Config struct {
	config.Credentials
	Remote string
	// Date is the YYYYMMDD version to collect. Today when empty.
	Date   string
	Format string
	S3     storage.S3Config
}

// Validate ensures the configuration is valid.
func (c Config) Validate() error {
	if c.Remote == "" {
		return errors.New("remote is required")
	}
	if !strings.Contains(c.Remote, "://") {
		if err := c.Credentials.Validate(); err != nil {
			return err
		}
	}
	if c.Date != "" {
		if _, err := time.Parse(report.DateLayout, c.Date); err != nil {
			return errors.Wrap(err, "parsing date")
		}
	}
	_, err := report.ParseFormat(c.Format)
	return err
}

// Deps holds dependencies for the command.
type Deps struct {
	IO         cli.IO
	HTTPClient httpx.BasicClient
	OpenStore  func(context.Context, string, storage.Options) (storage.Store, error)
	Now        func() time.Time
}

func (d *Deps) SetIO(cio cli.IO) { d.IO = cio }

// InitDeps initializes Deps.
func InitDeps(context.Context) (*Deps, error) {
	return &Deps{HTTPClient: http.DefaultClient, OpenStore: storage.Open, Now: time.Now}, nil
}

// Handler contains the business logic for the collect command.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*act.NoOutput, error) {
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	date := deps.Now()
	if cfg.Date != "" {
		date, _ = time.Parse(report.DateLayout, cfg.Date)
	}
	version := date.Format(report.DateLayout)
	opts := storage.Options{Bintray: clients.Bintray(deps.HTTPClient, cfg.Credentials), S3: cfg.S3}
	store, err := deps.OpenStore(ctx, cfg.Remote, opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening remote")
	}
	names, err := store.List(ctx, version)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", version)
	}
	var summaries []report.Summary
	for _, name := range names {
		if report.IsTotalFile(name) || !strings.HasSuffix(name, "."+string(format)) {
			continue
		}
		log.Printf("Downloading %s", name)
		rc, err := store.Get(ctx, version, name)
		if err != nil {
			return nil, errors.Wrapf(err, "downloading %s", name)
		}
		s, err := report.DecodeSummary(rc, format)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", name)
		}
		summaries = append(summaries, s)
	}
	if len(summaries) == 0 {
		return nil, errors.Errorf("no summaries found for %s", version)
	}
	total := report.MergeSummaries(date, summaries...)
	report.WriteTotal(deps.IO.Out, total.Counters)
	var buf bytes.Buffer
	if err := total.Encode(&buf, format); err != nil {
		return nil, errors.Wrap(err, "encoding total")
	}
	name := report.TotalFileName(date, format)
	log.Printf("Uploading %s merged from %d summaries", name, len(summaries))
	if err := store.Put(ctx, version, name, &buf); err != nil {
		return nil, errors.Wrapf(err, "uploading %s", name)
	}
	return &act.NoOutput{}, nil
}

// Command creates a new collect command instance.
func Command() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "collect [--remote <store>] [--date YYYYMMDD] [--format json|yaml]",
		Short: "Merge a day's job summaries into one total",
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
	cfg.S3 = env.S3
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.StringVar(&cfg.Username, "username", env.Username, "hosting service user name")
	set.StringVar(&cfg.APIKey, "api-key", env.APIKey, "hosting service API key")
	set.StringVar(&cfg.Remote, "remote", env.Remote, "summary store: gs://, s3://, file:// or subject/repo/package")
	set.StringVar(&cfg.Date, "date", "", "day to collect as YYYYMMDD; defaults to today")
	set.StringVar(&cfg.Format, "format", string(report.JSON), "summary format: json or yaml")
	return set
}
