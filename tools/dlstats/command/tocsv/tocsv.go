// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tocsv

import (
	"context"
	"flag"
	"log"
	"path/filepath"

	"github.com/conan-community/dlstats/pkg/act"
	"github.com/conan-community/dlstats/pkg/act/cli"
	"github.com/conan-community/dlstats/pkg/report"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config holds all configuration for the to-csv command.
type Config struct {
	Input string
	// Output is the CSV path, or "-" for stdout.
	Output string
}

// Validate ensures the configuration is valid.
func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input report is required")
	}
	if c.Output == "" {
		return errors.New("output is required")
	}
	return nil
}

// Deps holds dependencies for the command.
type Deps struct {
	IO cli.IO
	// FS is rooted at "/". Paths are made absolute before use.
	FS billy.Filesystem
}

func (d *Deps) SetIO(cio cli.IO) { d.IO = cio }

// InitDeps initializes Deps.
func InitDeps(context.Context) (*Deps, error) {
	return &Deps{FS: osfs.New("/", osfs.WithBoundOS())}, nil
}

// Handler contains the business logic for the to-csv command.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*act.NoOutput, error) {
	input, err := filepath.Abs(cfg.Input)
	if err != nil {
		return nil, errors.Wrap(err, "resolving report path")
	}
	in, err := deps.FS.Open(input)
	if err != nil {
		return nil, errors.Wrap(err, "opening report")
	}
	defer in.Close()
	projects, err := report.ParseText(in)
	if err != nil {
		return nil, errors.Wrap(err, "parsing report")
	}
	if cfg.Output == "-" {
		if err := report.WriteCSV(deps.IO.Out, projects); err != nil {
			return nil, errors.Wrap(err, "writing csv")
		}
		return &act.NoOutput{}, nil
	}
	output, err := filepath.Abs(cfg.Output)
	if err != nil {
		return nil, errors.Wrap(err, "resolving output path")
	}
	f, err := deps.FS.Create(output)
	if err != nil {
		return nil, errors.Wrap(err, "creating output")
	}
	if err := report.WriteCSV(f, projects); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "writing csv")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "closing output")
	}
	log.Printf("Wrote %d projects to %s", len(projects), output)
	return &act.NoOutput{}, nil
}

// Command creates a new to-csv command instance.
func Command() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "to-csv <report> [--output downloads.csv]",
		Short: "Convert a text statistics report to CSV",
		RunE: cli.RunE(
			&cfg,
			cli.OneArg(func(c *Config, s string) { c.Input = s }),
			InitDeps,
			Handler,
		),
	}
	cmd.Flags().AddGoFlagSet(flagSet(cmd.Name(), &cfg))
	return cmd
}

// flagSet returns the command-line flags for the Config struct.
func flagSet(name string, cfg *Config) *flag.FlagSet {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.StringVar(&cfg.Output, "output", "downloads.csv", "CSV destination; - writes to stdout")
	return set
}
