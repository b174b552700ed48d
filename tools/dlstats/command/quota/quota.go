// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"flag"
	"net/http"

	"github.com/conan-community/dlstats/internal/config"
	"github.com/conan-community/dlstats/internal/httpx"
	"github.com/conan-community/dlstats/pkg/act"
	"github.com/conan-community/dlstats/pkg/act/cli"
	"github.com/conan-community/dlstats/pkg/report"
	"github.com/conan-community/dlstats/tools/dlstats/clients"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config holds all configuration for the quota command.
type Config struct {
	config.Credentials
	Organizations []string
}

// Validate ensures the configuration is valid.
func (c Config) Validate() error {
	if err := c.Credentials.Validate(); err != nil {
		return err
	}
	if len(c.Organizations) == 0 {
		return errors.New("at least one organization is required")
	}
	return nil
}

// Deps holds dependencies for the command.
type Deps struct {
	IO         cli.IO
	HTTPClient httpx.BasicClient
}

func (d *Deps) SetIO(cio cli.IO) { d.IO = cio }

// InitDeps initializes Deps.
func InitDeps(context.Context) (*Deps, error) {
	return &Deps{HTTPClient: http.DefaultClient}, nil
}

// Handler contains the business logic for the quota command.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*act.NoOutput, error) {
	reg := clients.Bintray(deps.HTTPClient, cfg.Credentials)
	for _, org := range cfg.Organizations {
		o, err := reg.Organization(ctx, org)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching organization %s", org)
		}
		if o.Name == "" {
			o.Name = org
		}
		report.WriteQuota(deps.IO.Out, *o)
	}
	return &act.NoOutput{}, nil
}

// Command creates a new quota command instance.
func Command() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "quota [organization...]",
		Short: "Show the storage and download quota of organizations",
		RunE: cli.RunE(
			&cfg,
			cli.AllArgs(func(c *Config, args []string) {
				if len(args) > 0 {
					c.Organizations = args
				}
			}),
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
	cfg.Organizations = []string{"conan-community"}
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.StringVar(&cfg.Username, "username", env.Username, "hosting service user name")
	set.StringVar(&cfg.APIKey, "api-key", env.APIKey, "hosting service API key")
	return set
}
