// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/conan-community/dlstats/pkg/act"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Deps are dependency containers that accept the command's streams.
type Deps interface {
	SetIO(IO)
}

// ParseArgs populates an Input from positional arguments.
type ParseArgs[I act.Input] func(in *I, args []string) error

// SkipArgs is a ParseArgs that sets no arguments.
func SkipArgs[I act.Input](cfg *I, args []string) error {
	return nil
}

// OneArg is a ParseArgs that hands exactly one positional argument to set.
func OneArg[I act.Input](set func(*I, string)) ParseArgs[I] {
	return func(cfg *I, args []string) error {
		if len(args) != 1 {
			return errors.Errorf("expected exactly one argument, got %d", len(args))
		}
		set(cfg, args[0])
		return nil
	}
}

// AllArgs is a ParseArgs that hands every positional argument to set.
func AllArgs[I act.Input](set func(*I, []string)) ParseArgs[I] {
	return func(cfg *I, args []string) error {
		set(cfg, args)
		return nil
	}
}

// RunE builds a cobra RunE that parses args into cfg, validates it, builds
// the dependencies and runs action. The action output is discarded; handlers
// report through the IO attached to their deps.
func RunE[I act.Input, O any, D Deps](
	cfg *I,
	parseArgs ParseArgs[I],
	initDeps act.InitDeps[D],
	action act.Action[I, O, D],
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := parseArgs(cfg, args); err != nil {
			return err
		}
		if err := (*cfg).Validate(); err != nil {
			return err
		}
		deps, err := initDeps(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "initializing dependencies")
		}
		deps.SetIO(FromCommand(cmd))
		_, err = action(cmd.Context(), *cfg, deps)
		return err
	}
}
