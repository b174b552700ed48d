// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log"

	"github.com/conan-community/dlstats/internal/config"
	"github.com/conan-community/dlstats/tools/dlstats/command/collect"
	"github.com/conan-community/dlstats/tools/dlstats/command/ipreport"
	"github.com/conan-community/dlstats/tools/dlstats/command/packagestats"
	"github.com/conan-community/dlstats/tools/dlstats/command/quota"
	"github.com/conan-community/dlstats/tools/dlstats/command/tocsv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dlstats",
	Short: "Package download statistics for Conan remotes",
}

func main() {
	// Flag defaults read the environment, so .env must be loaded first.
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	rootCmd.AddCommand(packagestats.Command())
	rootCmd.AddCommand(ipreport.Command())
	rootCmd.AddCommand(quota.Command())
	rootCmd.AddCommand(collect.Command())
	rootCmd.AddCommand(tocsv.Command())
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
