// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package cli binds act handlers to cobra commands.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// IO holds the streams a handler reads from and reports to. Tables and
// summaries go to Out, progress and failure listings to Err.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// FromCommand returns the streams configured on cmd.
func FromCommand(cmd *cobra.Command) IO {
	return IO{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}
}

// Stderr returns Err, or a discarding writer when unset.
func (c IO) Stderr() io.Writer {
	if c.Err == nil {
		return io.Discard
	}
	return c.Err
}
