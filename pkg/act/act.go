// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package act describes commands as a validated input, a dependency
// container and an action over both.
package act

import "context"

// Input is a command configuration that can check itself before any
// network or filesystem access happens.
type Input interface {
	Validate() error
}

// Deps is a container of clients, stores and clocks a handler runs against.
type Deps any

// InitDeps builds the production dependencies.
type InitDeps[D Deps] func(context.Context) (D, error)

// Action is a command handler.
type Action[I Input, O any, D Deps] func(context.Context, I, D) (*O, error)

// NoOutput is returned by handlers that only write reports or artifacts.
type NoOutput struct{}
