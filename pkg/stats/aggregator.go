// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stats

import (
	"fmt"
)

// PackageCounters are the counters of one package in a run.
type PackageCounters struct {
	Name     string
	Counters Counters
}

// Failure records a package that could not be processed.
type Failure struct {
	Package string
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Package, f.Err)
}

// Aggregator accumulates per-package counters into a run total and keeps
// per-package failures so a batch can continue past them.
type Aggregator struct {
	packages []PackageCounters
	total    Counters
	failures []Failure
}

// Add records the counters of a processed package.
func (a *Aggregator) Add(name string, c Counters) {
	a.packages = append(a.packages, PackageCounters{Name: name, Counters: c})
	a.total.Merge(c)
}

// Fail records that a package could not be processed.
func (a *Aggregator) Fail(name string, err error) {
	a.failures = append(a.failures, Failure{Package: name, Err: err})
}

// Merge folds another aggregator's packages and failures into a.
func (a *Aggregator) Merge(o *Aggregator) {
	for _, p := range o.packages {
		a.Add(p.Name, p.Counters)
	}
	a.failures = append(a.failures, o.failures...)
}

// Total returns the cross-package counters.
func (a *Aggregator) Total() Counters { return a.total }

// Packages returns per-package counters in the order they were added.
func (a *Aggregator) Packages() []PackageCounters { return a.packages }

// Failures returns the recorded failures in the order they occurred.
func (a *Aggregator) Failures() []Failure { return a.failures }
