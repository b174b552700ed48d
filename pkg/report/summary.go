// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/conan-community/dlstats/pkg/stats"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DateLayout formats the day of a summary and the storage version holding it.
const DateLayout = "20060102"

// Format is a summary serialization.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown summary format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case JSON, YAML:
		return f, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
	}
}

// Summary is the machine-readable result of a statistics run.
type Summary struct {
	RunID          string `json:"run_id" yaml:"run_id"`
	Date           string `json:"date" yaml:"date"`
	Job            string `json:"job" yaml:"job"`
	stats.Counters `yaml:",inline"`
	Providers      map[string]int `json:"providers" yaml:"providers"`
	// Merged lists the run ids combined into a total.
	Merged []string `json:"merged,omitempty" yaml:"merged,omitempty"`
}

// NewSummary stamps counters and a provider tally with a fresh run id.
func NewSummary(c stats.Counters, providers map[string]int, date time.Time, job string) Summary {
	return Summary{
		RunID:     uuid.New().String(),
		Date:      date.Format(DateLayout),
		Job:       job,
		Counters:  c,
		Providers: providers,
	}
}

// FileName is the artifact name of a single job's summary.
func FileName(date time.Time, job string, f Format) string {
	return fmt.Sprintf("statistics-%s_%s.%s", date.Format(DateLayout), job, f)
}

// TotalFileName is the artifact name of a day's merged summary.
func TotalFileName(date time.Time, f Format) string {
	return fmt.Sprintf("statistics-total-%s.%s", date.Format(DateLayout), f)
}

// IsTotalFile reports whether name is a merged summary artifact.
func IsTotalFile(name string) bool {
	return strings.HasPrefix(name, "statistics-total-")
}

// Encode writes s in format f.
func (s Summary) Encode(w io.Writer, f Format) error {
	switch f {
	case JSON:
		return json.NewEncoder(w).Encode(s)
	case YAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", f)
	}
}

// DecodeSummary reads a summary in format f.
func DecodeSummary(r io.Reader, f Format) (Summary, error) {
	var s Summary
	var err error
	switch f {
	case JSON:
		err = json.NewDecoder(r).Decode(&s)
	case YAML:
		err = yaml.NewDecoder(r).Decode(&s)
	default:
		err = errors.Wrapf(ErrUnknownFormat, "%q", f)
	}
	return s, errors.Wrap(err, "decoding summary")
}

// MergeSummaries sums the counters and provider tallies of summaries into
// a new total for date.
func MergeSummaries(date time.Time, summaries ...Summary) Summary {
	total := NewSummary(stats.Counters{}, map[string]int{}, date, "total")
	for _, s := range summaries {
		total.Counters.Merge(s.Counters)
		for k, v := range s.Providers {
			total.Providers[k] += v
		}
		total.Merged = append(total.Merged, s.RunID)
	}
	return total
}

