// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bufio"
	"encoding/csv"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Columns is the fixed CSV column set. The first column holds the project
// name; keys absent from a project are written as 0.
var Columns = []string{
	"Packages", "x86_64", "x86", "armv7", "armv7hf",
	"Visual Studio 12", "Visual Studio 14", "Visual Studio 15", "Visual Studio 16",
	"apple-clang 10.0", "apple-clang 7.3", "apple-clang 8.0", "apple-clang 8.1", "apple-clang 9.0", "apple-clang 9.1",
	"clang 3.9", "clang 4.0", "clang 5.0", "clang 6.0", "clang 7.0", "clang 8",
	"gcc 4.6", "gcc 4.8", "gcc 4.9", "gcc 5", "gcc 6", "gcc 6.3", "gcc 7", "gcc 7.1", "gcc 8", "gcc 9",
	"Linux", "Macos", "Windows", "Total",
}

var ErrDuplicateProject = errors.New("duplicate project")

var titleRegex = regexp.MustCompile(`^===== (.*) =====`)

// Project is one package section of a text report.
type Project struct {
	Name   string
	Values map[string]int
}

// ParseText reads the package sections of a text report written by
// WritePackage. The run total section is skipped.
func ParseText(r io.Reader) ([]Project, error) {
	var projects []Project
	seen := make(map[string]bool)
	var cur *Project
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		switch {
		case titleRegex.MatchString(line):
			title := titleRegex.FindStringSubmatch(line)[1]
			if title == TotalTitle {
				cur = nil
				continue
			}
			if seen[title] {
				return nil, errors.Wrapf(ErrDuplicateProject, "%q", title)
			}
			seen[title] = true
			projects = append(projects, Project{Name: title, Values: make(map[string]int)})
			cur = &projects[len(projects)-1]
		case cur == nil, strings.Contains(line, countHeader):
		case strings.HasPrefix(line, "| "):
			parts := strings.Split(line, "|")
			if len(parts) < 3 {
				return nil, errors.Errorf("line %d: malformed row %q", n, line)
			}
			v, err := strconv.Atoi(strings.TrimSpace(parts[2]))
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", n)
			}
			cur.Values[strings.TrimSpace(parts[1])] = v
		case strings.HasPrefix(line, "TOTAL:"):
			v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "TOTAL:")))
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", n)
			}
			cur.Values["Total"] = v
		}
	}
	return projects, sc.Err()
}

// WriteCSV writes projects under the fixed Columns.
func WriteCSV(w io.Writer, projects []Project) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, p := range projects {
		row := []string{p.Name}
		for _, k := range Columns[1:] {
			row = append(row, strconv.Itoa(p.Values[k]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
