// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package config reads command defaults from the environment.
package config

import (
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/conan-community/dlstats/pkg/storage"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment variable names.
const (
	EnvUsername      = "BINTRAY_USERNAME"
	EnvAPIKey        = "BINTRAY_API_KEY"
	EnvRemote        = "BINTRAY_REMOTE"
	EnvAllowedOwners = "BINTRAY_ALLOWED_OWNERS"
	EnvTotalPages    = "CONAN_TOTAL_PAGES"
	EnvCurrentPage   = "CONAN_CURRENT_PAGE"
	EnvJob           = "CIRCLE_JOB"
	EnvS3Endpoint    = "S3_ENDPOINT"
	EnvS3AccessKey   = "S3_ACCESS_KEY"
	EnvS3SecretKey   = "S3_SECRET_KEY"
	EnvS3Region      = "S3_REGION"
	EnvS3UseSSL      = "S3_USE_SSL"
)

// DefaultAllowedOwners are the repository owners whose packages are counted
// unless BINTRAY_ALLOWED_OWNERS says otherwise.
var DefaultAllowedOwners = []string{"conan-community", "bincrafters"}

var ErrMissingCredentials = errors.New(EnvUsername + " and " + EnvAPIKey + " must be configured")

// Credentials authenticate against the hosting service API.
type Credentials struct {
	Username string
	APIKey   string
}

// Validate fails with ErrMissingCredentials unless both fields are set.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Env holds every setting read from the environment.
type Env struct {
	Credentials
	Remote        string
	AllowedOwners []string
	TotalPages    int
	CurrentPage   int
	Job           string
	S3            storage.S3Config
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are named, without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "loading %s", p)
		}
	}
	return nil
}

// DefaultJob names a run that has no CI job id.
func DefaultJob(now time.Time) string {
	return now.Format("150405")
}

// FromEnv reads the settings through getenv, typically os.Getenv.
func FromEnv(getenv func(string) string, now time.Time) (Env, error) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }
	e := Env{
		Credentials:   Credentials{Username: get(EnvUsername), APIKey: get(EnvAPIKey)},
		Remote:        get(EnvRemote),
		AllowedOwners: ParseOwners(get(EnvAllowedOwners)),
		Job:           firstNonEmpty(get(EnvJob), DefaultJob(now)),
		S3: storage.S3Config{
			Endpoint:  get(EnvS3Endpoint),
			AccessKey: get(EnvS3AccessKey),
			SecretKey: get(EnvS3SecretKey),
			Region:    get(EnvS3Region),
			UseSSL:    true,
		},
	}
	var err error
	if e.TotalPages, err = atoiOrZero(get(EnvTotalPages)); err != nil {
		return Env{}, errors.Wrap(err, EnvTotalPages)
	}
	if e.CurrentPage, err = atoiOrZero(get(EnvCurrentPage)); err != nil {
		return Env{}, errors.Wrap(err, EnvCurrentPage)
	}
	if raw := get(EnvS3UseSSL); raw != "" {
		if e.S3.UseSSL, err = strconv.ParseBool(raw); err != nil {
			return Env{}, errors.Wrap(err, EnvS3UseSSL)
		}
	}
	return e, nil
}

// ParseOwners splits a whitespace separated owner list, falling back to
// DefaultAllowedOwners when it is empty.
func ParseOwners(s string) []string {
	if owners := strings.Fields(s); len(owners) > 0 {
		return owners
	}
	return append([]string(nil), DefaultAllowedOwners...)
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Lookup reads the process environment. Malformed values are logged and
// the defaults used instead.
func Lookup() Env {
	e, err := FromEnv(os.Getenv, time.Now())
	if err != nil {
		log.Printf("ignoring environment: %v", err)
		e, _ = FromEnv(func(string) string { return "" }, time.Now())
	}
	return e
}
