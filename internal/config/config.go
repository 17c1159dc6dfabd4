// Mailuminati Sentry
// Copyright (C) 2025 Simon Bressier
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config resolves runtime settings for the scanner and the receiver.
//
// Lookup order for every key: the optional key=value config file, then the
// process environment, then the built-in default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigFile  = "sentry.env"
	DefaultReceiverURL = "http://localhost:5000"
	DefaultBindAddr    = "127.0.0.1"
	DefaultPort        = "5000"
	DefaultDBPath      = "alertas.db"
	DefaultReportPath  = "alertas.txt"
	DefaultGPGBinary   = "gpg"

	MaxPayloadBytes = 10_000 // receiver body cap, bytes
	RateLimit       = 10     // requests per RateWindow per source address
	RateWindow      = time.Minute
	ProbeTimeout    = 2 * time.Second
	StatsInterval   = 10 * time.Minute
)

// Settings holds everything the binaries need besides the detection rules.
type Settings struct {
	Env         string
	Token       string
	ReceiverURL string
	BindAddr    string
	Port        string
	DBPath      string
	ReportPath  string
	InputDir    string
	Recipient   string
	Signer      string
	GPGBinary   string
	RedisURL    string
	LogFile     string
	RulesPath   string

	StatsInterval time.Duration
}

// IsDevelopment reports whether console-friendly logging should be used.
func (s *Settings) IsDevelopment() bool {
	return s.Env == "development"
}

// ListenAddr is the receiver's bind address.
func (s *Settings) ListenAddr() string {
	return s.BindAddr + ":" + s.Port
}

// Source is a layered key lookup: config file entries win over the environment.
type Source struct {
	file map[string]string
}

// NewSource reads the key=value file at path. A missing file is not an error.
func NewSource(path string) (*Source, error) {
	src := &Source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return src, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	src.file = values
	return src, nil
}

// Get returns the value for key or fallback when neither layer sets it.
func (s *Source) Get(key, fallback string) string {
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Duration parses key as a Go duration, falling back on parse errors.
func (s *Source) Duration(key string, fallback time.Duration) time.Duration {
	raw := s.Get(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// Load builds Settings from the config file at path and the environment.
func Load(path string) (*Settings, error) {
	src, err := NewSource(path)
	if err != nil {
		return nil, err
	}
	return &Settings{
		Env:           src.Get("SENTRY_ENV", "development"),
		Token:         src.Get("WEBHOOK_TOKEN", ""),
		ReceiverURL:   src.Get("SENTRY_RECEIVER_URL", DefaultReceiverURL),
		BindAddr:      src.Get("SENTRY_BIND_ADDR", DefaultBindAddr),
		Port:          src.Get("PORT", DefaultPort),
		DBPath:        src.Get("SENTRY_DB", DefaultDBPath),
		ReportPath:    src.Get("SENTRY_REPORT", DefaultReportPath),
		InputDir:      src.Get("SENTRY_INPUT_DIR", "."),
		Recipient:     src.Get("GPG_RECIPIENT", ""),
		Signer:        src.Get("GPG_SIGNER", ""),
		GPGBinary:     src.Get("GPG_BINARY", DefaultGPGBinary),
		RedisURL:      src.Get("REDIS_URL", ""),
		LogFile:       src.Get("SENTRY_LOG_FILE", ""),
		RulesPath:     src.Get("SENTRY_RULES", ""),
		StatsInterval: src.Duration("SENTRY_STATS_INTERVAL", StatsInterval),
	}, nil
}
