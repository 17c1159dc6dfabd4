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

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mailuminati-sentry/internal/config"
)

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:          "sentry",
	Short:        "Mailuminati Sentry: outbound mail leak scanner and alert receiver",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", envOr("SENTRY_CONFIG", config.DefaultConfigFile), "key=value config file")
	rootCmd.AddCommand(scanCmd, serveCmd, alertsCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadSettings() (*config.Settings, error) {
	s, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return s, nil
}

// newLogger writes to out (console format in development, JSON otherwise)
// and, when logFile is set, appends JSON lines to that file as well.
// The returned closer releases the file.
func newLogger(s *config.Settings, out io.Writer, logFile string) (zerolog.Logger, io.Closer, error) {
	var console io.Writer = out
	if s.IsDevelopment() {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	w := console
	var closer io.Closer = io.NopCloser(nil)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		w = zerolog.MultiLevelWriter(console, f)
		closer = f
	}

	logger := zerolog.New(w).With().Timestamp().Logger()
	return logger, closer, nil
}
