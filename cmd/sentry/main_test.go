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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mailuminati-sentry/internal/config"
	"mailuminati-sentry/internal/store"
	"mailuminati-sentry/internal/transport"
)

func TestNewLoggerWritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "sentry.log")
	var console bytes.Buffer

	logger, closer, err := newLogger(&config.Settings{Env: "production"}, &console, logFile)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info().Str("file", "mail1.json").Msg("message flagged")
	closer.Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, out := range []string{console.String(), string(data)} {
		if !strings.Contains(out, `"message":"message flagged"`) {
			t.Errorf("log output missing JSON line: %q", out)
		}
	}
}

func TestAlertsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "alertas.db")
	st, err := store.NewSQLiteStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if _, err := st.AppendAll(context.Background(), []string{"older alert", "newest alert"}, time.Now()); err != nil {
		t.Fatalf("AppendAll: %v", err)
	}
	st.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"alerts", "--config", filepath.Join(t.TempDir(), "none.env"), "--db", dbPath, "--limit", "1"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("alerts: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "2 alert(s) stored, showing 1") {
		t.Errorf("missing summary line:\n%s", got)
	}
	if !strings.Contains(got, "newest alert") || strings.Contains(got, "older alert") {
		t.Errorf("want only the newest alert:\n%s", got)
	}
}

func TestScanWithoutTokenFails(t *testing.T) {
	dir := t.TempDir()
	doc := `{"from":"attacker@evil.com","subject":"contraseña urgente",` +
		`"body":"user: admin password: 1234","attachments":["payload.exe"]}`
	if err := os.WriteFile(filepath.Join(dir, "mail1.json"), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEBHOOK_TOKEN", "")
	t.Setenv("GPG_RECIPIENT", "")
	t.Setenv("GPG_SIGNER", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{
		"scan",
		"--config", filepath.Join(dir, "none.env"),
		"--input", dir,
		"--report", filepath.Join(dir, "alertas.txt"),
		"--receiver", "http://127.0.0.1:1",
		"--log-file", filepath.Join(dir, "sentry.log"),
	})
	err := rootCmd.Execute()
	if !errors.Is(err, transport.ErrMissingToken) {
		t.Fatalf("err = %v, want ErrMissingToken", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "alertas.txt")); err != nil {
		t.Errorf("report should be kept when protection cannot run: %v", err)
	}
}
