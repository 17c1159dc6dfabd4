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

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mailuminati-sentry/internal/store"
)

var alertsFlags struct {
	dbPath string
	limit  int
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List stored alerts, newest first",
	RunE:  runAlerts,
}

func init() {
	f := alertsCmd.Flags()
	f.StringVar(&alertsFlags.dbPath, "db", "", "SQLite path (default SENTRY_DB or alertas.db)")
	f.IntVarP(&alertsFlags.limit, "limit", "n", 20, "Maximum alerts to show (0 = all)")
}

func runAlerts(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	override(&s.DBPath, alertsFlags.dbPath)

	st, err := store.NewSQLiteStore(cmd.Context(), s.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	total, err := st.Count(cmd.Context())
	if err != nil {
		return err
	}
	alerts, err := st.List(cmd.Context(), alertsFlags.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	head := color.New(color.FgYellow, color.Bold)
	fmt.Fprintf(out, "%d alert(s) stored, showing %d\n\n", total, len(alerts))
	for _, a := range alerts {
		head.Fprintf(out, "#%d  %s", a.ID, a.ReceivedAt.Format("2006-01-02 15:04:05"))
		if a.Fingerprint != "" {
			fmt.Fprintf(out, "  %s", a.Fingerprint)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, a.Content)
	}
	return nil
}
