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

	"github.com/spf13/cobra"

	"mailuminati-sentry/internal/config"
	"mailuminati-sentry/internal/detect"
	"mailuminati-sentry/internal/pipeline"
	"mailuminati-sentry/internal/protect"
)

var scanFlags struct {
	inputDir    string
	reportPath  string
	receiverURL string
	rulesPath   string
	logFile     string
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan mail documents, write and protect the report, deliver alerts",
	RunE:  runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&scanFlags.inputDir, "input", "i", "", "Directory holding *.json / *.eml documents (default SENTRY_INPUT_DIR or .)")
	f.StringVarP(&scanFlags.reportPath, "report", "o", "", "Report path (default SENTRY_REPORT or "+config.DefaultReportPath+")")
	f.StringVar(&scanFlags.receiverURL, "receiver", "", "Receiver base URL (default SENTRY_RECEIVER_URL or "+config.DefaultReceiverURL+")")
	f.StringVar(&scanFlags.rulesPath, "rules", "", "YAML rules file (default SENTRY_RULES)")
	f.StringVar(&scanFlags.logFile, "log-file", "", "Log file (default SENTRY_LOG_FILE or sentry.log)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	override(&s.InputDir, scanFlags.inputDir)
	override(&s.ReportPath, scanFlags.reportPath)
	override(&s.ReceiverURL, scanFlags.receiverURL)
	override(&s.RulesPath, scanFlags.rulesPath)
	override(&s.LogFile, scanFlags.logFile)
	if s.LogFile == "" {
		s.LogFile = "sentry.log"
	}

	logger, closer, err := newLogger(s, cmd.ErrOrStderr(), s.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	rules, err := config.LoadRules(s.RulesPath)
	if err != nil {
		return err
	}
	d, err := detect.New(rules)
	if err != nil {
		return fmt.Errorf("build detector: %w", err)
	}

	stage := protect.NewStage(protect.GPG{Binary: s.GPGBinary}, s.Recipient, s.Signer, logger)
	p := pipeline.New(d, stage, pipeline.Options{
		InputDir:    s.InputDir,
		ReportPath:  s.ReportPath,
		ReceiverURL: s.ReceiverURL,
		Token:       s.Token,
		Console:     cmd.OutOrStdout(),
	}, logger)

	res, err := p.Run(cmd.Context())
	if err != nil {
		logger.Error().Err(err).Str("run_id", res.RunID).Msg("scan aborted")
		return err
	}
	logger.Info().
		Str("run_id", res.RunID).
		Int("scanned", res.Scanned).
		Int("trusted", res.Trusted).
		Int("unreadable", res.Unread).
		Int("alerts", res.Records).
		Msg("scan finished")
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
