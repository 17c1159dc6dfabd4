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

// Package pipeline runs one scan: load documents, inspect them, write and
// protect the report, then hand the findings to the receiver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mailuminati-sentry/internal/detect"
	"mailuminati-sentry/internal/loader"
	"mailuminati-sentry/internal/metrics"
	"mailuminati-sentry/internal/protect"
	"mailuminati-sentry/internal/report"
	"mailuminati-sentry/internal/transport"
)

// Options configure a Pipeline.
type Options struct {
	InputDir    string
	ReportPath  string
	ReceiverURL string
	Token       string

	// HTTPClient is used for delivery when set.
	HTTPClient *http.Client
	// Console receives operator status lines. Defaults to os.Stdout.
	Console io.Writer
}

// Result summarises one run.
type Result struct {
	RunID     string
	Scanned   int
	Trusted   int
	Unread    int
	Records   int
	LocalHash string

	Artifacts  protect.Artifacts
	ProtectErr error

	Receipt    transport.Receipt
	DeliverErr error
}

// Pipeline wires the detector, the protection stage and the transport.
type Pipeline struct {
	detector *detect.Detector
	stage    *protect.Stage
	opts     Options
	base     zerolog.Logger
	logger   zerolog.Logger

	warn *color.Color
	ok   *color.Color
	info *color.Color
}

// New builds a Pipeline.
func New(d *detect.Detector, stage *protect.Stage, opts Options, logger zerolog.Logger) *Pipeline {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	return &Pipeline{
		detector: d,
		stage:    stage,
		opts:     opts,
		base:     logger,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		warn:     color.New(color.FgRed, color.Bold),
		ok:       color.New(color.FgGreen),
		info:     color.New(color.FgCyan),
	}
}

// Run executes one scan. Only a missing token or a report that cannot be
// written abort it; per-document, protection and delivery failures are
// recorded in the Result.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := p.logger.With().Str("run_id", res.RunID).Logger()

	paths, err := loader.Discover(p.opts.InputDir)
	if err != nil {
		return res, fmt.Errorf("discover inputs in %s: %w", p.opts.InputDir, err)
	}

	var batch report.Batch
	for _, path := range paths {
		p.info.Fprintf(p.opts.Console, "Analyzing %s\n", path)

		msg, err := loader.Load(path)
		if err != nil {
			res.Unread++
			metrics.InputErrors.Inc()
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable document")
			continue
		}

		findings, skipped := p.detector.Inspect(msg)
		res.Scanned++
		metrics.MessagesScanned.Inc()
		if skipped {
			res.Trusted++
			metrics.MessagesTrusted.Inc()
			log.Debug().Str("file", path).Str("sender", msg.Sender).Msg("trusted sender")
			continue
		}
		for _, f := range findings {
			metrics.Findings.WithLabelValues(f.Rule.String()).Inc()
		}
		if batch.Add(msg, findings) {
			log.Info().Str("file", path).Int("findings", len(findings)).Msg("message flagged")
		}
	}

	res.Records = batch.Len()
	if res.Records == 0 {
		p.ok.Fprintln(p.opts.Console, "No alerts detected. All messages look clean.")
		log.Info().Int("scanned", res.Scanned).Msg("no alerts")
		return res, nil
	}

	if err := batch.WriteFile(p.opts.ReportPath); err != nil {
		return res, fmt.Errorf("write report %s: %w", p.opts.ReportPath, err)
	}
	p.warn.Fprintf(p.opts.Console, "%d alert(s) written to %s\n", res.Records, p.opts.ReportPath)

	res.Artifacts, res.ProtectErr = p.stage.Protect(ctx, p.opts.ReportPath)
	if res.ProtectErr != nil {
		log.Error().Err(res.ProtectErr).Msg("report left unprotected")
	}

	items := batch.Items()
	res.LocalHash = report.Hash(items)
	log.Info().Str("hash", res.LocalHash).Msg("local integrity hash")

	clientOpts := []transport.Option{transport.WithRequestID(res.RunID)}
	if p.opts.HTTPClient != nil {
		clientOpts = append(clientOpts, transport.WithHTTPClient(p.opts.HTTPClient))
	}
	client, err := transport.New(p.opts.ReceiverURL, p.opts.Token,
		p.base.With().Str("run_id", res.RunID).Logger(), clientOpts...)
	if err != nil {
		return res, err
	}

	res.Receipt, res.DeliverErr = client.Deliver(ctx, items)
	switch {
	case res.DeliverErr == nil:
		p.ok.Fprintf(p.opts.Console, "Alerts delivered, hash verified: %s\n", res.Receipt.RemoteHash)
	case errors.Is(res.DeliverErr, transport.ErrIntegrityMismatch):
		p.warn.Fprintln(p.opts.Console, "Alerts delivered but the receiver hash does not match")
	default:
		p.warn.Fprintf(p.opts.Console, "Alerts not delivered: %v\n", res.DeliverErr)
	}
	return res, nil
}
