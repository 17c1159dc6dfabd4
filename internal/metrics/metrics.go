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

package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Scanner
	MessagesScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailuminati_sentry_messages_scanned_total",
		Help: "Total number of messages run through the content rules",
	})
	MessagesTrusted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailuminati_sentry_messages_trusted_total",
		Help: "Total number of messages skipped because the sender domain is trusted",
	})
	InputErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailuminati_sentry_input_errors_total",
		Help: "Total number of input documents that could not be read",
	})
	Findings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailuminati_sentry_findings_total",
		Help: "Total number of findings by rule",
	}, []string{"rule"})

	// Receiver
	AlertsStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailuminati_sentry_alerts_stored_total",
		Help: "Total number of alerts persisted by the receiver",
	})
	RequestsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailuminati_sentry_requests_rejected_total",
		Help: "Total number of rejected alert requests by reason",
	}, []string{"reason"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailuminati_sentry_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mailuminati_sentry_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(
		MessagesScanned, MessagesTrusted, InputErrors, Findings,
		AlertsStored, RequestsRejected, HTTPRequestsTotal, HTTPRequestDuration,
	)
}
