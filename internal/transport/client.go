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

// Package transport delivers alert batches to the receiver and checks the
// integrity hash it returns.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mailuminati-sentry/internal/config"
	"mailuminati-sentry/internal/model"
	"mailuminati-sentry/internal/report"
)

var (
	ErrMissingToken         = errors.New("webhook token not set")
	ErrTransportUnavailable = errors.New("receiver unavailable")
	ErrIntegrityMismatch    = errors.New("integrity hash mismatch")
)

// maxReplyBytes bounds how much of a reply body is read.
const maxReplyBytes = 1 << 20

// StatusError is returned when the receiver answers with anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("receiver returned %d: %s", e.Code, e.Body)
}

// Receipt is the outcome of one delivery attempt.
type Receipt struct {
	StatusCode int
	LocalHash  string
	RemoteHash string
	Verified   bool
}

// Client talks to the alert receiver. It makes a single attempt per call.
type Client struct {
	baseURL      string
	token        string
	requestID    string
	probeTimeout time.Duration
	http         *http.Client
	logger       zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRequestID tags every request with an X-Request-ID header.
func WithRequestID(id string) Option {
	return func(c *Client) { c.requestID = id }
}

// WithProbeTimeout overrides the liveness probe timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) { c.probeTimeout = d }
}

// New returns a Client for the receiver at baseURL. An empty token is fatal:
// the caller must not attempt any delivery without one.
func New(baseURL, token string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		probeTimeout: config.ProbeTimeout,
		http:         &http.Client{},
		logger:       logger.With().Str("component", "transport").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Probe issues a bare GET against the receiver. Any HTTP response counts as
// alive; transport errors and timeouts do not.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
	resp.Body.Close()
	return nil
}

// Send posts items to /alerta and verifies the returned hash against a
// locally computed one. A mismatch is reported but never retried.
func (c *Client) Send(ctx context.Context, items []string) (Receipt, error) {
	receipt := Receipt{LocalHash: report.Hash(items)}

	payload, err := json.Marshal(model.AlertRequest{Alerts: items})
	if err != nil {
		return receipt, fmt.Errorf("encode alerts: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/alerta", bytes.NewReader(payload))
	if err != nil {
		return receipt, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.requestID != "" {
		req.Header.Set("X-Request-ID", c.requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return receipt, fmt.Errorf("post alerts: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return receipt, fmt.Errorf("read reply: %w", err)
	}
	receipt.StatusCode = resp.StatusCode
	c.logger.Info().Int("status", resp.StatusCode).Msg("receiver replied")

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("receiver rejected alerts")
		return receipt, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var reply model.AlertResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return receipt, fmt.Errorf("decode reply: %w", err)
	}
	receipt.RemoteHash = reply.Hash

	if reply.Hash != receipt.LocalHash {
		c.logger.Warn().
			Str("local_hash", receipt.LocalHash).
			Str("remote_hash", reply.Hash).
			Msg("hash mismatch, content may have been altered in transit")
		return receipt, ErrIntegrityMismatch
	}
	receipt.Verified = true
	c.logger.Info().Str("hash", reply.Hash).Msg("integrity verified, hashes match")
	return receipt, nil
}

// Deliver probes the receiver and, if it is reachable, sends items once.
func (c *Client) Deliver(ctx context.Context, items []string) (Receipt, error) {
	if err := c.Probe(ctx); err != nil {
		c.logger.Error().Err(err).Str("url", c.baseURL).Msg("receiver not available, alerts not sent")
		return Receipt{LocalHash: report.Hash(items)}, err
	}
	return c.Send(ctx, items)
}
