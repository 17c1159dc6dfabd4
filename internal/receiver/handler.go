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

package receiver

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"mailuminati-sentry/internal/config"
	"mailuminati-sentry/internal/metrics"
	"mailuminati-sentry/internal/model"
	"mailuminati-sentry/internal/report"
)

// ErrMissingToken is returned when the receiver is built without a shared secret.
var ErrMissingToken = errors.New("receiver: WEBHOOK_TOKEN is not set")

// AlertStore persists accepted alert items.
type AlertStore interface {
	AppendAll(ctx context.Context, items []string, at time.Time) ([]model.StoredAlert, error)
}

// Handler serves the alert intake endpoint.
type Handler struct {
	store    AlertStore
	token    []byte
	limiter  *Limiter
	logger   zerolog.Logger
	maxBytes int64
	now      func() time.Time

	received atomic.Int64
	rejected atomic.Int64
}

// Option tweaks a Handler.
type Option func(*Handler)

// WithMaxBytes overrides the payload size limit.
func WithMaxBytes(n int64) Option {
	return func(h *Handler) { h.maxBytes = n }
}

// WithClock overrides the clock used for storage timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler builds the intake handler. A nil limiter means the default
// in-memory limit of config.RateLimit requests per config.RateWindow.
func NewHandler(store AlertStore, token string, limiter *Limiter, logger zerolog.Logger, opts ...Option) (*Handler, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if limiter == nil {
		limiter = NewLimiter(NewMemoryCounter(), config.RateLimit, config.RateWindow)
	}
	h := &Handler{
		store:    store,
		token:    []byte(token),
		limiter:  limiter,
		logger:   logger,
		maxBytes: config.MaxPayloadBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Liveness answers the scanner's reachability probe.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReceiveAlert handles POST /alerta.
func (h *Handler) ReceiveAlert(w http.ResponseWriter, r *http.Request) {
	// Every request spends quota, including oversized and unauthenticated ones.
	d, err := h.limiter.Allow(r.Context(), clientAddr(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("rate limiter unavailable, allowing request")
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Reset.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}

	if r.ContentLength > h.maxBytes {
		h.reject(w, r, http.StatusRequestEntityTooLarge, "too_large", "Payload too large")
		return
	}

	if !d.Allowed {
		retry := int(time.Until(d.Reset).Seconds()) + 1
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		h.reject(w, r, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
		return
	}

	if !h.authorized(r) {
		h.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("rejected alert with invalid token")
		h.reject(w, r, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, r, http.StatusRequestEntityTooLarge, "too_large", "Payload too large")
			return
		}
		h.reject(w, r, http.StatusBadRequest, "invalid_payload", "Could not read request body")
		return
	}

	items, ok := decodeAlerts(body)
	if !ok {
		h.reject(w, r, http.StatusBadRequest, "invalid_payload", "Invalid format")
		return
	}

	stored, err := h.store.AppendAll(r.Context(), items, h.now())
	if err != nil {
		h.logger.Error().Err(err).Int("items", len(items)).Msg("failed to persist alerts")
		h.reject(w, r, http.StatusInternalServerError, "storage", "Could not store alerts")
		return
	}
	metrics.AlertsStored.Add(float64(len(stored)))
	h.received.Add(int64(len(stored)))

	for _, a := range stored {
		for _, line := range strings.Split(a.Content, "\n") {
			if line == "" {
				continue
			}
			h.logger.Info().Int64("alert_id", a.ID).Msg(line)
		}
	}

	h.writeJSON(w, http.StatusOK, model.AlertResponse{
		Status: model.StatusReceived,
		Hash:   report.Hash(items),
	})
}

func (h *Handler) authorized(r *http.Request) bool {
	fields := strings.Fields(r.Header.Get("Authorization"))
	if len(fields) != 2 || fields[0] != "Bearer" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(fields[1]), h.token) == 1
}

func (h *Handler) reject(w http.ResponseWriter, _ *http.Request, status int, reason, msg string) {
	metrics.RequestsRejected.WithLabelValues(reason).Inc()
	h.rejected.Add(1)
	h.writeError(w, status, msg)
}

// decodeAlerts accepts only an object whose "alertas" member is a list of strings.
func decodeAlerts(body []byte) ([]string, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return nil, false
	}
	raw, ok := envelope["alertas"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []string{}
	}
	return items, true
}

// clientAddr is the peer address without port. Forwarding headers are not trusted.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, model.AlertResponse{Status: model.StatusError, Message: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug().Err(err).Msg("failed to write response body")
	}
}
