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
	"context"
	"time"
)

// RunStats logs intake counters every interval until ctx is done.
func (h *Handler) RunStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.flushStats()
			return
		case <-ticker.C:
			h.flushStats()
		}
	}
}

func (h *Handler) flushStats() (received, rejected int64) {
	received = h.received.Swap(0)
	rejected = h.rejected.Swap(0)
	if received == 0 && rejected == 0 {
		return
	}
	h.logger.Info().
		Int64("alerts_received", received).
		Int64("requests_rejected", rejected).
		Msg("intake stats")
	return
}
