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
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Counter counts hits per key inside fixed windows. Incr returns the count
// after this hit and the moment the current window ends.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

type bucket struct {
	count int64
	reset time.Time
}

// MemoryCounter is a process-local Counter guarded by a mutex.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*bucket
}

// NewMemoryCounter returns a Counter using the wall clock.
func NewMemoryCounter() *MemoryCounter {
	return NewMemoryCounterWithClock(time.Now)
}

// NewMemoryCounterWithClock returns a Counter driven by now, for tests.
func NewMemoryCounterWithClock(now func() time.Time) *MemoryCounter {
	return &MemoryCounter{now: now, buckets: make(map[string]*bucket)}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.buckets) > 4096 {
		for k, b := range m.buckets {
			if !now.Before(b.reset) {
				delete(m.buckets, k)
			}
		}
	}

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.reset) {
		b = &bucket{reset: now.Add(window)}
		m.buckets[key] = b
	}
	b.count++
	return b.count, b.reset, nil
}

// RedisCounter shares counters between receiver instances through Redis.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter wraps client; keys are stored under prefix.
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := c.prefix + key
	n, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if n == 1 {
		if err := c.client.PExpire(ctx, k, window).Err(); err != nil {
			return n, time.Time{}, err
		}
	}
	ttl, err := c.client.PTTL(ctx, k).Result()
	if err != nil {
		return n, time.Time{}, err
	}
	if ttl < 0 {
		// Key lost its expiry (e.g. crash between INCR and PEXPIRE).
		c.client.PExpire(ctx, k, window)
		ttl = window
	}
	return n, time.Now().Add(ttl), nil
}

// Limiter enforces limit hits per window per source address.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
}

// NewLimiter builds a Limiter over counter.
func NewLimiter(counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: counter, limit: limit, window: window}
}

// Decision is the result of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Allow records a hit for addr and reports whether it is within quota.
func (l *Limiter) Allow(ctx context.Context, addr string) (Decision, error) {
	n, reset, err := l.counter.Incr(ctx, "ratelimit:ip:"+addr, l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}
	remaining := l.limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   n <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}
