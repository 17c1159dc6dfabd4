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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestMemoryCounterWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCounterWithClock(func() time.Time { return now })
	l := NewLimiter(c, 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, _ := l.Allow(ctx, "10.0.0.1")
		if !d.Allowed {
			t.Fatalf("hit %d denied", i)
		}
		if d.Remaining != 3-i {
			t.Errorf("hit %d remaining = %d, want %d", i, d.Remaining, 3-i)
		}
	}
	if d, _ := l.Allow(ctx, "10.0.0.1"); d.Allowed {
		t.Error("4th hit in window allowed")
	}
	if d, _ := l.Allow(ctx, "10.0.0.2"); !d.Allowed {
		t.Error("other address should have its own quota")
	}

	now = now.Add(time.Minute)
	if d, _ := l.Allow(ctx, "10.0.0.1"); !d.Allowed {
		t.Error("new window should reset the quota")
	}
}

func TestRedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewLimiter(NewRedisCounter(client, "sentry:"), 2, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("hit %d denied", i)
		}
	}
	d, err := l.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Error("3rd hit allowed")
	}
	if ttl := mr.TTL("sentry:ratelimit:ip:10.0.0.1"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v, want within one window", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if d, _ := l.Allow(ctx, "10.0.0.1"); !d.Allowed {
		t.Error("quota not reset after window expiry")
	}
}

func TestLimiterFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	l := NewLimiter(NewRedisCounter(client, ""), 1, time.Minute)
	d, err := l.Allow(context.Background(), "10.0.0.1")
	if err == nil {
		t.Fatal("expected counter error with redis down")
	}
	if !d.Allowed {
		t.Error("limiter must allow when the counter is unavailable")
	}
}
