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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mailuminati-sentry/internal/config"
	"mailuminati-sentry/internal/receiver"
	"mailuminati-sentry/internal/store"
)

var serveFlags struct {
	addr     string
	dbPath   string
	redisURL string
	logFile  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the alert receiver",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "Listen address (default SENTRY_BIND_ADDR:PORT)")
	f.StringVar(&serveFlags.dbPath, "db", "", "SQLite path (default SENTRY_DB or "+config.DefaultDBPath+")")
	f.StringVar(&serveFlags.redisURL, "redis", "", "Redis URL for shared rate limiting (default REDIS_URL)")
	f.StringVar(&serveFlags.logFile, "log-file", "", "Log file (default SENTRY_LOG_FILE or receiver.log)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	override(&s.DBPath, serveFlags.dbPath)
	override(&s.RedisURL, serveFlags.redisURL)
	override(&s.LogFile, serveFlags.logFile)
	if s.LogFile == "" {
		s.LogFile = "receiver.log"
	}
	addr := s.ListenAddr()
	override(&addr, serveFlags.addr)

	logger, closer, err := newLogger(s, cmd.ErrOrStderr(), s.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	if s.Token == "" {
		logger.Error().Msg("WEBHOOK_TOKEN is not set, refusing to start")
		return receiver.ErrMissingToken
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(ctx, s.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info().Str("db", s.DBPath).Msg("alert store ready")

	limiter, cleanup, err := newLimiter(ctx, s.RedisURL, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	h, err := receiver.NewHandler(st, s.Token, limiter, logger.With().Str("component", "receiver").Logger())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      receiver.NewRouter(h, logger.With().Str("component", "http").Logger()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("env", s.Env).Msg("starting alert receiver")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		h.RunStats(gctx, s.StatsInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down receiver...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("receiver stopped")
	return nil
}

// newLimiter uses Redis when url is set, the in-process counter otherwise.
func newLimiter(ctx context.Context, url string, logger zerolog.Logger) (*receiver.Limiter, func(), error) {
	if url == "" {
		return receiver.NewLimiter(receiver.NewMemoryCounter(), config.RateLimit, config.RateWindow), func() {}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info().Str("redis", opts.Addr).Msg("rate limiting through redis")
	counter := receiver.NewRedisCounter(rdb, "sentry:")
	return receiver.NewLimiter(counter, config.RateLimit, config.RateWindow), func() { rdb.Close() }, nil
}
