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

// Package store persists received alerts in an append-only SQLite table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glaslos/tlsh"
	_ "github.com/mattn/go-sqlite3"

	"mailuminati-sentry/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// SQLiteStore is the receiver's alert table. All writes go through one
// connection and one mutex, so concurrent requests never interleave commits.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS alertas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fecha TEXT,
		contenido TEXT
	);
	`)
	if err != nil {
		return err
	}
	// Tables created by older deployments have no fingerprint column.
	has, err := s.hasColumn(ctx, "alertas", "huella")
	if err != nil || has {
		return err
	}
	_, err = s.db.ExecContext(ctx, `ALTER TABLE alertas ADD COLUMN huella TEXT NOT NULL DEFAULT ''`)
	return err
}

func (s *SQLiteStore) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendAll inserts every item with the same timestamp inside one
// transaction. Either all items are stored or none are.
func (s *SQLiteStore) AppendAll(ctx context.Context, items []string, at time.Time) ([]model.StoredAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO alertas (fecha, contenido, huella) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	stamp := at.Format(timeLayout)
	stored := make([]model.StoredAlert, 0, len(items))
	for _, content := range items {
		fp := Fingerprint(content)
		res, err := stmt.ExecContext(ctx, stamp, content, fp)
		if err != nil {
			return nil, fmt.Errorf("insert alert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		stored = append(stored, model.StoredAlert{
			ID:          id,
			ReceivedAt:  at.Truncate(time.Second),
			Content:     content,
			Fingerprint: fp,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit alerts: %w", err)
	}
	return stored, nil
}

// List returns up to limit alerts, newest first. limit <= 0 means no limit.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.StoredAlert, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(fecha, ''), COALESCE(contenido, ''), COALESCE(huella, '')
		FROM alertas
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.StoredAlert
	for rows.Next() {
		var a model.StoredAlert
		var stamp string
		if err := rows.Scan(&a.ID, &stamp, &a.Content, &a.Fingerprint); err != nil {
			return nil, err
		}
		if t, err := time.ParseInLocation(timeLayout, stamp, time.Local); err == nil {
			a.ReceivedAt = t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Count returns the number of stored alerts.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alertas`).Scan(&n)
	return n, err
}

// Fingerprint returns the TLSH digest of content ("T1" + uppercase hex), or
// "" when the content is too short or too uniform for TLSH.
func Fingerprint(content string) string {
	h, err := tlsh.HashBytes([]byte(content))
	if err != nil {
		return ""
	}
	return "T1" + strings.ToUpper(h.String())
}
