// Package metrics records per-operation timings in a SQLite system database.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Metric is one recorded operation timing.
type Metric struct {
	ID         int64     `json:"id"`
	Collection string    `json:"collection"`
	Operation  string    `json:"operation"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// OperationStats aggregates timings for one operation name.
type OperationStats struct {
	Operation string  `json:"operation"`
	Count     int64   `json:"count"`
	AvgMS     float64 `json:"avg_ms"`
	MaxMS     int64   `json:"max_ms"`
}

// Connection is one remembered database connection. Reconnecting to the
// same path bumps LastConnected instead of adding a row.
type Connection struct {
	ID             int64     `json:"id"`
	Path           string    `json:"path"`
	FirstConnected time.Time `json:"first_connected"`
	LastConnected  time.Time `json:"last_connected"`
}

// Recorder persists operation metrics. It is separate from the main data
// store so that metric writes never contend with record inserts.
type Recorder struct {
	db *sql.DB
}

// NewRecorder opens or creates the metrics database at dbPath.
func NewRecorder(dbPath string) (*Recorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		operation TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_operation ON metrics(operation);
	CREATE TABLE IF NOT EXISTS connections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		first_connected TIMESTAMP NOT NULL,
		last_connected TIMESTAMP NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize metrics schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record stores one timing. Collection may be empty for operations that
// are not scoped to a collection.
func (r *Recorder) Record(ctx context.Context, collection, operation string, duration time.Duration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO metrics (collection, operation, duration_ms, created_at)
		 VALUES (?, ?, ?, ?)`,
		collection, operation, duration.Milliseconds(), time.Now(),
	)
	return err
}

// Recent returns the most recent metrics, newest first. A non-positive
// limit defaults to 100.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]*Metric, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, collection, operation, duration_ms, created_at
		 FROM metrics ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.ID, &m.Collection, &m.Operation, &m.DurationMS, &m.CreatedAt); err != nil {
			return nil, err
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

// Stats returns per-operation aggregates ordered by operation name.
func (r *Recorder) Stats(ctx context.Context) ([]*OperationStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT operation, COUNT(*), AVG(duration_ms), MAX(duration_ms)
		 FROM metrics GROUP BY operation ORDER BY operation`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*OperationStats
	for rows.Next() {
		var s OperationStats
		if err := rows.Scan(&s.Operation, &s.Count, &s.AvgMS, &s.MaxMS); err != nil {
			return nil, err
		}
		stats = append(stats, &s)
	}
	return stats, rows.Err()
}

// RecordConnection remembers that the database at path was opened. The
// path is upserted so the history holds one row per database.
func (r *Recorder) RecordConnection(ctx context.Context, path string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connections (path, first_connected, last_connected)
		 VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET last_connected = excluded.last_connected`,
		path, now, now,
	)
	return err
}

// ConnectionHistory returns known connections, most recently used first.
// A non-positive limit defaults to 50.
func (r *Recorder) ConnectionHistory(ctx context.Context, limit int) ([]*Connection, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, path, first_connected, last_connected
		 FROM connections ORDER BY last_connected DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []*Connection
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.ID, &c.Path, &c.FirstConnected, &c.LastConnected); err != nil {
			return nil, err
		}
		conns = append(conns, &c)
	}
	return conns, rows.Err()
}

// Close closes the metrics database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
