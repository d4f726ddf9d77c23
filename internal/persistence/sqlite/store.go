package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/daniacca/molgrid/internal/reaction"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// ErrNotFound is returned when a chart has no stored snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Store keeps an append-only history of chart snapshots in a single SQLite
// table, one JSON payload per row.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Entry is one stored snapshot.
type Entry struct {
	ID       int64             `json:"id"`
	Snapshot reaction.Snapshot `json:"snapshot"`
}

// NewStore opens (or creates) the history database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "molgrid.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps writes serialised and ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chart_id TEXT NOT NULL,
		taken_at INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS snapshots_chart ON snapshots(chart_id, id)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots index: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Save appends a validated snapshot and returns its row id.
func (s *Store) Save(ctx context.Context, snapshot reaction.Snapshot) (int64, error) {
	if err := reaction.ValidateSnapshot(snapshot); err != nil {
		return 0, err
	}
	data, err := reaction.EncodeSnapshotJSON(snapshot)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots(chart_id, taken_at, payload) VALUES(?,?,?)`,
		string(snapshot.ChartID), snapshot.TakenAt.UnixNano(), data)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// Latest returns the most recently saved snapshot of a chart.
func (s *Store) Latest(ctx context.Context, chartID reaction.ChartID) (reaction.Snapshot, error) {
	entries, err := s.History(ctx, chartID, 1)
	if err != nil {
		return reaction.Snapshot{}, err
	}
	if len(entries) == 0 {
		return reaction.Snapshot{}, fmt.Errorf("chart %s: %w", chartID, ErrNotFound)
	}
	return entries[0].Snapshot, nil
}

// History returns up to limit snapshots of a chart, newest first. A limit
// <= 0 returns all of them.
func (s *Store) History(ctx context.Context, chartID reaction.ChartID, limit int) (entries []Entry, retErr error) {
	query := `SELECT id, payload FROM snapshots WHERE chart_id = ? ORDER BY id DESC`
	args := []any{string(chartID)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}()

	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		snapshot, err := reaction.DecodeSnapshotJSON(payload)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", id, err)
		}
		entries = append(entries, Entry{ID: id, Snapshot: snapshot})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return entries, nil
}

// Prune deletes all but the newest keep snapshots of a chart and reports how
// many rows were removed.
func (s *Store) Prune(ctx context.Context, chartID reaction.ChartID, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE chart_id = ? AND id NOT IN (
		SELECT id FROM snapshots WHERE chart_id = ? ORDER BY id DESC LIMIT ?
	)`, string(chartID), string(chartID), max(keep, 0))
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Since returns the snapshots of a chart taken at or after t, oldest first.
func (s *Store) Since(ctx context.Context, chartID reaction.ChartID, t time.Time) ([]Entry, error) {
	all, err := s.History(ctx, chartID, 0)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].Snapshot.TakenAt.Before(t) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
