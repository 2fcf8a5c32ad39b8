// Package episodes persists drowsiness episodes: contiguous runs of frames
// during which a monitoring session was in the DROWSY state.
package episodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned when the store is used after Close.
var ErrClosed = errors.New("episodes: store closed")

// Episode is one DROWSY run.
type Episode struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Frames    int       `json:"frames"`    // drowsy frames observed
	MinEAR    float64   `json:"min_ear"`   // lowest measured EAR in the run
	Threshold float64   `json:"threshold"` // threshold in force when it started
}

// Duration is the wall time between start and end.
func (e Episode) Duration() time.Duration {
	return e.EndedAt.Sub(e.StartedAt)
}

// Store is a SQLite-backed episode log.
type Store struct {
	mu sync.RWMutex // held for reads across each query; Close takes it exclusively
	db *sql.DB
}

// Open opens the database at path, creating it and applying schema
// migrations as needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open episodes db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Record inserts or replaces an episode.
func (s *Store) Record(ctx context.Context, ep Episode) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO episodes (id, session_id, started_at, ended_at, frames, min_ear, threshold)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.SessionID, ep.StartedAt.UnixNano(), ep.EndedAt.UnixNano(),
		ep.Frames, ep.MinEAR, ep.Threshold)
	if err != nil {
		return fmt.Errorf("record episode %s: %w", ep.ID, err)
	}
	return nil
}

// List returns the most recent episodes first. An empty sessionID lists
// every session; limit <= 0 means 100.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, session_id, started_at, ended_at, frames, min_ear, threshold FROM episodes`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		var (
			ep         Episode
			start, end int64
		)
		if err := rows.Scan(&ep.ID, &ep.SessionID, &start, &end, &ep.Frames, &ep.MinEAR, &ep.Threshold); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.StartedAt = time.Unix(0, start)
		ep.EndedAt = time.Unix(0, end)
		out = append(out, ep)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
