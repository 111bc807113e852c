// Package snapshot persists the session's working state to a local
// SQLite database so an interrupted game can be resumed after a restart.
// A snapshot is pure data: no device handles, no timers.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trailplay/geohunt/internal/geohunt"
)

// Snapshot is the durable image of a session. Whatever was true at the
// last successful mutation is what gets written.
type Snapshot struct {
	TeamID        string        `json:"teamId"`
	GameID        string        `json:"gameId"`
	Token         string        `json:"token,omitempty"`
	LocationID    string        `json:"locationId,omitempty"`
	TrialID       string        `json:"trialId,omitempty"`
	GameStartedAt time.Time     `json:"gameStartedAt"`
	Team          *geohunt.Team `json:"team,omitempty"`
}

// Store is a single-row durable snapshot backed by SQLite.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, data, saved_at)
		VALUES (1, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (id) DO UPDATE SET
			data = excluded.data,
			saved_at = excluded.saved_at
	`, string(data))
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or ok=false when none exists.
func (s *Store) Load(ctx context.Context) (Snapshot, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, true, nil
}

// Clear removes the stored snapshot. Safe to call when none exists.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = 1`); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}
