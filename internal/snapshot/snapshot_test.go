package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/trailplay/geohunt/internal/database"
	"github.com/trailplay/geohunt/internal/geohunt"
	"github.com/trailplay/geohunt/internal/migrations"
	"github.com/trailplay/geohunt/internal/snapshot"
)

func setupStore(t *testing.T) *snapshot.Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return snapshot.New(db)
}

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	// Empty store: nothing to load.
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}

	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	snap := snapshot.Snapshot{
		TeamID:        "team-1",
		GameID:        "game-1",
		Token:         "tok",
		LocationID:    "L2",
		TrialID:       "T5",
		GameStartedAt: started,
		Team: &geohunt.Team{
			ID:            "team-1",
			Name:          "Los Incas",
			GameID:        "game-1",
			Score:         120,
			HintsPerTrial: map[string]int{"T5": 1},
		},
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.TeamID != "team-1" || loaded.LocationID != "L2" || loaded.TrialID != "T5" {
		t.Errorf("unexpected snapshot: %+v", loaded)
	}
	if !loaded.GameStartedAt.Equal(started) {
		t.Errorf("expected start %v, got %v", started, loaded.GameStartedAt)
	}
	if loaded.Team == nil || loaded.Team.Score != 120 || loaded.Team.HintsPerTrial["T5"] != 1 {
		t.Errorf("unexpected team: %+v", loaded.Team)
	}

	// Save again overwrites the single row.
	snap.TrialID = "T6"
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("second save: %v", err)
	}
	loaded, _, _ = store.Load(ctx)
	if loaded.TrialID != "T6" {
		t.Errorf("expected overwrite to T6, got %q", loaded.TrialID)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Error("expected store empty after clear")
	}
	// Clearing again is a no-op.
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}
