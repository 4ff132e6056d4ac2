package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/takeda/ttrain/internal/config"
	"github.com/takeda/ttrain/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{
		Host:         mr.Addr(), // full "host:port" address
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestPreferenceStoreRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	prefs := store.Preferences()
	ctx := context.Background()

	pref := storage.Preference{
		Owner:           "11111111-2222-3333-4444-555555555555",
		Charges:         4,
		DurationSeconds: 120,
		UpdatedAt:       time.Now(),
	}

	if err := prefs.Upsert(ctx, pref); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := prefs.Get(ctx, pref.Owner)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Charges != 4 || got.DurationSeconds != 120 {
		t.Fatalf("unexpected preference %+v", got)
	}

	if err := prefs.Delete(ctx, pref.Owner); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := prefs.Get(ctx, pref.Owner); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPreferenceStoreList(t *testing.T) {
	store := setupTestStore(t)
	prefs := store.Preferences()
	ctx := context.Background()

	for _, owner := range []string{"owner-a", "owner-b"} {
		if err := prefs.Upsert(ctx, storage.Preference{Owner: owner, Charges: 2, DurationSeconds: 60}); err != nil {
			t.Fatalf("Upsert %s failed: %v", owner, err)
		}
	}

	all, err := prefs.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 preferences, got %d", len(all))
	}
}

func TestSessionLogRecentOrder(t *testing.T) {
	store := setupTestStore(t)
	log := store.SessionLog()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	records := []storage.SessionRecord{
		{ID: "s1", Owner: "alice", World: "arena", ChargesGranted: 3, ChargesUsed: 3, DurationSeconds: 60, StartedAt: base.Add(-time.Minute), EndedAt: base, Cause: "charges-exhausted"},
		{ID: "s2", Owner: "bob", World: "arena", ChargesGranted: 1, ChargesUsed: 0, DurationSeconds: 90, StartedAt: base, EndedAt: base.Add(time.Minute), Cause: "expired"},
		{ID: "s3", Owner: "alice", World: "lobby", ChargesGranted: 2, ChargesUsed: 1, DurationSeconds: 30, StartedAt: base, EndedAt: base.Add(2 * time.Minute), Cause: "forced"},
	}
	for _, rec := range records {
		if err := log.Add(ctx, rec); err != nil {
			t.Fatalf("Add %s failed: %v", rec.ID, err)
		}
	}

	recent, err := log.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "s3" || recent[1].ID != "s2" {
		t.Fatalf("expected newest-first [s3 s2], got %+v", recent)
	}

	mine, err := log.ListByOwner(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "s3" || mine[1].ID != "s1" {
		t.Fatalf("expected alice records [s3 s1], got %+v", mine)
	}
	if mine[1].ChargesUsed != 3 {
		t.Fatalf("expected s1 charges used 3, got %d", mine[1].ChargesUsed)
	}
}

func TestSessionLogDeleteBefore(t *testing.T) {
	store := setupTestStore(t)
	log := store.SessionLog()
	ctx := context.Background()
	now := time.Now()

	old := storage.SessionRecord{ID: "old", Owner: "alice", StartedAt: now.Add(-49 * time.Hour), EndedAt: now.Add(-48 * time.Hour), Cause: "expired"}
	fresh := storage.SessionRecord{ID: "fresh", Owner: "alice", StartedAt: now.Add(-time.Minute), EndedAt: now, Cause: "expired"}
	for _, rec := range []storage.SessionRecord{old, fresh} {
		if err := log.Add(ctx, rec); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	deleted, err := log.DeleteBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %d", deleted)
	}

	remaining, err := log.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "fresh" {
		t.Fatalf("expected only fresh record, got %+v", remaining)
	}

	mine, err := log.ListByOwner(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "fresh" {
		t.Fatalf("expected owner list cleaned up, got %+v", mine)
	}
}
