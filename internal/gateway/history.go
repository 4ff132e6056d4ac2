package gateway

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/session"
	"github.com/takeda/ttrain/internal/storage"
)

// History records completed sessions. Recent records are kept in an
// in-memory cache for cheap API reads; everything is persisted to the
// session log.
type History struct {
	store  storage.SessionLogStore
	cache  *lru.Cache[string, storage.SessionRecord]
	logger zerolog.Logger
}

// NewHistory creates a history recorder holding up to cacheSize recent
// records in memory.
func NewHistory(store storage.SessionLogStore, cacheSize int, logger zerolog.Logger) (*History, error) {
	cache, err := lru.New[string, storage.SessionRecord](cacheSize)
	if err != nil {
		return nil, err
	}
	return &History{
		store:  store,
		cache:  cache,
		logger: logger.With().Str("component", "history").Logger(),
	}, nil
}

// SessionEnded implements session.Recorder.
func (h *History) SessionEnded(rec session.Record) {
	stored := storage.SessionRecord{
		ID:              rec.ID,
		Owner:           rec.Owner.String(),
		World:           rec.World,
		ChargesGranted:  rec.ChargesGranted,
		ChargesUsed:     rec.ChargesUsed,
		DurationSeconds: int(rec.Duration / time.Second),
		StartedAt:       rec.StartedAt,
		EndedAt:         rec.EndedAt,
		Cause:           string(rec.Cause),
	}

	h.cache.Add(stored.ID, stored)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.Add(ctx, stored); err != nil {
		h.logger.Error().Err(err).Str("id", stored.ID).Msg("Failed to persist session record")
	}
}

// Recent returns cached records, newest first.
func (h *History) Recent(limit int) []storage.SessionRecord {
	keys := h.cache.Keys()
	records := make([]storage.SessionRecord, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if rec, ok := h.cache.Peek(keys[i]); ok {
			records = append(records, rec)
		}
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records
}

// ByOwner reads a player's history from the persistent log.
func (h *History) ByOwner(ctx context.Context, owner string, limit int) ([]storage.SessionRecord, error) {
	return h.store.ListByOwner(ctx, owner, limit)
}

// Prune deletes persisted records older than the retention window.
func (h *History) Prune(ctx context.Context, retention time.Duration) (int, error) {
	return h.store.DeleteBefore(ctx, time.Now().Add(-retention))
}
