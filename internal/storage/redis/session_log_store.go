package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/takeda/ttrain/internal/storage"
)

type sessionLogStore struct {
	client *redis.Client
}

const recentList = "ttrain:sessions:recent"

func recordKey(id string) string {
	return fmt.Sprintf("ttrain:session:%s", id)
}

func ownerList(owner string) string {
	return fmt.Sprintf("ttrain:sessions:owner:%s", owner)
}

// Add stores a completed session record and updates the history indexes
func (s *sessionLogStore) Add(ctx context.Context, rec storage.SessionRecord) error {
	script := redis.NewScript(addRecordScript)

	keys := []string{recordKey(rec.ID), recentList, ownerList(rec.Owner)}
	args := []interface{}{
		rec.ID,
		rec.Owner,
		rec.World,
		rec.ChargesGranted,
		rec.ChargesUsed,
		rec.DurationSeconds,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.EndedAt.Format(time.RFC3339Nano),
		rec.Cause,
		maxRecentRecords,
		maxOwnerRecords,
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// ListRecent returns the newest records first, up to limit
func (s *sessionLogStore) ListRecent(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	return s.listFrom(ctx, recentList, limit)
}

// ListByOwner returns a single player's records, newest first
func (s *sessionLogStore) ListByOwner(ctx context.Context, owner string, limit int) ([]storage.SessionRecord, error) {
	return s.listFrom(ctx, ownerList(owner), limit)
}

func (s *sessionLogStore) listFrom(ctx context.Context, list string, limit int) ([]storage.SessionRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.LRange(ctx, list, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	records := make([]storage.SessionRecord, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.HGetAll(ctx, recordKey(id)).Result()
		if err != nil {
			return nil, err
		}
		rec, err := parseSessionRecord(data)
		if err == storage.ErrNotFound {
			// Record hash expired, skip the dangling index entry
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// DeleteBefore removes records that ended before the cutoff
func (s *sessionLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.LRange(ctx, recentList, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		data, err := s.client.HGetAll(ctx, recordKey(id)).Result()
		if err != nil {
			return deleted, err
		}
		rec, err := parseSessionRecord(data)
		if err == storage.ErrNotFound {
			s.client.LRem(ctx, recentList, 0, id)
			continue
		}
		if err != nil {
			return deleted, err
		}
		if !rec.EndedAt.Before(cutoff) {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, recordKey(id))
		pipe.LRem(ctx, recentList, 0, id)
		pipe.LRem(ctx, ownerList(rec.Owner), 0, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
