package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/takeda/ttrain/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionLogStore struct {
	db *bbolt.DB
}

func (s *sessionLogStore) Add(ctx context.Context, rec storage.SessionRecord) error {
	key, err := logKey(rec.EndedAt)
	if err != nil {
		return err
	}
	return putBucketValue(ctx, s.db, bucketSessionLog, key, rec)
}

func (s *sessionLogStore) ListRecent(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	return s.scan(ctx, limit, func(storage.SessionRecord) bool { return true })
}

func (s *sessionLogStore) ListByOwner(ctx context.Context, owner string, limit int) ([]storage.SessionRecord, error) {
	return s.scan(ctx, limit, func(rec storage.SessionRecord) bool { return rec.Owner == owner })
}

// scan walks the log newest-first. Keys sort by ended-at timestamp, so a
// reverse cursor yields records in reverse chronological order.
func (s *sessionLogStore) scan(ctx context.Context, limit int, match func(storage.SessionRecord) bool) ([]storage.SessionRecord, error) {
	records := make([]storage.SessionRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSessionLog))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var rec storage.SessionRecord
			if err := unmarshal(v, &rec); err != nil {
				return err
			}
			if !match(rec) {
				continue
			}
			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *sessionLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffKey := fmt.Sprintf("%020d", cutoff.UnixNano())
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSessionLog))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		var stale [][]byte
		for k, _ := c.First(); k != nil && string(k) < cutoffKey; k, _ = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
