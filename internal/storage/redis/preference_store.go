package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/takeda/ttrain/internal/storage"
)

type preferenceStore struct {
	client *redis.Client
}

func prefKey(owner string) string {
	return fmt.Sprintf("ttrain:pref:%s", owner)
}

const prefIndex = "ttrain:prefs"

// Get retrieves a player's preference by owner ID
func (s *preferenceStore) Get(ctx context.Context, owner string) (*storage.Preference, error) {
	data, err := s.client.HGetAll(ctx, prefKey(owner)).Result()
	if err != nil {
		return nil, err
	}
	return parsePreference(data)
}

// Upsert creates or updates a player's preference
func (s *preferenceStore) Upsert(ctx context.Context, pref storage.Preference) error {
	updatedAt := pref.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, prefKey(pref.Owner), map[string]interface{}{
		"owner":            pref.Owner,
		"charges":          pref.Charges,
		"duration_seconds": pref.DurationSeconds,
		"updated_at":       updatedAt.Format(time.RFC3339Nano),
	})
	pipe.SAdd(ctx, prefIndex, pref.Owner)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes a player's preference
func (s *preferenceStore) Delete(ctx context.Context, owner string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, prefKey(owner))
	pipe.SRem(ctx, prefIndex, owner)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns all stored preferences
func (s *preferenceStore) List(ctx context.Context) ([]storage.Preference, error) {
	owners, err := s.client.SMembers(ctx, prefIndex).Result()
	if err != nil {
		return nil, err
	}

	prefs := make([]storage.Preference, 0, len(owners))
	for _, owner := range owners {
		pref, err := s.Get(ctx, owner)
		if err == storage.ErrNotFound {
			// Index entry with expired hash, drop it
			s.client.SRem(ctx, prefIndex, owner)
			continue
		}
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, *pref)
	}
	return prefs, nil
}
