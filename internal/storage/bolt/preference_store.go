package bolt

import (
	"context"

	"github.com/takeda/ttrain/internal/storage"
	"go.etcd.io/bbolt"
)

type preferenceStore struct {
	db *bbolt.DB
}

func (s *preferenceStore) Get(ctx context.Context, owner string) (*storage.Preference, error) {
	return getBucketValue[storage.Preference](ctx, s.db, bucketPreferences, owner)
}

func (s *preferenceStore) Upsert(ctx context.Context, pref storage.Preference) error {
	return putBucketValue(ctx, s.db, bucketPreferences, pref.Owner, pref)
}

func (s *preferenceStore) Delete(ctx context.Context, owner string) error {
	return deleteBucketValue(ctx, s.db, bucketPreferences, owner)
}

func (s *preferenceStore) List(ctx context.Context) ([]storage.Preference, error) {
	return listBucket[storage.Preference](ctx, s.db, bucketPreferences)
}
