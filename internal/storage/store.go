package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Preferences() PreferenceStore
	SessionLog() SessionLogStore
}

// PreferenceStore manages per-player spawn preferences.
type PreferenceStore interface {
	Get(ctx context.Context, owner string) (*Preference, error)
	Upsert(ctx context.Context, pref Preference) error
	Delete(ctx context.Context, owner string) error
	List(ctx context.Context) ([]Preference, error)
}

// SessionLogStore keeps a history of completed training sessions.
type SessionLogStore interface {
	Add(ctx context.Context, rec SessionRecord) error
	ListRecent(ctx context.Context, limit int) ([]SessionRecord, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]SessionRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
