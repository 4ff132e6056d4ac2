package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/takeda/ttrain/internal/storage"
)

// parsePreference converts a Redis hash to a Preference
func parsePreference(data map[string]string) (*storage.Preference, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	charges, err := strconv.Atoi(data["charges"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse charges: %w", err)
	}

	duration, err := strconv.Atoi(data["duration_seconds"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration_seconds: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.Preference{
		Owner:           data["owner"],
		Charges:         charges,
		DurationSeconds: duration,
		UpdatedAt:       updatedAt,
	}, nil
}

// parseSessionRecord converts a Redis hash to a SessionRecord
func parseSessionRecord(data map[string]string) (*storage.SessionRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	chargesGranted, err := strconv.Atoi(data["charges_granted"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse charges_granted: %w", err)
	}

	chargesUsed, err := strconv.Atoi(data["charges_used"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse charges_used: %w", err)
	}

	duration, err := strconv.Atoi(data["duration_seconds"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration_seconds: %w", err)
	}

	startedAt, err := time.Parse(time.RFC3339Nano, data["started_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	endedAt, err := time.Parse(time.RFC3339Nano, data["ended_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse ended_at: %w", err)
	}

	return &storage.SessionRecord{
		ID:              data["id"],
		Owner:           data["owner"],
		World:           data["world"],
		ChargesGranted:  chargesGranted,
		ChargesUsed:     chargesUsed,
		DurationSeconds: duration,
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		Cause:           data["cause"],
	}, nil
}
