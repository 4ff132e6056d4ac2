package storage

import "time"

// Preference holds a player's remembered spawn settings.
type Preference struct {
	Owner           string    `json:"owner"`
	Charges         int       `json:"charges"`
	DurationSeconds int       `json:"duration_seconds"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SessionRecord is a completed training session as written to history.
type SessionRecord struct {
	ID              string    `json:"id"`
	Owner           string    `json:"owner"`
	World           string    `json:"world"`
	ChargesGranted  int       `json:"charges_granted"`
	ChargesUsed     int       `json:"charges_used"`
	DurationSeconds int       `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	Cause           string    `json:"cause"`
}
