package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is the live state binding one owner to one spawned training
// opponent. All fields are guarded by the Manager mutex; the struct is
// never handed out, only Snapshot copies.
type Session struct {
	id             string
	owner          uuid.UUID
	actorID        uuid.UUID
	world          string
	chargesGranted int
	remaining      int
	duration       time.Duration
	createdAt      time.Time

	// mirror is the presentation-only countdown driven by the refresh
	// loop. It may drift from the authoritative expiry timer by up to one
	// tick; it only ever feeds the actor label, never a decision.
	mirror int

	expire  Timer
	refresh Timer
}

// consumeCharge spends one charge and returns the new remaining count.
// At zero it is a no-op and returns zero.
func (s *Session) consumeCharge() int {
	if s.remaining > 0 {
		s.remaining--
	}
	return s.remaining
}

// Snapshot is a read-only copy of session state for front ends.
type Snapshot struct {
	ID               string    `json:"id"`
	Owner            uuid.UUID `json:"owner"`
	ActorID          uuid.UUID `json:"actor_id"`
	World            string    `json:"world"`
	ChargesGranted   int       `json:"charges_granted"`
	ChargesRemaining int       `json:"charges_remaining"`
	DurationSeconds  int       `json:"duration_seconds"`
	TimeRemaining    int       `json:"time_remaining_seconds"`
	StartedAt        time.Time `json:"started_at"`
}

func (s *Session) snapshot(now time.Time) Snapshot {
	left := s.duration - now.Sub(s.createdAt)
	if left < 0 {
		left = 0
	}
	return Snapshot{
		ID:               s.id,
		Owner:            s.owner,
		ActorID:          s.actorID,
		World:            s.world,
		ChargesGranted:   s.chargesGranted,
		ChargesRemaining: s.remaining,
		DurationSeconds:  int(s.duration / time.Second),
		TimeRemaining:    int(left / time.Second),
		StartedAt:        s.createdAt,
	}
}

func (s *Session) record(endedAt time.Time, cause EndCause) Record {
	return Record{
		ID:             s.id,
		Owner:          s.owner,
		World:          s.world,
		ChargesGranted: s.chargesGranted,
		ChargesUsed:    s.chargesGranted - s.remaining,
		Duration:       s.duration,
		StartedAt:      s.createdAt,
		EndedAt:        endedAt,
		Cause:          cause,
	}
}

// generateSessionID generates a unique session ID.
func generateSessionID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// This should never happen with a working system RNG
		panic(fmt.Sprintf("failed to generate random session ID: %v", err))
	}
	return hex.EncodeToString(bytes)
}
