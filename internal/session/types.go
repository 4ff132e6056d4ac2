package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Rejection errors returned by Create. Front ends map these to the wire
// reason codes via Reason.
var (
	ErrAlreadyActive      = errors.New("session: owner already has an active session")
	ErrChargesOutOfRange  = errors.New("session: charge count out of range")
	ErrDurationOutOfRange = errors.New("session: duration out of range")
	ErrWorldDisabled      = errors.New("session: world not enabled for training")
	ErrSpawnFailed        = errors.New("session: failed to spawn opponent")
)

// Reason returns the wire reason code for a Create rejection.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyActive):
		return "already-active"
	case errors.Is(err, ErrChargesOutOfRange):
		return "out-of-range-charges"
	case errors.Is(err, ErrDurationOutOfRange):
		return "out-of-range-duration"
	case errors.Is(err, ErrWorldDisabled):
		return "world-disabled"
	case errors.Is(err, ErrSpawnFailed):
		return "spawn-failed"
	default:
		return "internal"
	}
}

// EndCause identifies which trigger ended a session.
type EndCause string

const (
	CauseExpired     EndCause = "expired"
	CauseExhausted   EndCause = "charges-exhausted"
	CauseShutdown    EndCause = "shutdown"
	CauseInvalidated EndCause = "invalidated"
	CauseForced      EndCause = "forced"
)

// NotifyKind enumerates owner notifications emitted by the engine.
type NotifyKind string

const (
	NotifySpawned    NotifyKind = "zombie-spawned"
	NotifyChargeUsed NotifyKind = "totem-used"
	NotifyComplete   NotifyKind = "training-complete"
)

// Notifier delivers fire-and-forget owner notifications. Implementations
// must not call back into the Manager.
type Notifier interface {
	Notify(owner uuid.UUID, kind NotifyKind, params map[string]string)
}

// Gate reports whether training opponents may be spawned in a world.
type Gate interface {
	Eligible(world string) bool
}

// SpawnRequest describes the opponent to place in the world.
type SpawnRequest struct {
	Owner   uuid.UUID
	World   string
	Charges int
	Label   string
}

// ActorWorld is the engine's port to the simulated world. Handles carry
// weak-reference semantics: the actor may be removed by outside forces at
// any time, and Resolve reports false once it is gone.
type ActorWorld interface {
	Spawn(req SpawnRequest) (uuid.UUID, error)
	Resolve(id uuid.UUID) (ActorHandle, bool)
}

// ActorHandle is a resolved, currently-live opponent actor.
type ActorHandle interface {
	// Equip applies armor and loads the held charge items. Called once,
	// directly after Spawn, as part of the creation transaction.
	Equip(charges int) error
	SetLabel(label string)
	StripMarkers()
	ClearHeldCharges()
	Destroy()
}

// Record summarizes a completed session for history storage.
type Record struct {
	ID             string
	Owner          uuid.UUID
	World          string
	ChargesGranted int
	ChargesUsed    int
	Duration       time.Duration
	StartedAt      time.Time
	EndedAt        time.Time
	Cause          EndCause
}

// Recorder receives completed-session records. Implementations must not
// call back into the Manager.
type Recorder interface {
	SessionEnded(rec Record)
}

// Limits are the externally supplied bounds on session parameters.
type Limits struct {
	MinCharges      int
	MaxCharges      int
	MinDuration     int
	MaxDuration     int
	DefaultCharges  int
	DefaultDuration int
}
