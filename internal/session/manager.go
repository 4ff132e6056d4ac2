package session

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/takeda/ttrain/internal/metrics"
)

const (
	// DefaultRefreshInterval is the period of the status refresh loop.
	DefaultRefreshInterval = time.Second

	// DefaultTeardownDelay is the short delay before tearing down a
	// session whose last charge was just consumed, so the survival
	// effect's own processing finishes first.
	DefaultTeardownDelay = 50 * time.Millisecond
)

// LabelFunc renders the opponent's status label from the remaining time
// and charge count.
type LabelFunc func(secondsLeft, charges int) string

// Config holds manager configuration.
type Config struct {
	Limits          Limits
	EndOnLastCharge bool
	RefreshInterval time.Duration
	TeardownDelay   time.Duration
	Label           LabelFunc
}

// Manager owns the owner -> active session registry and every background
// task attached to a session. All session state is mutated under mu; timer
// and signal callbacks re-resolve their session from the registry before
// touching anything, so a callback racing a teardown degrades to a no-op.
type Manager struct {
	cfg      Config
	world    ActorWorld
	gate     Gate
	notifier Notifier
	recorder Recorder
	clock    Clock
	logger   zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session // key: owner
	actors   map[uuid.UUID]uuid.UUID // key: actor ID, value: owner
}

// NewManager creates a session manager. recorder may be nil.
func NewManager(cfg Config, world ActorWorld, gate Gate, notifier Notifier, recorder Recorder, clock Clock, logger zerolog.Logger) *Manager {
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.TeardownDelay == 0 {
		cfg.TeardownDelay = DefaultTeardownDelay
	}
	if cfg.Label == nil {
		cfg.Label = func(secondsLeft, charges int) string {
			return fmt.Sprintf("Training Opponent %ds %d charges", secondsLeft, charges)
		}
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Manager{
		cfg:      cfg,
		world:    world,
		gate:     gate,
		notifier: notifier,
		recorder: recorder,
		clock:    clock,
		logger:   logger.With().Str("component", "session-manager").Logger(),
		sessions: make(map[uuid.UUID]*Session),
		actors:   make(map[uuid.UUID]uuid.UUID),
	}
}

// Create validates and starts a new training session for owner in the
// given world. Spawning the opponent, equipping it, and arming the expiry
// and refresh timers happen as one transaction: an equip failure removes
// the actor again and nothing is registered.
func (m *Manager) Create(owner uuid.UUID, world string, charges, durationSec int) (Snapshot, error) {
	lim := m.cfg.Limits
	if charges < lim.MinCharges || charges > lim.MaxCharges {
		metrics.SpawnRejections.WithLabelValues(Reason(ErrChargesOutOfRange)).Inc()
		return Snapshot{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrChargesOutOfRange, charges, lim.MinCharges, lim.MaxCharges)
	}
	if durationSec < lim.MinDuration || durationSec > lim.MaxDuration {
		metrics.SpawnRejections.WithLabelValues(Reason(ErrDurationOutOfRange)).Inc()
		return Snapshot{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrDurationOutOfRange, durationSec, lim.MinDuration, lim.MaxDuration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[owner]; exists {
		metrics.SpawnRejections.WithLabelValues(Reason(ErrAlreadyActive)).Inc()
		return Snapshot{}, ErrAlreadyActive
	}
	if !m.gate.Eligible(world) {
		metrics.SpawnRejections.WithLabelValues(Reason(ErrWorldDisabled)).Inc()
		return Snapshot{}, fmt.Errorf("%w: %q", ErrWorldDisabled, world)
	}

	duration := time.Duration(durationSec) * time.Second
	label := m.cfg.Label(durationSec, charges)

	actorID, err := m.world.Spawn(SpawnRequest{Owner: owner, World: world, Charges: charges, Label: label})
	if err != nil {
		metrics.SpawnRejections.WithLabelValues(Reason(ErrSpawnFailed)).Inc()
		return Snapshot{}, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	handle, alive := m.world.Resolve(actorID)
	if !alive {
		metrics.SpawnRejections.WithLabelValues(Reason(ErrSpawnFailed)).Inc()
		return Snapshot{}, fmt.Errorf("%w: actor vanished during creation", ErrSpawnFailed)
	}
	if err := handle.Equip(charges); err != nil {
		// Roll back the spawn; no timers have been armed yet.
		handle.Destroy()
		metrics.SpawnRejections.WithLabelValues(Reason(ErrSpawnFailed)).Inc()
		return Snapshot{}, fmt.Errorf("%w: equip: %v", ErrSpawnFailed, err)
	}

	s := &Session{
		id:             generateSessionID(),
		owner:          owner,
		actorID:        actorID,
		world:          world,
		chargesGranted: charges,
		remaining:      charges,
		duration:       duration,
		createdAt:      m.clock.Now(),
		mirror:         durationSec,
	}

	s.expire = m.clock.AfterFunc(duration, func() { m.handleExpiry(owner) })
	s.refresh = m.clock.AfterFunc(m.cfg.RefreshInterval, func() { m.refreshTick(owner) })

	m.sessions[owner] = s
	m.actors[actorID] = owner

	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Inc()

	m.notifier.Notify(owner, NotifySpawned, map[string]string{
		"totems":   strconv.Itoa(charges),
		"duration": strconv.Itoa(durationSec),
	})

	m.logger.Info().
		Str("session_id", s.id).
		Str("owner", owner.String()).
		Str("world", world).
		Int("charges", charges).
		Int("duration_seconds", durationSec).
		Msg("Started training session")

	return s.snapshot(s.createdAt), nil
}

// Get returns a snapshot of the owner's active session, if any.
func (m *Manager) Get(owner uuid.UUID) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[owner]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(m.clock.Now()), true
}

// List returns snapshots of all active sessions.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.clock.Now()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.snapshot(now))
	}
	return out
}

// OwnerOf returns the owner bound to a training opponent actor.
func (m *Manager) OwnerOf(actorID uuid.UUID) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.actors[actorID]
	return owner, ok
}

// ForceEnd administratively terminates the owner's session. It reports
// whether a session was active.
func (m *Manager) ForceEnd(owner uuid.UUID) bool {
	return m.teardown(owner, true, CauseForced)
}

// SweepAll forcibly tears down every live session. Called on shutdown.
func (m *Manager) SweepAll() {
	m.mu.RLock()
	owners := make([]uuid.UUID, 0, len(m.sessions))
	for owner := range m.sessions {
		owners = append(owners, owner)
	}
	m.mu.RUnlock()

	for _, owner := range owners {
		m.teardown(owner, true, CauseShutdown)
	}
	if len(owners) > 0 {
		m.logger.Info().Int("count", len(owners)).Msg("Swept all active training sessions")
	}
}

// HandleLethalDamage processes the pre-damage signal for a training
// opponent. If the hit would be lethal and no charges remain, the actor's
// training markers are stripped before death so generic death handling
// does not treat it as a flagged opponent. Teardown itself is not invoked
// here; it follows from actor removal.
func (m *Manager) HandleLethalDamage(actorID uuid.UUID, health, damage float64) {
	if damage <= 0 {
		return
	}

	m.mu.Lock()
	owner, ok := m.actors[actorID]
	if !ok {
		m.mu.Unlock()
		return
	}
	s := m.sessions[owner]
	if health-damage > 0 || s.remaining > 0 {
		// Survivable hit, or a charge will absorb it: the resurrection
		// signal is expected next.
		m.mu.Unlock()
		return
	}
	handle, alive := m.world.Resolve(actorID)
	m.mu.Unlock()

	if alive {
		handle.StripMarkers()
	}
	m.logger.Info().
		Str("owner", owner.String()).
		Float64("health", health).
		Float64("damage", damage).
		Msg("Opponent taking lethal damage with no charges left, stripping markers before death")
}

// HandleResurrect processes the charge-consumption signal. The return
// value reports whether the survival effect may proceed; false suppresses
// it. cancelled marks events already suppressed upstream.
func (m *Manager) HandleResurrect(actorID uuid.UUID, cancelled bool) bool {
	if cancelled {
		return false
	}

	m.mu.Lock()
	owner, ok := m.actors[actorID]
	if !ok {
		// Not a training opponent; leave the event alone.
		m.mu.Unlock()
		return true
	}
	s := m.sessions[owner]
	if s.remaining <= 0 {
		// Should not happen: the damage signal strips markers before a
		// zero-charge death. Suppress the effect defensively.
		handle, alive := m.world.Resolve(actorID)
		m.mu.Unlock()
		if alive {
			handle.StripMarkers()
		}
		m.logger.Warn().
			Str("owner", owner.String()).
			Msg("Resurrection signal for opponent with zero charges, suppressing")
		return false
	}

	remaining := s.consumeCharge()
	sid := s.id
	m.mu.Unlock()

	metrics.ChargesConsumed.Inc()
	m.notifier.Notify(owner, NotifyChargeUsed, map[string]string{
		"count": strconv.Itoa(remaining),
	})
	m.logger.Debug().
		Str("owner", owner.String()).
		Int("remaining", remaining).
		Msg("Opponent consumed a charge")

	if remaining == 0 {
		// Delay one tick so the survival effect's own processing finishes
		// before the actor is touched. The callback re-checks the session
		// id: the owner may have ended this session and started a new one
		// inside the delay window.
		if m.cfg.EndOnLastCharge {
			m.clock.AfterFunc(m.cfg.TeardownDelay, func() {
				if m.sameSession(owner, sid) {
					m.teardown(owner, true, CauseExhausted)
				}
			})
		} else {
			m.clock.AfterFunc(m.cfg.TeardownDelay, func() {
				if m.sameSession(owner, sid) {
					m.clearHeldCharges(owner)
				}
			})
		}
	}
	return true
}

// sameSession reports whether owner's registered session is still the one
// identified by id.
func (m *Manager) sameSession(owner uuid.UUID, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[owner]
	return ok && s.id == id
}

// HandleActorRemoved processes external invalidation of a training
// opponent (world unload, another plugin, manual kill).
func (m *Manager) HandleActorRemoved(actorID uuid.UUID) {
	m.mu.RLock()
	owner, ok := m.actors[actorID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	m.teardown(owner, false, CauseInvalidated)
}

// handleExpiry runs when a session's countdown elapses. The session may
// already be gone; teardown treats that as a silent no-op.
func (m *Manager) handleExpiry(owner uuid.UUID) {
	if m.teardown(owner, false, CauseExpired) {
		m.logger.Debug().Str("owner", owner.String()).Msg("Session expired")
	}
}

// refreshTick republishes the opponent's status label once per interval.
// The loop re-arms itself and self-terminates when the countdown mirror
// reaches zero, the actor is gone, or the registry no longer holds the
// session; it never depends on an external cancel as its only exit.
func (m *Manager) refreshTick(owner uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[owner]
	if !ok {
		m.mu.Unlock()
		return
	}
	handle, alive := m.world.Resolve(s.actorID)
	if !alive {
		m.mu.Unlock()
		m.logger.Debug().Str("owner", owner.String()).Msg("Opponent vanished, ending session")
		m.teardown(owner, false, CauseInvalidated)
		return
	}
	if s.mirror > 0 {
		s.mirror--
	}
	label := m.cfg.Label(s.mirror, s.remaining)
	if s.mirror > 0 {
		s.refresh = m.clock.AfterFunc(m.cfg.RefreshInterval, func() { m.refreshTick(owner) })
	}
	m.mu.Unlock()

	handle.SetLabel(label)
}

// clearHeldCharges empties the opponent's held charge items after the last
// charge was consumed with end-on-last-charge disabled. The survival
// mechanism is expected to have consumed the item already; this is a
// consistency guarantee, not a second decrement.
func (m *Manager) clearHeldCharges(owner uuid.UUID) {
	m.mu.RLock()
	s, ok := m.sessions[owner]
	var actorID uuid.UUID
	if ok {
		actorID = s.actorID
	}
	m.mu.RUnlock()
	if !ok {
		return
	}
	if handle, alive := m.world.Resolve(actorID); alive {
		handle.ClearHeldCharges()
	}
}

// teardown is the single path through which every termination trigger
// ends a session. Registry removal happens first, so signals arriving
// during the remaining steps see no active session and become no-ops;
// invoking it again for the same owner has no further effect. It reports
// whether a session was actually torn down.
func (m *Manager) teardown(owner uuid.UUID, force bool, cause EndCause) bool {
	m.mu.Lock()
	s, ok := m.sessions[owner]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, owner)
	delete(m.actors, s.actorID)

	s.expire.Stop()
	s.refresh.Stop()

	var handle ActorHandle
	if h, alive := m.world.Resolve(s.actorID); alive {
		handle = h
	}
	rec := s.record(m.clock.Now(), cause)
	m.mu.Unlock()

	if handle != nil {
		handle.StripMarkers()
		if force {
			handle.Destroy()
		}
	}

	m.notifier.Notify(owner, NotifyComplete, nil)
	if m.recorder != nil {
		m.recorder.SessionEnded(rec)
	}

	metrics.SessionsEnded.WithLabelValues(string(cause)).Inc()
	metrics.ActiveSessions.Dec()

	m.logger.Info().
		Str("session_id", s.id).
		Str("owner", owner.String()).
		Str("cause", string(cause)).
		Bool("force", force).
		Int("charges_used", rec.ChargesUsed).
		Msg("Training session ended")
	return true
}
