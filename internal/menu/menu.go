// Package menu drives the interactive spawn menu. The daemon keeps the
// per-player menu state; the game server renders it from directives.
package menu

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/arena"
	"github.com/takeda/ttrain/internal/config"
	"github.com/takeda/ttrain/internal/messages"
	"github.com/takeda/ttrain/internal/session"
	"github.com/takeda/ttrain/internal/storage"
)

const storeTimeout = 3 * time.Second

// state tracks one player's open menu.
type state struct {
	world    string
	charges  int
	duration int
	awaiting string // "", "totems" or "duration"
}

// Manager owns menu state and reacts to clicks and chat input.
type Manager struct {
	cfg     config.MenuConfig
	limits  session.Limits
	catalog *messages.Catalog
	sink    arena.Sink
	engine  *session.Manager
	prefs   storage.PreferenceStore
	logger  zerolog.Logger

	mu   sync.Mutex
	open map[uuid.UUID]*state
}

// NewManager creates the menu manager. prefs may be nil.
func NewManager(cfg config.MenuConfig, limits session.Limits, engine *session.Manager, prefs storage.PreferenceStore, catalog *messages.Catalog, sink arena.Sink, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		limits:  limits,
		catalog: catalog,
		sink:    sink,
		engine:  engine,
		prefs:   prefs,
		logger:  logger.With().Str("component", "menu").Logger(),
		open:    make(map[uuid.UUID]*state),
	}
}

// Open shows the menu to a player, seeded from their preferences.
func (m *Manager) Open(player uuid.UUID, world string) {
	charges, duration := m.limits.DefaultCharges, m.limits.DefaultDuration
	if m.prefs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		pref, err := m.prefs.Get(ctx, player.String())
		cancel()
		if err == nil {
			charges, duration = pref.Charges, pref.DurationSeconds
		} else if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn().Err(err).Str("player", player.String()).Msg("Preference lookup failed")
		}
	}

	m.mu.Lock()
	m.open[player] = &state{world: world, charges: charges, duration: duration}
	m.mu.Unlock()

	m.render(player)
}

// HandleClick reacts to a click in the player's open menu.
func (m *Manager) HandleClick(player uuid.UUID, world string, slot int) {
	m.mu.Lock()
	st, ok := m.open[player]
	m.mu.Unlock()
	if !ok {
		return
	}

	switch slot {
	case m.cfg.TotemSlot:
		m.setAwaiting(player, "totems")
		m.actionBar(player, "prompt-totems", nil)

	case m.cfg.DurationSlot:
		m.setAwaiting(player, "duration")
		m.actionBar(player, "prompt-duration", nil)

	case m.cfg.ConfirmSlot:
		m.confirm(player, st)

	case m.cfg.CancelSlot:
		m.close(player)
	}
}

// HandleChatInput consumes a numeric chat reply when the menu is waiting
// for one. Input while nothing is awaited is ignored.
func (m *Manager) HandleChatInput(player uuid.UUID, world string, value string) {
	m.mu.Lock()
	st, ok := m.open[player]
	if !ok || st.awaiting == "" {
		m.mu.Unlock()
		return
	}
	field := st.awaiting
	st.awaiting = ""
	m.mu.Unlock()

	n, err := strconv.Atoi(value)
	if err != nil {
		m.actionBar(player, "invalid-number", nil)
		return
	}

	switch field {
	case "totems":
		if n < m.limits.MinCharges || n > m.limits.MaxCharges {
			m.actionBar(player, "invalid-totems", map[string]string{
				"min": strconv.Itoa(m.limits.MinCharges),
				"max": strconv.Itoa(m.limits.MaxCharges),
			})
			return
		}
		m.mu.Lock()
		st.charges = n
		m.mu.Unlock()
		m.actionBar(player, "totem-count-set", map[string]string{"count": strconv.Itoa(n)})

	case "duration":
		if n < m.limits.MinDuration || n > m.limits.MaxDuration {
			m.actionBar(player, "invalid-duration", map[string]string{
				"min": strconv.Itoa(m.limits.MinDuration),
				"max": strconv.Itoa(m.limits.MaxDuration),
			})
			return
		}
		m.mu.Lock()
		st.duration = n
		m.mu.Unlock()
		m.actionBar(player, "duration-set", map[string]string{"duration": strconv.Itoa(n)})
	}

	m.render(player)
}

// Selection returns the player's current menu selection, if a menu is
// open.
func (m *Manager) Selection(player uuid.UUID) (charges, duration int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, found := m.open[player]
	if !found {
		return 0, 0, false
	}
	return st.charges, st.duration, true
}

func (m *Manager) confirm(player uuid.UUID, st *state) {
	m.mu.Lock()
	charges, duration, world := st.charges, st.duration, st.world
	m.mu.Unlock()

	m.close(player)

	if _, err := m.engine.Create(player, world, charges, duration); err != nil {
		m.actionBar(player, rejectKey(err), nil)
		return
	}

	if m.prefs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		err := m.prefs.Upsert(ctx, storage.Preference{
			Owner:           player.String(),
			Charges:         charges,
			DurationSeconds: duration,
			UpdatedAt:       time.Now(),
		})
		if err != nil {
			m.logger.Warn().Err(err).Str("player", player.String()).Msg("Preference save failed")
			return
		}
		m.actionBar(player, "preferences-saved", nil)
	}
}

func (m *Manager) close(player uuid.UUID) {
	m.mu.Lock()
	delete(m.open, player)
	m.mu.Unlock()
	m.push(arena.Directive{Type: arena.DirectiveCloseMenu, Player: player.String()})
}

func (m *Manager) setAwaiting(player uuid.UUID, field string) {
	m.mu.Lock()
	if st, ok := m.open[player]; ok {
		st.awaiting = field
	}
	m.mu.Unlock()
}

func (m *Manager) render(player uuid.UUID) {
	m.mu.Lock()
	st, ok := m.open[player]
	if !ok {
		m.mu.Unlock()
		return
	}
	charges, duration := st.charges, st.duration
	m.mu.Unlock()

	m.push(arena.Directive{
		Type:   arena.DirectiveOpenMenu,
		Player: player.String(),
		Params: map[string]string{
			"title":         m.cfg.Title,
			"rows":          strconv.Itoa(m.cfg.Rows),
			"totem_slot":    strconv.Itoa(m.cfg.TotemSlot),
			"duration_slot": strconv.Itoa(m.cfg.DurationSlot),
			"confirm_slot":  strconv.Itoa(m.cfg.ConfirmSlot),
			"cancel_slot":   strconv.Itoa(m.cfg.CancelSlot),
			"totems":        strconv.Itoa(charges),
			"duration":      strconv.Itoa(duration),
		},
	})
}

func (m *Manager) actionBar(player uuid.UUID, key string, params map[string]string) {
	m.push(arena.Directive{
		Type:   arena.DirectiveActionBar,
		Player: player.String(),
		Params: map[string]string{"text": m.catalog.Render(key, params)},
	})
}

func (m *Manager) push(d arena.Directive) {
	if err := m.sink.Push(d); err != nil {
		m.logger.Debug().Err(err).Str("type", d.Type).Msg("Menu directive dropped")
	}
}

func rejectKey(err error) string {
	switch {
	case errors.Is(err, session.ErrAlreadyActive):
		return "already-active"
	case errors.Is(err, session.ErrChargesOutOfRange):
		return "invalid-totems"
	case errors.Is(err, session.ErrDurationOutOfRange):
		return "invalid-duration"
	case errors.Is(err, session.ErrWorldDisabled):
		return "world-disabled"
	default:
		return "spawn-failed"
	}
}
