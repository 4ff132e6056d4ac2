// Package command implements the /train command front end.
package command

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/arena"
	"github.com/takeda/ttrain/internal/messages"
	"github.com/takeda/ttrain/internal/policy"
	"github.com/takeda/ttrain/internal/session"
	"github.com/takeda/ttrain/internal/storage"
)

const checkTimeout = 3 * time.Second

// Authorizer answers permission checks.
type Authorizer interface {
	Allow(ctx context.Context, input policy.PermissionInput) (bool, error)
}

// MenuOpener opens the spawn menu for a player.
type MenuOpener interface {
	Open(player uuid.UUID, world string)
}

// Handler parses /train invocations and starts sessions.
type Handler struct {
	limits  session.Limits
	manager *session.Manager
	auth    Authorizer
	prefs   storage.PreferenceStore
	catalog *messages.Catalog
	sink    arena.Sink
	menu    MenuOpener
	logger  zerolog.Logger
}

// NewHandler creates the command handler. menu may be nil when the spawn
// menu is disabled; prefs may be nil to always use configured defaults.
func NewHandler(limits session.Limits, manager *session.Manager, auth Authorizer, prefs storage.PreferenceStore, catalog *messages.Catalog, sink arena.Sink, menu MenuOpener, logger zerolog.Logger) *Handler {
	return &Handler{
		limits:  limits,
		manager: manager,
		auth:    auth,
		prefs:   prefs,
		catalog: catalog,
		sink:    sink,
		menu:    menu,
		logger:  logger.With().Str("component", "command").Logger(),
	}
}

// HandleCommand processes one /train invocation.
func (h *Handler) HandleCommand(player uuid.UUID, world string, args []string) {
	if !h.allowed(player, world, policy.PermUse) {
		h.respond(player, "no-permission", nil)
		return
	}

	if len(args) == 0 {
		if h.menu != nil && h.allowed(player, world, policy.PermMenu) {
			h.menu.Open(player, world)
			return
		}
		charges, duration := h.preferred(player)
		h.spawn(player, world, charges, duration)
		return
	}

	if len(args) > 2 {
		h.respond(player, "invalid-usage", nil)
		return
	}

	if len(args) == 1 && args[0] == "reset" {
		h.resetPreferences(player)
		return
	}

	charges, err := strconv.Atoi(args[0])
	if err != nil {
		h.respond(player, "invalid-number", nil)
		return
	}

	_, duration := h.preferred(player)
	if len(args) == 2 {
		duration, err = strconv.Atoi(args[1])
		if err != nil {
			h.respond(player, "invalid-number", nil)
			return
		}
	}

	h.spawn(player, world, charges, duration)
}

func (h *Handler) spawn(player uuid.UUID, world string, charges, duration int) {
	if !h.allowed(player, world, policy.PermSpawn) {
		h.respond(player, "no-permission", nil)
		return
	}

	_, err := h.manager.Create(player, world, charges, duration)
	if err != nil {
		h.respond(player, rejectKey(err), rejectParams(err, h.limits))
		return
	}
	// Success feedback comes from the engine's own spawn notification
}

func (h *Handler) resetPreferences(player uuid.UUID) {
	if h.prefs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		if err := h.prefs.Delete(ctx, player.String()); err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn().Err(err).Str("player", player.String()).Msg("Preference reset failed")
		}
	}
	h.respond(player, "preferences-reset", nil)
}

// Suggestions returns tab-completion candidates for the given argument
// position.
func (h *Handler) Suggestions(args []string) []string {
	switch len(args) {
	case 0, 1:
		max := h.limits.MaxCharges
		if max > 10 {
			max = 10
		}
		out := make([]string, 0, max+1)
		for i := h.limits.MinCharges; i <= max; i++ {
			out = append(out, strconv.Itoa(i))
		}
		return append(out, "reset")
	case 2:
		out := make([]string, 0)
		for d := h.limits.MinDuration; d <= h.limits.MaxDuration; d += 15 {
			out = append(out, strconv.Itoa(d))
		}
		return out
	}
	return nil
}

func (h *Handler) preferred(player uuid.UUID) (charges, duration int) {
	charges, duration = h.limits.DefaultCharges, h.limits.DefaultDuration
	if h.prefs == nil {
		return charges, duration
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	pref, err := h.prefs.Get(ctx, player.String())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn().Err(err).Str("player", player.String()).Msg("Preference lookup failed")
		}
		return charges, duration
	}
	return pref.Charges, pref.DurationSeconds
}

func (h *Handler) allowed(player uuid.UUID, world, permission string) bool {
	if h.auth == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	ok, err := h.auth.Allow(ctx, policy.PermissionInput{
		Player:     player.String(),
		Permission: permission,
		World:      world,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("permission", permission).Msg("Permission check failed")
		return false
	}
	return ok
}

func (h *Handler) respond(player uuid.UUID, key string, params map[string]string) {
	err := h.sink.Push(arena.Directive{
		Type:   arena.DirectiveActionBar,
		Player: player.String(),
		Params: map[string]string{"text": h.catalog.Render(key, params)},
	})
	if err != nil {
		h.logger.Debug().Err(err).Str("key", key).Msg("Response dropped")
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

func rejectParams(err error, limits session.Limits) map[string]string {
	switch {
	case errors.Is(err, session.ErrChargesOutOfRange):
		return map[string]string{
			"min": strconv.Itoa(limits.MinCharges),
			"max": strconv.Itoa(limits.MaxCharges),
		}
	case errors.Is(err, session.ErrDurationOutOfRange):
		return map[string]string{
			"min": strconv.Itoa(limits.MinDuration),
			"max": strconv.Itoa(limits.MaxDuration),
		}
	}
	return nil
}
