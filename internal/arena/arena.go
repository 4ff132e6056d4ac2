// Package arena mirrors the game-server side of training sessions. The
// daemon owns the authoritative actor records; the connected game server
// receives fire-and-forget directives and reports events back.
package arena

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/config"
	"github.com/takeda/ttrain/internal/session"
)

// Directive is an instruction pushed to the game server.
type Directive struct {
	Type   string            `json:"type"`
	Actor  string            `json:"actor,omitempty"`
	Player string            `json:"player,omitempty"`
	World  string            `json:"world,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Directive types understood by the bridge plugin.
const (
	DirectiveSpawnActor   = "spawn_actor"
	DirectiveEquipActor   = "equip_actor"
	DirectiveSetLabel     = "set_label"
	DirectiveStripMarkers = "strip_markers"
	DirectiveClearOffhand = "clear_offhand"
	DirectiveRemoveActor  = "remove_actor"
	DirectiveActionBar    = "action_bar"
	DirectivePlaySound    = "play_sound"
	DirectiveOpenMenu     = "open_menu"
	DirectiveCloseMenu    = "close_menu"
	DirectiveVerdict      = "resurrect_verdict"
)

// Sink delivers directives to the connected game server.
type Sink interface {
	Push(d Directive) error
	Connected() bool
}

type actorState struct {
	owner uuid.UUID
	world string
}

// World implements session.ActorWorld over a directive sink.
type World struct {
	opponent config.OpponentConfig
	sink     Sink
	logger   zerolog.Logger

	mu     sync.RWMutex
	actors map[uuid.UUID]*actorState
}

// NewWorld creates an arena world bound to a sink.
func NewWorld(opponent config.OpponentConfig, sink Sink, logger zerolog.Logger) *World {
	return &World{
		opponent: opponent,
		sink:     sink,
		logger:   logger.With().Str("component", "arena").Logger(),
		actors:   make(map[uuid.UUID]*actorState),
	}
}

// Spawn places a new opponent in the world and returns its actor ID.
func (w *World) Spawn(req session.SpawnRequest) (uuid.UUID, error) {
	if !w.sink.Connected() {
		return uuid.Nil, fmt.Errorf("game server not connected")
	}

	id := uuid.New()
	d := Directive{
		Type:   DirectiveSpawnActor,
		Actor:  id.String(),
		Player: req.Owner.String(),
		World:  req.World,
		Params: map[string]string{
			"label":     req.Label,
			"charges":   strconv.Itoa(req.Charges),
			"health":    strconv.FormatFloat(w.opponent.Health, 'f', -1, 64),
			"equipment": equipmentList(w.opponent.Equipment),
		},
	}
	if err := w.sink.Push(d); err != nil {
		return uuid.Nil, fmt.Errorf("push spawn directive: %w", err)
	}

	w.mu.Lock()
	w.actors[id] = &actorState{owner: req.Owner, world: req.World}
	w.mu.Unlock()

	w.logger.Debug().Str("actor", id.String()).Str("world", req.World).Msg("Actor spawned")
	return id, nil
}

// Resolve returns a handle for a live actor.
func (w *World) Resolve(id uuid.UUID) (session.ActorHandle, bool) {
	w.mu.RLock()
	_, ok := w.actors[id]
	w.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &handle{world: w, id: id}, true
}

// Invalidate drops the mirror record for an actor removed by outside
// forces. Reports whether the actor was known.
func (w *World) Invalidate(id uuid.UUID) bool {
	w.mu.Lock()
	_, ok := w.actors[id]
	delete(w.actors, id)
	w.mu.Unlock()
	return ok
}

// Known reports whether the actor is still mirrored.
func (w *World) Known(id uuid.UUID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.actors[id]
	return ok
}

func (w *World) push(d Directive) {
	if err := w.sink.Push(d); err != nil {
		w.logger.Warn().Err(err).Str("type", d.Type).Msg("Directive dropped")
	}
}

func equipmentList(items []string) string {
	return strings.Join(items, ",")
}

// handle is a weak reference to a mirrored actor. Directives for an
// actor that has since vanished are harmless on the game-server side.
type handle struct {
	world *World
	id    uuid.UUID
}

func (h *handle) Equip(charges int) error {
	if !h.world.sink.Connected() {
		return fmt.Errorf("game server not connected")
	}
	return h.world.sink.Push(Directive{
		Type:   DirectiveEquipActor,
		Actor:  h.id.String(),
		Params: map[string]string{"charges": strconv.Itoa(charges)},
	})
}

func (h *handle) SetLabel(label string) {
	h.world.push(Directive{
		Type:   DirectiveSetLabel,
		Actor:  h.id.String(),
		Params: map[string]string{"label": label},
	})
}

func (h *handle) StripMarkers() {
	h.world.push(Directive{Type: DirectiveStripMarkers, Actor: h.id.String()})
}

func (h *handle) ClearHeldCharges() {
	h.world.push(Directive{Type: DirectiveClearOffhand, Actor: h.id.String()})
}

func (h *handle) Destroy() {
	h.world.push(Directive{Type: DirectiveRemoveActor, Actor: h.id.String()})
	h.world.Invalidate(h.id)
}
