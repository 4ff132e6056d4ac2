package gateway

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/arena"
	"github.com/takeda/ttrain/internal/session"
)

// Event is a game occurrence reported by the bridge plugin.
type Event struct {
	Type      string   `json:"type"`
	Actor     string   `json:"actor,omitempty"`
	Player    string   `json:"player,omitempty"`
	World     string   `json:"world,omitempty"`
	Health    float64  `json:"health,omitempty"`
	Damage    float64  `json:"damage,omitempty"`
	Cancelled bool     `json:"cancelled,omitempty"`
	Slot      int      `json:"slot,omitempty"`
	Value     string   `json:"value,omitempty"`
	Args      []string `json:"args,omitempty"`
}

// Event types reported by the bridge plugin.
const (
	EventDamage       = "damage"
	EventResurrect    = "resurrect"
	EventActorRemoved = "actor_removed"
	EventCommand      = "command"
	EventMenuClick    = "menu_click"
	EventChatInput    = "chat_input"
)

// CommandHandler receives /train invocations.
type CommandHandler interface {
	HandleCommand(player uuid.UUID, world string, args []string)
}

// MenuHandler receives spawn menu interactions.
type MenuHandler interface {
	HandleClick(player uuid.UUID, world string, slot int)
	HandleChatInput(player uuid.UUID, world string, value string)
}

// Dispatcher routes bridge events to the engine.
type Dispatcher struct {
	manager  *session.Manager
	world    *arena.World
	sink     arena.Sink
	commands CommandHandler
	menus    MenuHandler
	logger   zerolog.Logger
}

// NewDispatcher wires event routing.
func NewDispatcher(manager *session.Manager, world *arena.World, sink arena.Sink, commands CommandHandler, menus MenuHandler, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		manager:  manager,
		world:    world,
		sink:     sink,
		commands: commands,
		menus:    menus,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch handles one event.
func (d *Dispatcher) Dispatch(ev Event) {
	switch ev.Type {
	case EventDamage:
		actor, ok := parseID(ev.Actor)
		if !ok {
			d.logger.Warn().Str("actor", ev.Actor).Msg("Damage event with bad actor ID")
			return
		}
		d.manager.HandleLethalDamage(actor, ev.Health, ev.Damage)

	case EventResurrect:
		actor, ok := parseID(ev.Actor)
		if !ok {
			d.logger.Warn().Str("actor", ev.Actor).Msg("Resurrect event with bad actor ID")
			return
		}
		allow := d.manager.HandleResurrect(actor, ev.Cancelled)
		d.pushVerdict(ev.Actor, allow)

	case EventActorRemoved:
		actor, ok := parseID(ev.Actor)
		if !ok {
			return
		}
		d.world.Invalidate(actor)
		d.manager.HandleActorRemoved(actor)

	case EventCommand:
		player, ok := parseID(ev.Player)
		if !ok {
			d.logger.Warn().Str("player", ev.Player).Msg("Command event with bad player ID")
			return
		}
		if d.commands != nil {
			d.commands.HandleCommand(player, ev.World, ev.Args)
		}

	case EventMenuClick:
		player, ok := parseID(ev.Player)
		if !ok {
			return
		}
		if d.menus != nil {
			d.menus.HandleClick(player, ev.World, ev.Slot)
		}

	case EventChatInput:
		player, ok := parseID(ev.Player)
		if !ok {
			return
		}
		if d.menus != nil {
			d.menus.HandleChatInput(player, ev.World, ev.Value)
		}

	default:
		d.logger.Debug().Str("type", ev.Type).Msg("Unhandled event type")
	}
}

func (d *Dispatcher) pushVerdict(actor string, allow bool) {
	err := d.sink.Push(arena.Directive{
		Type:   arena.DirectiveVerdict,
		Actor:  actor,
		Params: map[string]string{"allow": strconv.FormatBool(allow)},
	})
	if err != nil {
		d.logger.Warn().Err(err).Msg("Verdict directive dropped")
	}
}

func parseID(s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
