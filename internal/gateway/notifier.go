package gateway

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/arena"
	"github.com/takeda/ttrain/internal/config"
	"github.com/takeda/ttrain/internal/messages"
	"github.com/takeda/ttrain/internal/session"
)

// Notifier renders engine notifications as action-bar directives, with
// an optional sound cue per notification kind.
type Notifier struct {
	sink    arena.Sink
	catalog *messages.Catalog
	sounds  config.SoundsConfig
	logger  zerolog.Logger
}

// NewNotifier creates a notifier over the bridge sink.
func NewNotifier(sink arena.Sink, catalog *messages.Catalog, sounds config.SoundsConfig, logger zerolog.Logger) *Notifier {
	return &Notifier{
		sink:    sink,
		catalog: catalog,
		sounds:  sounds,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Notify implements session.Notifier. Delivery is best effort; a
// disconnected bridge drops the notification.
func (n *Notifier) Notify(owner uuid.UUID, kind session.NotifyKind, params map[string]string) {
	text := n.catalog.Render(string(kind), params)
	err := n.sink.Push(arena.Directive{
		Type:   arena.DirectiveActionBar,
		Player: owner.String(),
		Params: map[string]string{"text": text},
	})
	if err != nil {
		n.logger.Debug().Err(err).Str("kind", string(kind)).Msg("Notification dropped")
		return
	}

	if sound := n.soundFor(kind); sound != "" {
		_ = n.sink.Push(arena.Directive{
			Type:   arena.DirectivePlaySound,
			Player: owner.String(),
			Params: map[string]string{"sound": sound},
		})
	}
}

func (n *Notifier) soundFor(kind session.NotifyKind) string {
	if !n.sounds.Enabled {
		return ""
	}
	switch kind {
	case session.NotifySpawned:
		return n.sounds.Spawn
	case session.NotifyChargeUsed:
		return n.sounds.TotemUse
	case session.NotifyComplete:
		return n.sounds.Complete
	}
	return ""
}
