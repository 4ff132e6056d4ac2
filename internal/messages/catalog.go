// Package messages renders player-facing text from a keyed catalog with
// {placeholder} templating.
package messages

import (
	"strings"

	"github.com/takeda/ttrain/internal/config"
)

// Built-in catalog. Config overrides replace entries by key.
var defaults = map[string]string{
	"zombie-spawned":    "Zombie spawned: {totems} totems, {duration}s duration!",
	"totem-used":        "Zombie used totem! {count} left.",
	"training-complete": "Training session ended!",

	"already-active":   "You already have an active training session!",
	"world-disabled":   "Training is disabled in this world!",
	"spawn-failed":     "Could not spawn the training zombie!",
	"invalid-totems":   "Totem count must be between {min} and {max}!",
	"invalid-duration": "Duration must be between {min}s and {max}s!",

	"no-permission":     "You lack permission!",
	"invalid-number":    "Invalid number entered!",
	"invalid-usage":     "Invalid usage! Use: /train [totems] [duration]",
	"player-only":       "This command can only be used by players!",
	"menu-error":        "Menu error! (Check server log)",
	"preferences-saved": "Preferences saved!",
	"preferences-reset": "Settings reset to defaults!",
	"totem-count-set":   "Totem count set to {count}!",
	"duration-set":      "Duration set to {duration}s!",

	"prompt-totems":   "Enter the totem count in chat:",
	"prompt-duration": "Enter the duration in seconds in chat:",

	"label-countdown": "Training Zombie ({totems} totems, {seconds}s)",
}

// Catalog resolves message keys to rendered text.
type Catalog struct {
	prefix  string
	entries map[string]string
}

// New builds a catalog from the built-in defaults and config overrides.
func New(cfg config.MessagesConfig) *Catalog {
	entries := make(map[string]string, len(defaults))
	for key, text := range defaults {
		entries[key] = text
	}
	for key, text := range cfg.Overrides {
		entries[key] = text
	}
	return &Catalog{prefix: cfg.Prefix, entries: entries}
}

// Render substitutes params into the keyed template. Unknown keys render
// as the key itself so a missing entry is visible rather than silent.
func (c *Catalog) Render(key string, params map[string]string) string {
	text, ok := c.entries[key]
	if !ok {
		return key
	}
	for name, value := range params {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

// RenderChat renders a template with the configured chat prefix.
func (c *Catalog) RenderChat(key string, params map[string]string) string {
	return c.prefix + c.Render(key, params)
}

// Has reports whether the catalog contains the key.
func (c *Catalog) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}
