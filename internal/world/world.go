// Package world decides where training sessions may run.
package world

import (
	"strings"

	"github.com/takeda/ttrain/internal/config"
)

// Gate evaluates world eligibility. Disabled entries always win over
// enabled ones. An empty enabled list admits every world that is not
// disabled; a non-empty list admits only its members.
type Gate struct {
	enabled  map[string]struct{}
	disabled map[string]struct{}
	aliases  map[string]string
}

// NewGate builds a gate from configuration. Names and aliases are
// case-insensitive.
func NewGate(cfg config.WorldsConfig) *Gate {
	g := &Gate{
		enabled:  make(map[string]struct{}, len(cfg.Enabled)),
		disabled: make(map[string]struct{}, len(cfg.Disabled)),
		aliases:  make(map[string]string, len(cfg.Aliases)),
	}
	for _, name := range cfg.Enabled {
		g.enabled[normalize(name)] = struct{}{}
	}
	for _, name := range cfg.Disabled {
		g.disabled[normalize(name)] = struct{}{}
	}
	for alias, target := range cfg.Aliases {
		g.aliases[normalize(alias)] = normalize(target)
	}
	return g
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Canonical resolves an alias to its target world name. Unaliased names
// pass through normalized.
func (g *Gate) Canonical(name string) string {
	n := normalize(name)
	if target, ok := g.aliases[n]; ok {
		return target
	}
	return n
}

// Eligible reports whether sessions may start in the named world.
func (g *Gate) Eligible(name string) bool {
	n := g.Canonical(name)
	if n == "" {
		return false
	}
	if _, denied := g.disabled[n]; denied {
		return false
	}
	if len(g.enabled) == 0 {
		return true
	}
	_, ok := g.enabled[n]
	return ok
}
