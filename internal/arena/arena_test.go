package arena

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/config"
	"github.com/takeda/ttrain/internal/session"
)

type fakeSink struct {
	mu         sync.Mutex
	connected  bool
	pushErr    error
	directives []Directive
}

func (s *fakeSink) Push(d Directive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushErr != nil {
		return s.pushErr
	}
	s.directives = append(s.directives, d)
	return nil
}

func (s *fakeSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSink) last() Directive {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.directives) == 0 {
		return Directive{}
	}
	return s.directives[len(s.directives)-1]
}

func (s *fakeSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.directives))
	for i, d := range s.directives {
		out[i] = d.Type
	}
	return out
}

func newTestWorld(sink *fakeSink) *World {
	opponent := config.OpponentConfig{
		Health:    20,
		Equipment: []string{"netherite_helmet", "netherite_chestplate"},
		Label:     "Training Zombie",
	}
	return NewWorld(opponent, sink, zerolog.Nop())
}

func TestSpawnPushesDirectiveAndMirrors(t *testing.T) {
	sink := &fakeSink{connected: true}
	w := newTestWorld(sink)
	owner := uuid.New()

	id, err := w.Spawn(session.SpawnRequest{Owner: owner, World: "arena", Charges: 3, Label: "Training Zombie"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !w.Known(id) {
		t.Fatal("expected actor to be mirrored after spawn")
	}

	d := sink.last()
	if d.Type != DirectiveSpawnActor {
		t.Fatalf("expected spawn_actor directive, got %s", d.Type)
	}
	if d.Actor != id.String() || d.Player != owner.String() || d.World != "arena" {
		t.Fatalf("unexpected directive %+v", d)
	}
	if d.Params["charges"] != "3" {
		t.Fatalf("expected charges param 3, got %q", d.Params["charges"])
	}
	if d.Params["equipment"] != "netherite_helmet,netherite_chestplate" {
		t.Fatalf("unexpected equipment param %q", d.Params["equipment"])
	}
}

func TestSpawnFailsWhenDisconnected(t *testing.T) {
	sink := &fakeSink{connected: false}
	w := newTestWorld(sink)

	if _, err := w.Spawn(session.SpawnRequest{Owner: uuid.New(), World: "arena", Charges: 1}); err == nil {
		t.Fatal("expected spawn to fail without a connected game server")
	}
}

func TestSpawnFailsWhenPushFails(t *testing.T) {
	sink := &fakeSink{connected: true, pushErr: errors.New("broken pipe")}
	w := newTestWorld(sink)

	id, err := w.Spawn(session.SpawnRequest{Owner: uuid.New(), World: "arena", Charges: 1})
	if err == nil {
		t.Fatal("expected spawn to fail when the directive cannot be pushed")
	}
	if w.Known(id) {
		t.Fatal("failed spawn must not leave a mirror record")
	}
}

func TestResolveAndInvalidate(t *testing.T) {
	sink := &fakeSink{connected: true}
	w := newTestWorld(sink)

	id, err := w.Spawn(session.SpawnRequest{Owner: uuid.New(), World: "arena", Charges: 2})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if _, ok := w.Resolve(id); !ok {
		t.Fatal("expected to resolve live actor")
	}

	if !w.Invalidate(id) {
		t.Fatal("expected invalidate to report a known actor")
	}
	if _, ok := w.Resolve(id); ok {
		t.Fatal("expected resolve to fail after invalidation")
	}
	if w.Invalidate(id) {
		t.Fatal("second invalidate must report unknown")
	}
}

func TestHandleDirectives(t *testing.T) {
	sink := &fakeSink{connected: true}
	w := newTestWorld(sink)

	id, err := w.Spawn(session.SpawnRequest{Owner: uuid.New(), World: "arena", Charges: 2})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	h, ok := w.Resolve(id)
	if !ok {
		t.Fatal("resolve failed")
	}

	if err := h.Equip(2); err != nil {
		t.Fatalf("equip: %v", err)
	}
	h.SetLabel("Training Zombie (2 totems, 59s)")
	h.StripMarkers()
	h.ClearHeldCharges()
	h.Destroy()

	want := []string{
		DirectiveSpawnActor,
		DirectiveEquipActor,
		DirectiveSetLabel,
		DirectiveStripMarkers,
		DirectiveClearOffhand,
		DirectiveRemoveActor,
	}
	got := sink.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d directives, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("directive %d = %s, want %s", i, got[i], want[i])
		}
	}

	if w.Known(id) {
		t.Fatal("destroy must drop the mirror record")
	}
}
