package menu

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/arena"
	"github.com/takeda/ttrain/internal/config"
	"github.com/takeda/ttrain/internal/messages"
	"github.com/takeda/ttrain/internal/session"
	"github.com/takeda/ttrain/internal/storage"
)

type captureSink struct {
	mu         sync.Mutex
	directives []arena.Directive
}

func (s *captureSink) Push(d arena.Directive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directives = append(s.directives, d)
	return nil
}

func (s *captureSink) Connected() bool { return true }

func (s *captureSink) lastOfType(t string) (arena.Directive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.directives) - 1; i >= 0; i-- {
		if s.directives[i].Type == t {
			return s.directives[i], true
		}
	}
	return arena.Directive{}, false
}

type mapPrefs struct {
	mu    sync.Mutex
	prefs map[string]storage.Preference
}

func (p *mapPrefs) Get(ctx context.Context, owner string) (*storage.Preference, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pref, ok := p.prefs[owner]; ok {
		return &pref, nil
	}
	return nil, storage.ErrNotFound
}

func (p *mapPrefs) Upsert(ctx context.Context, pref storage.Preference) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs[pref.Owner] = pref
	return nil
}

func (p *mapPrefs) Delete(ctx context.Context, owner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.prefs, owner)
	return nil
}

func (p *mapPrefs) List(ctx context.Context) ([]storage.Preference, error) { return nil, nil }

type allowAllGate struct{}

func (allowAllGate) Eligible(string) bool { return true }

type nopNotifier struct{}

func (nopNotifier) Notify(uuid.UUID, session.NotifyKind, map[string]string) {}

func menuConfig() config.MenuConfig {
	return config.MenuConfig{
		Enabled:      true,
		Title:        "Training Setup",
		Rows:         3,
		TotemSlot:    11,
		DurationSlot: 13,
		ConfirmSlot:  15,
		CancelSlot:   22,
	}
}

func newFixture() (*Manager, *captureSink, *mapPrefs, *session.Manager) {
	sink := &captureSink{}
	world := arena.NewWorld(config.OpponentConfig{Health: 20, Label: "Training Zombie"}, sink, zerolog.Nop())
	clock := session.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	limits := session.Limits{
		MinCharges:      1,
		MaxCharges:      5,
		MinDuration:     15,
		MaxDuration:     300,
		DefaultCharges:  1,
		DefaultDuration: 60,
	}
	engine := session.NewManager(session.Config{Limits: limits, EndOnLastCharge: true}, world, allowAllGate{}, nopNotifier{}, nil, clock, zerolog.Nop())
	prefs := &mapPrefs{prefs: map[string]storage.Preference{}}
	catalog := messages.New(config.MessagesConfig{})

	m := NewManager(menuConfig(), limits, engine, prefs, catalog, sink, zerolog.Nop())
	return m, sink, prefs, engine
}

func TestOpenRendersMenuWithDefaults(t *testing.T) {
	m, sink, _, _ := newFixture()
	player := uuid.New()

	m.Open(player, "arena")

	d, ok := sink.lastOfType(arena.DirectiveOpenMenu)
	if !ok {
		t.Fatal("expected open_menu directive")
	}
	if d.Params["totems"] != "1" || d.Params["duration"] != "60" {
		t.Fatalf("expected defaults 1/60, got %+v", d.Params)
	}
	if d.Params["title"] != "Training Setup" || d.Params["rows"] != "3" {
		t.Fatalf("unexpected layout params %+v", d.Params)
	}
}

func TestOpenSeedsFromPreferences(t *testing.T) {
	m, sink, prefs, _ := newFixture()
	player := uuid.New()
	prefs.prefs[player.String()] = storage.Preference{Owner: player.String(), Charges: 4, DurationSeconds: 120}

	m.Open(player, "arena")

	d, _ := sink.lastOfType(arena.DirectiveOpenMenu)
	if d.Params["totems"] != "4" || d.Params["duration"] != "120" {
		t.Fatalf("expected preferred 4/120, got %+v", d.Params)
	}
}

func TestClickThenChatInputUpdatesSelection(t *testing.T) {
	m, sink, _, _ := newFixture()
	player := uuid.New()

	m.Open(player, "arena")
	m.HandleClick(player, "arena", menuConfig().TotemSlot)

	if d, ok := sink.lastOfType(arena.DirectiveActionBar); !ok || !strings.Contains(d.Params["text"], "totem count") {
		t.Fatalf("expected totem prompt, got %+v", d)
	}

	m.HandleChatInput(player, "arena", "3")

	charges, _, ok := m.Selection(player)
	if !ok || charges != 3 {
		t.Fatalf("expected selection 3, got %d (%v)", charges, ok)
	}

	d, _ := sink.lastOfType(arena.DirectiveOpenMenu)
	if d.Params["totems"] != "3" {
		t.Fatalf("expected re-render with 3 totems, got %+v", d.Params)
	}
}

func TestChatInputValidation(t *testing.T) {
	m, sink, _, _ := newFixture()
	player := uuid.New()

	m.Open(player, "arena")
	m.HandleClick(player, "arena", menuConfig().TotemSlot)
	m.HandleChatInput(player, "arena", "nine")

	if d, _ := sink.lastOfType(arena.DirectiveActionBar); d.Params["text"] != "Invalid number entered!" {
		t.Fatalf("expected invalid-number, got %+v", d.Params)
	}

	m.HandleClick(player, "arena", menuConfig().TotemSlot)
	m.HandleChatInput(player, "arena", "9")

	if d, _ := sink.lastOfType(arena.DirectiveActionBar); !strings.Contains(d.Params["text"], "between 1 and 5") {
		t.Fatalf("expected range message, got %+v", d.Params)
	}

	if charges, _, _ := m.Selection(player); charges != 1 {
		t.Fatalf("rejected input must not change selection, got %d", charges)
	}
}

func TestChatInputIgnoredWhenNotAwaiting(t *testing.T) {
	m, _, _, _ := newFixture()
	player := uuid.New()

	m.Open(player, "arena")
	m.HandleChatInput(player, "arena", "3")

	if charges, _, _ := m.Selection(player); charges != 1 {
		t.Fatalf("unsolicited input must be ignored, got %d", charges)
	}
}

func TestConfirmSpawnsAndSavesPreferences(t *testing.T) {
	m, sink, prefs, engine := newFixture()
	player := uuid.New()

	m.Open(player, "arena")
	m.HandleClick(player, "arena", menuConfig().TotemSlot)
	m.HandleChatInput(player, "arena", "3")
	m.HandleClick(player, "arena", menuConfig().ConfirmSlot)

	snap, ok := engine.Get(player)
	if !ok {
		t.Fatal("expected an active session after confirm")
	}
	if snap.ChargesGranted != 3 {
		t.Fatalf("expected 3 charges, got %d", snap.ChargesGranted)
	}

	pref, err := prefs.Get(context.Background(), player.String())
	if err != nil {
		t.Fatalf("expected saved preference: %v", err)
	}
	if pref.Charges != 3 || pref.DurationSeconds != 60 {
		t.Fatalf("unexpected preference %+v", pref)
	}

	if _, _, open := m.Selection(player); open {
		t.Fatal("menu must close on confirm")
	}
	if _, ok := sink.lastOfType(arena.DirectiveCloseMenu); !ok {
		t.Fatal("expected close_menu directive")
	}
}

func TestCancelClosesWithoutSpawning(t *testing.T) {
	m, sink, _, engine := newFixture()
	player := uuid.New()

	m.Open(player, "arena")
	m.HandleClick(player, "arena", menuConfig().CancelSlot)

	if _, ok := engine.Get(player); ok {
		t.Fatal("cancel must not spawn")
	}
	if _, _, open := m.Selection(player); open {
		t.Fatal("menu must close on cancel")
	}
	if _, ok := sink.lastOfType(arena.DirectiveCloseMenu); !ok {
		t.Fatal("expected close_menu directive")
	}
}

func TestConfirmReportsEngineRejection(t *testing.T) {
	m, sink, _, engine := newFixture()
	player := uuid.New()

	if _, err := engine.Create(player, "arena", 2, 60); err != nil {
		t.Fatalf("create: %v", err)
	}

	m.Open(player, "arena")
	m.HandleClick(player, "arena", menuConfig().ConfirmSlot)

	if d, _ := sink.lastOfType(arena.DirectiveActionBar); d.Params["text"] != "You already have an active training session!" {
		t.Fatalf("expected already-active message, got %+v", d.Params)
	}
}
