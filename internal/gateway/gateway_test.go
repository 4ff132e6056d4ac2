package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/arena"
	"github.com/takeda/ttrain/internal/config"
	"github.com/takeda/ttrain/internal/session"
	"github.com/takeda/ttrain/internal/storage"
)

// memSink collects directives in memory.
type memSink struct {
	mu         sync.Mutex
	connected  bool
	directives []arena.Directive
}

func (s *memSink) Push(d arena.Directive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directives = append(s.directives, d)
	return nil
}

func (s *memSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *memSink) byType(t string) []arena.Directive {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []arena.Directive
	for _, d := range s.directives {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

// memLog is an in-memory SessionLogStore.
type memLog struct {
	mu      sync.Mutex
	records []storage.SessionRecord
}

func (l *memLog) Add(ctx context.Context, rec storage.SessionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *memLog) ListRecent(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]storage.SessionRecord, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		out = append(out, l.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (l *memLog) ListByOwner(ctx context.Context, owner string, limit int) ([]storage.SessionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]storage.SessionRecord, 0)
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].Owner != owner {
			continue
		}
		out = append(out, l.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (l *memLog) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	deleted := 0
	for _, rec := range l.records {
		if rec.EndedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	l.records = kept
	return deleted, nil
}

type allowAllGate struct{}

func (allowAllGate) Eligible(string) bool { return true }

type nopNotifier struct{}

func (nopNotifier) Notify(uuid.UUID, session.NotifyKind, map[string]string) {}

// testEngine bundles a manager wired through a real arena over a memSink.
type testEngine struct {
	sink    *memSink
	world   *arena.World
	clock   *session.ManualClock
	manager *session.Manager
	history *History
	log     *memLog
}

func newTestEngine() *testEngine {
	sink := &memSink{connected: true}
	world := arena.NewWorld(config.OpponentConfig{Health: 20, Label: "Training Zombie"}, sink, zerolog.Nop())
	clock := session.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	log := &memLog{}
	history, err := NewHistory(log, 16, zerolog.Nop())
	if err != nil {
		panic(err)
	}

	cfg := session.Config{
		Limits: session.Limits{
			MinCharges:      1,
			MaxCharges:      5,
			MinDuration:     15,
			MaxDuration:     300,
			DefaultCharges:  1,
			DefaultDuration: 60,
		},
		EndOnLastCharge: true,
	}
	manager := session.NewManager(cfg, world, allowAllGate{}, nopNotifier{}, history, clock, zerolog.Nop())

	return &testEngine{
		sink:    sink,
		world:   world,
		clock:   clock,
		manager: manager,
		history: history,
		log:     log,
	}
}
