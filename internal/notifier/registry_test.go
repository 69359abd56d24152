package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/report"
)

type mockNotifier struct {
	name       string
	sent       []Digest
	shouldFail bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Init(cfg Config) error { return nil }

func (m *mockNotifier) Send(ctx context.Context, d Digest) error {
	m.sent = append(m.sent, d)
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	if err := r.Register(mock); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate registration should fail
	if err := r.Register(mock); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 notifier, got %d", r.Len())
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "test"})

	n, err := r.Get("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "test" {
		t.Errorf("expected name 'test', got %s", n.Name())
	}

	if _, err := r.Get("missing"); err == nil {
		t.Error("expected error for missing notifier")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "webhook"})
	r.Register(&mockNotifier{name: "email"})
	r.Register(&mockNotifier{name: "telegram"})

	names := r.Names()
	want := []string{"email", "telegram", "webhook"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()
	ok := &mockNotifier{name: "ok"}
	failing := &mockNotifier{name: "failing", shouldFail: true}
	r.Register(ok)
	r.Register(failing)

	errs := r.NotifyAll(context.Background(), Digest{RunID: "run-1"})

	if len(ok.sent) != 1 || len(failing.sent) != 1 {
		t.Errorf("every notifier should be called once, got ok=%d failing=%d", len(ok.sent), len(failing.sent))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if _, exists := errs["failing"]; !exists {
		t.Error("expected error keyed by failing notifier")
	}
}

func TestFromRun(t *testing.T) {
	start := time.Date(2024, 5, 1, 17, 30, 0, 0, time.UTC)
	pick := core.Pick{Symbol: "AAPL", Recommendation: core.ActionBuy, Confidence: 0.8}
	run := &report.Run{
		ID:         "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Objective:  "find buys",
		Universe:   []string{"AAPL", "MSFT"},
		Picks:      []core.Pick{pick},
		FinalPick:  &pick,
		MemoryUpdates: []report.MemoryUpdate{
			{Symbol: "AAPL", Applied: true},
			{Symbol: "MSFT", Applied: false},
		},
		Disclaimer: report.Disclaimer,
	}

	d := FromRun(run)

	if d.Date != "2024-05-01" {
		t.Errorf("Date = %s, want 2024-05-01", d.Date)
	}
	if d.Took != 90*time.Second {
		t.Errorf("Took = %s, want 1m30s", d.Took)
	}
	if len(d.Updated) != 1 || d.Updated[0] != "AAPL" {
		t.Errorf("Updated = %v, want [AAPL]", d.Updated)
	}
	if d.FinalPick == nil || d.FinalPick.Symbol != "AAPL" {
		t.Errorf("FinalPick = %v, want AAPL", d.FinalPick)
	}
}

func TestFromRun_NoPicks(t *testing.T) {
	d := FromRun(&report.Run{ID: "run-2"})
	if d.Picks == nil {
		t.Error("Picks should be empty, not nil")
	}
}
