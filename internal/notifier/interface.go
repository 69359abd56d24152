package notifier

import (
	"context"
	"time"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/report"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Digest is the short summary of a finished run that notifiers deliver
type Digest struct {
	RunID      string             `json:"run_id"`
	Date       string             `json:"date"`
	Objective  string             `json:"objective"`
	Universe   []string           `json:"universe"`
	Halted     bool               `json:"halted"`
	HaltReason string             `json:"halt_reason,omitempty"`
	Picks      []core.Pick        `json:"picks"`
	FinalPick  *core.Pick         `json:"final_pick,omitempty"`
	Updated    []string           `json:"memory_updated,omitempty"` // symbols whose parameters improved
	Errors     []core.SymbolError `json:"errors,omitempty"`
	Took       time.Duration      `json:"took"`
	Disclaimer string             `json:"disclaimer"`
}

// FromRun builds the digest of run
func FromRun(run *report.Run) Digest {
	d := Digest{
		RunID:      run.ID,
		Date:       run.Date(),
		Objective:  run.Objective,
		Universe:   run.Universe,
		Halted:     run.Halted,
		HaltReason: run.HaltReason,
		Picks:      run.Picks,
		FinalPick:  run.FinalPick,
		Errors:     run.Errors,
		Took:       run.Duration(),
		Disclaimer: run.Disclaimer,
	}
	if d.Picks == nil {
		d.Picks = []core.Pick{}
	}
	for _, u := range run.MemoryUpdates {
		if u.Applied {
			d.Updated = append(d.Updated, u.Symbol)
		}
	}
	return d
}

// Notifier delivers run digests to one channel
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers one digest
	Send(ctx context.Context, digest Digest) error
}
