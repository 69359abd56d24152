// Package report renders a finished run into archive storage and reads
// archived runs back.
package report

import (
	"time"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/reflection"
)

// Disclaimer is attached to every run and report
const Disclaimer = "Educational demo only — not financial advice."

// MemoryUpdate records one attempted memory upsert
type MemoryUpdate struct {
	Symbol    string              `json:"symbol"`
	Params    core.StrategyParams `json:"params"`
	Objective float64             `json:"objective"`
	Applied   bool                `json:"applied"`
	Error     string              `json:"error,omitempty"`
}

// Run is the outcome of one decision run
type Run struct {
	ID            string                 `json:"id"`
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
	Objective     string                 `json:"objective"`
	Universe      []string               `json:"universe"`
	Days          int                    `json:"days"`
	Plan          core.Plan              `json:"plan"`
	Records       []core.ExecutionRecord `json:"records"`
	Halted        bool                   `json:"halted"`
	HaltReason    string                 `json:"halt_reason,omitempty"`
	Reflection    reflection.Outcome     `json:"reflection"`
	Picks         []core.Pick            `json:"picks"`
	FinalPick     *core.Pick             `json:"final_pick,omitempty"`
	MemoryUpdates []MemoryUpdate         `json:"memory_updates,omitempty"`
	Errors        []core.SymbolError     `json:"errors,omitempty"`
	Disclaimer    string                 `json:"disclaimer"`
}

// Date is the archive directory of the run, YYYY-MM-DD.
func (r *Run) Date() string {
	return r.StartedAt.Format(time.DateOnly)
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
