package app

import (
	"sort"

	"github.com/newthinker/argus/internal/backtest"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/reflection"
)

// Picks ranks the run's recommendations. Analyses are preferred; without
// any, the top screen rows stand in. Picks below minConfidence are dropped
// and the rest are sorted by confidence, highest first.
func Picks(records []core.ExecutionRecord, minConfidence float64, fallbackTop int) []core.Pick {
	var candidates []core.Pick
	if analyses := reflection.Analyses(records); len(analyses) > 0 {
		for _, a := range analyses {
			candidates = append(candidates, a.Pick())
		}
	} else {
		rows := reflection.ScreenRows(records)
		for _, r := range rows[:min(fallbackTop, len(rows))] {
			candidates = append(candidates, r.Pick())
		}
	}

	picks := []core.Pick{}
	for _, p := range candidates {
		if p.Confidence >= minConfidence {
			picks = append(picks, p)
		}
	}
	sort.SliceStable(picks, func(i, j int) bool { return picks[i].Confidence > picks[j].Confidence })
	return picks
}

// FinalPick is the highest-confidence pick, nil when there is none.
func FinalPick(picks []core.Pick) *core.Pick {
	if len(picks) == 0 {
		return nil
	}
	p := picks[0]
	return &p
}

// SymbolErrors gathers per-symbol failures: screen errors plus failed
// records that name a symbol.
func SymbolErrors(records []core.ExecutionRecord) []core.SymbolError {
	out := reflection.ScreenErrors(records)
	for _, r := range records {
		if r.Status != core.StatusFailed || r.Symbol() == "" {
			continue
		}
		out = append(out, core.SymbolError{Symbol: r.Symbol(), Code: r.Code, Error: r.Reason})
	}
	return out
}

// Optimizations returns successful optimizations in record order.
func Optimizations(records []core.ExecutionRecord) []*backtest.Optimization {
	var out []*backtest.Optimization
	for _, r := range records {
		if opt, ok := r.Result.(*backtest.Optimization); ok && r.Succeeded() && opt != nil {
			out = append(out, opt)
		}
	}
	return out
}
