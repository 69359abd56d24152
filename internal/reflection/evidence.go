package reflection

import (
	"sort"
	"strings"

	"github.com/newthinker/argus/internal/analysis"
	"github.com/newthinker/argus/internal/backtest"
	"github.com/newthinker/argus/internal/core"
)

// Analyses returns the latest successful analysis per symbol, in the order
// symbols were first analyzed.
func Analyses(records []core.ExecutionRecord) []analysis.Analysis {
	var order []string
	latest := make(map[string]analysis.Analysis)
	for _, r := range records {
		if !r.Succeeded() || r.Tool != core.ToolAnalyze {
			continue
		}
		a, ok := r.Result.(*analysis.Analysis)
		if !ok || a == nil {
			continue
		}
		if _, seen := latest[a.Symbol]; !seen {
			order = append(order, a.Symbol)
		}
		latest[a.Symbol] = *a
	}
	out := make([]analysis.Analysis, 0, len(order))
	for _, s := range order {
		out = append(out, latest[s])
	}
	return out
}

// ScreenRows merges every successful screen, keeping the latest row per
// symbol, sorted by confidence descending.
func ScreenRows(records []core.ExecutionRecord) []analysis.Analysis {
	var order []string
	latest := make(map[string]analysis.Analysis)
	for _, r := range records {
		if !r.Succeeded() || r.Tool != core.ToolScreen {
			continue
		}
		sc, ok := r.Result.(*analysis.Screen)
		if !ok || sc == nil {
			continue
		}
		for _, row := range sc.Results {
			if _, seen := latest[row.Symbol]; !seen {
				order = append(order, row.Symbol)
			}
			latest[row.Symbol] = row
		}
	}
	out := make([]analysis.Analysis, 0, len(order))
	for _, s := range order {
		out = append(out, latest[s])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// ScreenErrors collects per-symbol failures reported by screens.
func ScreenErrors(records []core.ExecutionRecord) []core.SymbolError {
	var out []core.SymbolError
	for _, r := range records {
		if sc, ok := r.Result.(*analysis.Screen); ok && r.Succeeded() && sc != nil {
			out = append(out, sc.Errors...)
		}
	}
	return out
}

// TopScreened returns up to n screen symbols by confidence.
func TopScreened(records []core.ExecutionRecord, n int) []string {
	rows := ScreenRows(records)
	out := make([]string, 0, min(n, len(rows)))
	for _, row := range rows {
		if len(out) >= n {
			break
		}
		out = append(out, row.Symbol)
	}
	return out
}

// Backtests returns successful backtest results keyed by symbol.
func Backtests(records []core.ExecutionRecord) map[string]*backtest.Result {
	out := make(map[string]*backtest.Result)
	for _, r := range records {
		if res, ok := r.Result.(*backtest.Result); ok && r.Succeeded() && res != nil {
			out[res.Symbol] = res
		}
	}
	return out
}

// Optimizations returns successful optimizations keyed by symbol.
func Optimizations(records []core.ExecutionRecord) map[string]*backtest.Optimization {
	out := make(map[string]*backtest.Optimization)
	for _, r := range records {
		if opt, ok := r.Result.(*backtest.Optimization); ok && r.Succeeded() && opt != nil {
			out[opt.Symbol] = opt
		}
	}
	return out
}

func hasRecord(records []core.ExecutionRecord, symbol string, match func(core.ExecutionRecord) bool) bool {
	for _, r := range records {
		if strings.EqualFold(r.Symbol(), symbol) && match(r) {
			return true
		}
	}
	return false
}

func succeededTool(tools ...core.ToolName) func(core.ExecutionRecord) bool {
	return func(r core.ExecutionRecord) bool {
		if !r.Succeeded() {
			return false
		}
		for _, t := range tools {
			if r.Tool == t {
				return true
			}
		}
		return false
	}
}
