package app

import (
	"testing"

	"github.com/newthinker/argus/internal/analysis"
	"github.com/newthinker/argus/internal/backtest"
	"github.com/newthinker/argus/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func screenRecord(rows ...analysis.Analysis) core.ExecutionRecord {
	return core.ExecutionRecord{Tool: core.ToolScreen, Status: core.StatusOK, Result: &analysis.Screen{
		Results: rows,
		Errors:  []core.SymbolError{{Symbol: "ZZZZ", Code: "DATA_UNAVAILABLE", Error: "no data"}},
	}}
}

func row(sym string, conf float64, rec core.Action) analysis.Analysis {
	return analysis.Analysis{Symbol: sym, Confidence: conf, Recommendation: rec}
}

func TestPicks_PreferAnalyses(t *testing.T) {
	records := []core.ExecutionRecord{
		screenRecord(row("AAPL", 0.9, core.ActionBuy), row("MSFT", 0.7, core.ActionBuy)),
		{Tool: core.ToolAnalyze, Status: core.StatusOK, Args: map[string]any{"symbol": "TSLA"}, Result: &analysis.Analysis{Symbol: "TSLA", Confidence: 0.65, Recommendation: core.ActionBuy}},
		{Tool: core.ToolAnalyze, Status: core.StatusOK, Args: map[string]any{"symbol": "NVDA"}, Result: &analysis.Analysis{Symbol: "NVDA", Confidence: 0.8, Recommendation: core.ActionBuy}},
		{Tool: core.ToolAnalyze, Status: core.StatusOK, Args: map[string]any{"symbol": "META"}, Result: &analysis.Analysis{Symbol: "META", Confidence: 0.3, Recommendation: core.ActionSell}},
	}

	picks := Picks(records, 0.6, 3)

	require.Len(t, picks, 2)
	assert.Equal(t, "NVDA", picks[0].Symbol)
	assert.Equal(t, "TSLA", picks[1].Symbol)
	assert.Equal(t, "NVDA", FinalPick(picks).Symbol)
}

func TestPicks_FallBackToScreen(t *testing.T) {
	records := []core.ExecutionRecord{
		screenRecord(
			row("AAPL", 0.9, core.ActionBuy),
			row("MSFT", 0.7, core.ActionBuy),
			row("TSLA", 0.65, core.ActionBuy),
			row("NVDA", 0.64, core.ActionBuy),
		),
	}

	picks := Picks(records, 0.6, 3)

	require.Len(t, picks, 3)
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, []string{picks[0].Symbol, picks[1].Symbol, picks[2].Symbol})
}

func TestPicks_Empty(t *testing.T) {
	picks := Picks(nil, 0.6, 3)
	assert.Empty(t, picks)
	assert.NotNil(t, picks)
	assert.Nil(t, FinalPick(picks))
}

func TestSymbolErrors(t *testing.T) {
	records := []core.ExecutionRecord{
		screenRecord(row("AAPL", 0.9, core.ActionBuy)),
		{Tool: core.ToolBacktest, Status: core.StatusFailed, Args: map[string]any{"symbol": "MSFT"}, Code: "INSUFFICIENT_HISTORY", Reason: "short"},
		{Tool: core.ToolScreen, Status: core.StatusFailed, Code: "TOOL_FAILED", Reason: "boom"},
		{Tool: core.ToolAnalyze, Status: core.StatusDenied, Args: map[string]any{"symbol": "AAPL"}, Code: "DUPLICATE_CALL"},
	}

	errs := SymbolErrors(records)

	require.Len(t, errs, 2)
	assert.Equal(t, "ZZZZ", errs[0].Symbol)
	assert.Equal(t, "MSFT", errs[1].Symbol)
	assert.Equal(t, "INSUFFICIENT_HISTORY", errs[1].Code)
}

func TestOptimizations_RecordOrder(t *testing.T) {
	records := []core.ExecutionRecord{
		{Tool: core.ToolOptimize, Status: core.StatusOK, Result: &backtest.Optimization{Symbol: "MSFT"}},
		{Tool: core.ToolOptimize, Status: core.StatusFailed},
		{Tool: core.ToolOptimize, Status: core.StatusOK, Result: &backtest.Optimization{Symbol: "AAPL"}},
	}

	opts := Optimizations(records)

	require.Len(t, opts, 2)
	assert.Equal(t, "MSFT", opts[0].Symbol)
	assert.Equal(t, "AAPL", opts[1].Symbol)
}
