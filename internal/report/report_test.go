package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/argus/internal/analysis"
	"github.com/newthinker/argus/internal/backtest"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/reflection"
	"github.com/newthinker/argus/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(started time.Time) *Run {
	aapl := analysis.Analysis{
		Symbol:         "AAPL",
		Recommendation: core.ActionBuy,
		Confidence:     0.72,
		Signals:        analysis.Signals{Momentum: 0.8, RSI: 0.5, Trend: 1, Sentiment: 0.5, Overall: 0.72},
	}
	msft := analysis.Analysis{
		Symbol:         "MSFT",
		Recommendation: core.ActionHold,
		Confidence:     0.55,
		Signals:        analysis.Signals{Momentum: 0.6, RSI: 0.5, Trend: 0, Sentiment: 0.5, Overall: 0.55},
	}
	opt := &backtest.Optimization{
		Symbol: "AAPL",
		Split:  0.7,
		Best: backtest.Candidate{
			Params: core.StrategyParams{Fast: 20, Slow: 100},
			OS:     backtest.Summary{Sharpe: 1.1, CAGR: 0.12, MaxDrawdown: 0.2, TotalReturn: 0.3},
		},
	}
	bt := &backtest.Result{
		Strategy: "sma_cross",
		Symbol:   "AAPL",
		Params:   core.StrategyParams{Fast: 20, Slow: 100},
		Summary:  backtest.Summary{Sharpe: 0.9, CAGR: 0.1, MaxDrawdown: 0.25, WinRate: 0.52, TradeCount: 7},
	}

	pick := aapl.Pick()
	return &Run{
		ID:         "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Universe:   []string{"AAPL", "MSFT"},
		Days:       365,
		Plan:       core.Plan{Objective: "daily", Source: "fallback"},
		Records: []core.ExecutionRecord{
			{Seq: 1, Tool: core.ToolScreen, Status: core.StatusOK, Args: map[string]any{"symbols": []string{"AAPL", "MSFT"}},
				Result: &analysis.Screen{Results: []analysis.Analysis{aapl, msft}}},
			{Seq: 2, Tool: core.ToolAnalyze, Status: core.StatusOK, Args: map[string]any{"symbol": "AAPL"}, Result: &aapl},
			{Seq: 3, Tool: core.ToolOptimize, Status: core.StatusOK, Args: map[string]any{"symbol": "AAPL"}, Result: opt},
			{Seq: 4, Tool: core.ToolBacktest, Status: core.StatusOK, Args: map[string]any{"symbol": "AAPL"}, Result: bt,
				Origin: core.OriginReflection},
		},
		Reflection: reflection.Outcome{Ran: true, Targets: []string{"AAPL"},
			Actions: []reflection.Action{{Symbol: "AAPL", Kind: reflection.KindFromOptimization, Params: bt.Params, Seqs: []int{4}}}},
		Picks:      []core.Pick{pick},
		FinalPick:  &pick,
		Errors:     []core.SymbolError{{Symbol: "ZZZZ", Code: "DATA_UNAVAILABLE", Error: "no data"}},
		Disclaimer: Disclaimer,
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleRun(time.Date(2024, 5, 1, 17, 30, 0, 0, time.UTC)))

	assert.Contains(t, md, "## Top Picks")
	assert.Contains(t, md, "- **AAPL** BUY (confidence: 0.72)")
	assert.Contains(t, md, "Optimized params: fast=20, slow=100")
	assert.Contains(t, md, "Backtest 20/100: Sharpe 0.90, CAGR 10.0%")
	assert.Contains(t, md, "## Screen Leaderboard (Top 10)")
	assert.Contains(t, md, "| MSFT | HOLD | 0.55 |")
	assert.Contains(t, md, "AAPL: from_optimization 20/100")
	assert.Contains(t, md, "ZZZZ [DATA_UNAVAILABLE]")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(md), "_"+Disclaimer+"_"))
}

func TestMarkdown_NoPicks(t *testing.T) {
	run := &Run{ID: "empty", StartedAt: time.Now(), FinishedAt: time.Now(), Halted: true, HaltReason: "STEP_CAP_EXCEEDED: cap 6"}

	md := Markdown(run)

	assert.Contains(t, md, "No confident candidates today.")
	assert.Contains(t, md, "Execution halted: STEP_CAP_EXCEEDED")
	assert.NotContains(t, md, "Screen Leaderboard")
}

func TestScreenCSV(t *testing.T) {
	run := sampleRun(time.Now())

	data, err := ScreenCSV(reflection.ScreenRows(run.Records))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "symbol,recommendation,confidence,momentum,rsi,trend,sentiment,overall", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "AAPL,BUY,0.72"))

	rows, err := ParseScreenCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "MSFT", rows[1].Symbol)
	assert.Equal(t, core.ActionHold, rows[1].Recommendation)
}

func TestArchive_ExportAndRead(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	a := NewArchive(store, nil)
	ctx := context.Background()

	older := sampleRun(time.Date(2024, 4, 30, 17, 30, 0, 0, time.UTC))
	older.ID = "run-0"
	_, err = a.Export(ctx, older)
	require.NoError(t, err)

	written, err := a.Export(ctx, sampleRun(time.Date(2024, 5, 1, 17, 30, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-01/run.json", "2024-05-01/report.md", "2024-05-01/screen.csv"}, written)

	dates, err := a.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-01", "2024-04-30"}, dates)

	latest, err := a.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.ID)
	assert.Equal(t, Disclaimer, latest.Disclaimer)
	require.NotNil(t, latest.FinalPick)
	assert.Equal(t, "AAPL", latest.FinalPick.Symbol)
	assert.Len(t, latest.Records, 4)

	old, err := a.ByDate(ctx, "2024-04-30")
	require.NoError(t, err)
	assert.Equal(t, "run-0", old.ID)

	md, err := a.ReportMarkdown(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Contains(t, md, "## Top Picks")
}

func TestArchive_SkipsScreenCSVWithoutScreen(t *testing.T) {
	store, _ := archive.NewLocalFS(t.TempDir())
	a := NewArchive(store, nil)

	run := &Run{ID: "x", StartedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), Disclaimer: Disclaimer}
	written, err := a.Export(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-02/run.json", "2024-05-02/report.md"}, written)
}

func TestArchive_Missing(t *testing.T) {
	store, _ := archive.NewLocalFS(t.TempDir())
	a := NewArchive(store, nil)
	ctx := context.Background()

	_, err := a.Latest(ctx)
	assert.True(t, IsNotFound(err))

	_, err = a.ByDate(ctx, "2024-01-01")
	assert.True(t, IsNotFound(err))

	_, err = a.ByDate(ctx, "yesterday")
	assert.Error(t, err)
	assert.False(t, IsNotFound(err))
}
