package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/newthinker/argus/internal/analysis"
	"github.com/newthinker/argus/internal/reflection"
)

const leaderboardSize = 10

// Markdown renders the human-readable summary of a run.
func Markdown(run *Run) string {
	analyses := make(map[string]analysis.Analysis)
	for _, a := range reflection.Analyses(run.Records) {
		analyses[a.Symbol] = a
	}
	optimizations := reflection.Optimizations(run.Records)
	backtests := reflection.Backtests(run.Records)
	screen := reflection.ScreenRows(run.Records)

	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Market Research\n")
	fmt.Fprintf(&b, "**Date:** %s\n\n", run.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Run: `%s` | Plan: %s | Universe size: **%d**\n", run.ID, orDash(run.Plan.Source), len(run.Universe))
	if run.Halted {
		fmt.Fprintf(&b, "\n> Execution halted: %s\n", run.HaltReason)
	}

	b.WriteString("\n## Top Picks\n")
	if len(run.Picks) == 0 {
		b.WriteString("- No confident candidates today.\n")
	}
	for _, p := range run.Picks {
		fmt.Fprintf(&b, "- **%s** %s (confidence: %s)\n", p.Symbol, p.Recommendation, num(p.Confidence))
		if a, ok := analyses[p.Symbol]; ok {
			s := a.Signals
			fmt.Fprintf(&b, "  - Signals: momentum %s, rsi %s, trend %s, sentiment %s, overall %s\n",
				num(s.Momentum), num(s.RSI), num(s.Trend), num(s.Sentiment), num(s.Overall))
		}
		if opt, ok := optimizations[p.Symbol]; ok {
			oos := opt.Best.OS
			fmt.Fprintf(&b, "  - Optimized params: fast=%d, slow=%d (OS Sharpe %s, OS CAGR %s, OS MaxDD %s)\n",
				opt.Best.Params.Fast, opt.Best.Params.Slow, num(oos.Sharpe), pct(oos.CAGR), pct(oos.MaxDrawdown))
		}
		if bt, ok := backtests[p.Symbol]; ok {
			s := bt.Summary
			fmt.Fprintf(&b, "  - Backtest %s: Sharpe %s, CAGR %s, MaxDD %s, WinRate %s, trades %d\n",
				bt.Params, num(s.Sharpe), pct(s.CAGR), pct(s.MaxDrawdown), pct(s.WinRate), s.TradeCount)
		}
	}
	if run.FinalPick != nil {
		fmt.Fprintf(&b, "\n**Final pick:** %s %s\n", run.FinalPick.Symbol, run.FinalPick.Recommendation)
	}

	if len(screen) > 0 {
		b.WriteString("\n## Screen Leaderboard (Top 10)\n")
		b.WriteString("| Symbol | Rec | Confidence | Momentum | Trend | Sentiment | Overall |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
		for _, r := range screen[:min(leaderboardSize, len(screen))] {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				r.Symbol, r.Recommendation, num(r.Confidence), num(r.Signals.Momentum),
				num(r.Signals.Trend), num(r.Signals.Sentiment), num(r.Signals.Overall))
		}
	}

	if len(run.Reflection.Actions) > 0 {
		b.WriteString("\n## Reflection\n")
		for _, a := range run.Reflection.Actions {
			line := fmt.Sprintf("- %s: %s %s", a.Symbol, a.Kind, a.Params)
			if a.Error != "" {
				line += " (" + a.Error + ")"
			}
			b.WriteString(line + "\n")
		}
	}

	if len(run.Errors) > 0 {
		b.WriteString("\n## Errors\n")
		for _, e := range run.Errors {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", e.Symbol, e.Code, e.Error)
		}
	}

	fmt.Fprintf(&b, "\n## Notes\nCompleted in %s.\n_%s_\n", run.Duration().Round(time.Millisecond), Disclaimer)
	return b.String()
}

func num(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", x)
}

func pct(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", x*100)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
