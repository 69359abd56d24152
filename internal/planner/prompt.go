package planner

import (
	"fmt"
	"strings"

	"github.com/newthinker/argus/internal/core"
)

var toolSignatures = map[core.ToolName]string{
	core.ToolScreen:   "screen(symbols: list[str], days: int = 365)",
	core.ToolAnalyze:  "analyze(symbol: str, days: int = 365)",
	core.ToolOptimize: "optimize_backtest(symbol: str, days: int, fast_values: list[int], slow_values: list[int], split: float = 0.7, top_k: int = 5)",
	core.ToolBacktest: "backtest(symbol: str, fast: int, slow: int, days: int = 1000)",
}

const planExample = `{
  "objective": "string",
  "steps": [
    {"tool": "screen", "args": {"symbols": ["AAPL", "MSFT"], "days": 365}},
    {"tool": "analyze", "args": {"symbol": "AAPL", "days": 365}},
    {"tool": "optimize_backtest", "args": {"symbol": "AAPL", "days": 1200, "fast_values": [10, 20, 50], "slow_values": [100, 150, 200], "split": 0.7, "top_k": 5}},
    {"tool": "backtest", "args": {"symbol": "AAPL", "fast": 10, "slow": 100, "days": 1200}}
  ]
}`

// SystemPrompt describes the planner role, the tool catalogue and the
// output format.
func SystemPrompt(req Request) string {
	tools := req.Tools
	if len(tools) == 0 {
		tools = core.KnownTools
	}
	var b strings.Builder
	b.WriteString("You are a cautious market research planner.\n")
	b.WriteString("You do not give financial advice. You only plan tool calls that gather evidence,\n")
	b.WriteString("producing a compact JSON plan to investigate a watchlist and rank candidates.\n\n")
	b.WriteString("Tools (use these exact names and args):\n")
	for _, t := range tools {
		if sig, ok := toolSignatures[t]; ok {
			b.WriteString("- " + sig + "\n")
		}
	}
	b.WriteString("\nOutput format (valid JSON only, no markdown):\n")
	b.WriteString(planExample)
	b.WriteString("\n\nConstraints:\n")
	fmt.Fprintf(&b, "- At most %d steps.\n", stepLimit(req))
	b.WriteString("- Only use the tools listed.\n")
	b.WriteString("- After screening, analyze the top 3 symbols before any backtests.\n")
	b.WriteString("- Never repeat a tool call with identical args.\n")
	return b.String()
}

// UserPrompt states the objective and run context.
func UserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\nContext:\n", req.Objective)
	fmt.Fprintf(&b, "- universe: %s\n", strings.Join(req.Universe, ", "))
	if req.Days > 0 {
		fmt.Fprintf(&b, "- days: %d\n", req.Days)
	}
	if req.ConfidenceThreshold > 0 {
		fmt.Fprintf(&b, "- confidence_threshold: %.2f\n", req.ConfidenceThreshold)
	}
	if len(req.Recent) > 0 {
		b.WriteString("- remembered best params:\n")
		for _, e := range req.Recent {
			fmt.Fprintf(&b, "  - %s fast=%d slow=%d objective=%.4f (%s)\n",
				e.Symbol, e.Params.Fast, e.Params.Slow, e.Objective, e.UpdatedAt.Format("2006-01-02"))
		}
	}
	fmt.Fprintf(&b, "Return a JSON plan (max %d steps).", stepLimit(req))
	return b.String()
}

func stepLimit(req Request) int {
	if req.MaxSteps <= 0 {
		return 6
	}
	return req.MaxSteps
}
