package core

import (
	"encoding/json"
	"time"
)

// ToolName identifies a dispatchable tool.
type ToolName string

const (
	ToolScreen   ToolName = "screen"
	ToolAnalyze  ToolName = "analyze"
	ToolBacktest ToolName = "backtest"
	ToolOptimize ToolName = "optimize_backtest"
)

// KnownTools is the closed set of tool identifiers, in catalogue order.
var KnownTools = []ToolName{ToolScreen, ToolAnalyze, ToolOptimize, ToolBacktest}

// IsKnown reports whether the name belongs to the closed tool set.
func (t ToolName) IsKnown() bool {
	for _, k := range KnownTools {
		if k == t {
			return true
		}
	}
	return false
}

// IsAnalysis reports whether the tool produces backtest-class evidence.
func (t ToolName) IsAnalysis() bool {
	return t == ToolBacktest || t == ToolOptimize
}

// Origin tells where an intent came from.
type Origin string

const (
	OriginPlan       Origin = "plan"
	OriginFollowup   Origin = "followup"
	OriginReflection Origin = "reflection"
)

// ToolCallIntent is a proposed, not yet validated, tool call.
type ToolCallIntent struct {
	Seq    int            `json:"seq"`
	Tool   ToolName       `json:"tool"`
	Args   map[string]any `json:"args"`
	Origin Origin         `json:"origin,omitempty"`
}

// Symbol returns the "symbol" argument when it is a string.
func (i ToolCallIntent) Symbol() string {
	s, _ := i.Args["symbol"].(string)
	return s
}

// Plan is an ordered sequence of intents.
type Plan struct {
	Objective string           `json:"objective"`
	Steps     []ToolCallIntent `json:"steps"`
	// Source names where the plan came from: llm, file or fallback.
	Source string `json:"source,omitempty"`
}

// RecordStatus is the outcome of one intent.
type RecordStatus string

const (
	StatusOK     RecordStatus = "ok"
	StatusFailed RecordStatus = "failed"
	StatusDenied RecordStatus = "denied"
)

// ExecutionRecord is the append-only log entry for one intent.
type ExecutionRecord struct {
	Seq       int            `json:"seq"`
	Tool      ToolName       `json:"tool"`
	Args      map[string]any `json:"args"`
	Origin    Origin         `json:"origin"`
	Status    RecordStatus   `json:"status"`
	Result    any            `json:"result,omitempty"`
	Code      string         `json:"code,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Dispatched reports whether the call passed the guardrail and ran.
func (r ExecutionRecord) Dispatched() bool {
	return r.Status == StatusOK || r.Status == StatusFailed
}

// Succeeded reports whether the call ran without error.
func (r ExecutionRecord) Succeeded() bool {
	return r.Status == StatusOK
}

// Symbol returns the "symbol" argument when it is a string.
func (r ExecutionRecord) Symbol() string {
	s, _ := r.Args["symbol"].(string)
	return s
}

// CallKey is the canonical identity of a (tool, args) pair.
// encoding/json sorts map keys and renders 10 and 10.0 identically.
func CallKey(tool ToolName, args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return string(tool) + "|<unencodable>"
	}
	return string(tool) + "|" + string(b)
}
