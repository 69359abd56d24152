// Package reflection implements the single corrective pass that runs after
// the plan: it makes sure the symbols under evaluation end up with
// backtest evidence, reusing remembered parameters where it can.
package reflection

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/argus/internal/backtest"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/memory"
	"github.com/newthinker/argus/internal/metrics"
	"go.uber.org/zap"
)

// Session is the part of an executor session the policy drives.
type Session interface {
	Step(ctx context.Context, intent core.ToolCallIntent) core.ExecutionRecord
	Records() []core.ExecutionRecord
	// BeginReflection reports false once a pass has started on the session.
	BeginReflection() bool
}

// MemoryReader looks up remembered parameters
type MemoryReader interface {
	Get(ctx context.Context, symbol string) (memory.Entry, bool, error)
}

// Action kinds
const (
	KindMemory           = "memory"
	KindOptimize         = "optimize"
	KindFromOptimization = "from_optimization"
	KindFallback         = "fallback"
)

// Config controls the pass.
type Config struct {
	// MaxAge bounds how old a memory entry may be to be reused; 0 never expires.
	MaxAge time.Duration
	// TopN is the number of symbols evaluated.
	TopN int
	// FollowUpTop is the number of screen leaders analyzed after the plan.
	FollowUpTop int
	// Days is the minimum lookback for synthesized backtests.
	Days int

	FastValues []int
	SlowValues []int
	Split      float64
	TopK       int
	Fallback   core.StrategyParams
}

// DefaultConfig returns the default optimization grid and limits.
func DefaultConfig() Config {
	return Config{
		TopN:        1,
		FollowUpTop: 3,
		Days:        1200,
		FastValues:  []int{10, 20, 50},
		SlowValues:  []int{100, 150, 200, 250},
		Split:       0.7,
		TopK:        5,
		Fallback:    core.StrategyParams{Fast: 50, Slow: 200},
	}
}

// Action is one corrective decision for a symbol.
type Action struct {
	Symbol string              `json:"symbol"`
	Kind   string              `json:"kind"`
	Params core.StrategyParams `json:"params"`
	Seqs   []int               `json:"seqs,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// Outcome summarizes the pass for the run record.
type Outcome struct {
	Ran     bool     `json:"ran"`
	Reason  string   `json:"reason,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Policy synthesizes follow-up and corrective tool calls.
type Policy struct {
	cfg     Config
	memory  MemoryReader
	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Policy
type Option func(*Policy)

// WithMetrics counts reflection fallbacks by kind
func WithMetrics(m *metrics.Registry) Option {
	return func(p *Policy) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides time.Now for staleness checks
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// New creates a policy. mem may be nil, in which case nothing is reused.
func New(cfg Config, mem MemoryReader, opts ...Option) *Policy {
	p := &Policy{cfg: cfg, memory: mem, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FollowUp analyzes the top screen symbols that no analyze call has
// covered yet. It returns the records it produced.
func (p *Policy) FollowUp(ctx context.Context, s Session, days int) []core.ExecutionRecord {
	if p.cfg.FollowUpTop <= 0 {
		return nil
	}
	var out []core.ExecutionRecord
	for _, sym := range TopScreened(s.Records(), p.cfg.FollowUpTop) {
		if hasRecord(s.Records(), sym, func(r core.ExecutionRecord) bool {
			return r.Tool == core.ToolAnalyze && r.Dispatched()
		}) {
			continue
		}
		args := map[string]any{"symbol": sym}
		if days > 0 {
			args["days"] = days
		}
		rec := s.Step(ctx, core.ToolCallIntent{Tool: core.ToolAnalyze, Args: args, Origin: core.OriginFollowup})
		out = append(out, rec)
		if rec.Status == core.StatusDenied {
			break
		}
		p.logger.Info("auto-analyzed", zap.String("symbol", sym), zap.String("status", string(rec.Status)))
	}
	return out
}

// Targets returns the symbols under evaluation: the most confident
// analyses, else the screen leaders.
func (p *Policy) Targets(records []core.ExecutionRecord) []string {
	n := max(p.cfg.TopN, 1)
	analyses := Analyses(records)
	if len(analyses) == 0 {
		return TopScreened(records, n)
	}
	sort.SliceStable(analyses, func(i, j int) bool { return analyses[i].Confidence > analyses[j].Confidence })
	out := make([]string, 0, n)
	for _, a := range analyses {
		if len(out) >= n {
			break
		}
		out = append(out, a.Symbol)
	}
	return out
}

// Reflect runs the corrective pass once per session. All synthesized
// calls go through s and are subject to the guardrail.
func (p *Policy) Reflect(ctx context.Context, s Session, days int) Outcome {
	if !s.BeginReflection() {
		return Outcome{Reason: "already reflected"}
	}
	records := s.Records()

	targets := p.Targets(records)
	if len(targets) == 0 {
		return Outcome{Reason: "no symbols under evaluation"}
	}
	out := Outcome{Ran: true, Targets: targets}
	days = max(days, p.cfg.Days)

	for _, sym := range targets {
		if ctx.Err() != nil {
			break
		}
		act, denied := p.reflectSymbol(ctx, s, sym, days)
		if act != nil {
			out.Actions = append(out.Actions, *act)
			p.metrics.RecordReflection(act.Kind)
		}
		if denied {
			return out
		}
	}

	if p.needsFallback(ctx, s.Records(), targets[0], days) {
		sym := targets[0]
		act := Action{Symbol: sym, Kind: KindFallback, Params: p.cfg.Fallback}
		rec := p.backtest(ctx, s, sym, p.cfg.Fallback, days)
		act.Seqs = append(act.Seqs, rec.Seq)
		if !rec.Succeeded() {
			act.Error = rec.Reason
		}
		out.Actions = append(out.Actions, act)
		p.metrics.RecordReflection(KindFallback)
	}
	return out
}

// reflectSymbol returns nil when the symbol already has backtest evidence.
func (p *Policy) reflectSymbol(ctx context.Context, s Session, sym string, days int) (*Action, bool) {
	records := s.Records()
	log := p.logger.With(zap.String("symbol", sym))

	if hasRecord(records, sym, succeededTool(core.ToolBacktest)) {
		return nil, false
	}
	if hasRecord(records, sym, succeededTool(core.ToolOptimize)) {
		opt := findOptimization(records, sym)
		if opt == nil {
			return nil, false
		}
		act := &Action{Symbol: sym, Kind: KindFromOptimization, Params: opt.Best.Params}
		rec := p.backtest(ctx, s, sym, opt.Best.Params, days)
		return finish(act, log, rec)
	}

	if params, ok := p.remembered(ctx, sym); ok {
		act := &Action{Symbol: sym, Kind: KindMemory, Params: params}
		rec := p.backtest(ctx, s, sym, params, days)
		return finish(act, log, rec)
	}

	act := &Action{Symbol: sym, Kind: KindOptimize}
	rec := s.Step(ctx, core.ToolCallIntent{
		Tool: core.ToolOptimize,
		Args: map[string]any{
			"symbol":      sym,
			"fast_values": slices.Clone(p.cfg.FastValues),
			"slow_values": slices.Clone(p.cfg.SlowValues),
			"split":       p.cfg.Split,
			"top_k":       p.cfg.TopK,
			"days":        days,
		},
		Origin: core.OriginReflection,
	})
	act.Seqs = append(act.Seqs, rec.Seq)
	opt, ok := rec.Result.(*backtest.Optimization)
	if !rec.Succeeded() || !ok || opt == nil {
		act.Error = rec.Reason
		log.Warn("reflection optimize failed", zap.String("code", rec.Code), zap.String("reason", rec.Reason))
		return act, rec.Status == core.StatusDenied
	}
	act.Params = opt.Best.Params
	rec = p.backtest(ctx, s, sym, opt.Best.Params, days)
	return finish(act, log, rec)
}

// needsFallback is true when no backtest succeeded and the fallback call
// would not repeat an earlier call.
func (p *Policy) needsFallback(ctx context.Context, records []core.ExecutionRecord, sym string, days int) bool {
	if ctx.Err() != nil || len(Backtests(records)) > 0 {
		return false
	}
	key := core.CallKey(core.ToolBacktest, backtestArgs(sym, p.cfg.Fallback, days))
	for _, r := range records {
		if r.Dispatched() && core.CallKey(r.Tool, r.Args) == key {
			return false
		}
	}
	return true
}

func (p *Policy) remembered(ctx context.Context, sym string) (core.StrategyParams, bool) {
	if p.memory == nil {
		return core.StrategyParams{}, false
	}
	entry, ok, err := p.memory.Get(ctx, sym)
	if err != nil {
		p.logger.Warn("memory lookup failed", zap.String("symbol", sym), zap.Error(err))
		return core.StrategyParams{}, false
	}
	if !ok || entry.Stale(p.now(), p.cfg.MaxAge) {
		return core.StrategyParams{}, false
	}
	if entry.Params.Validate() != nil {
		return core.StrategyParams{}, false
	}
	return entry.Params, true
}

func (p *Policy) backtest(ctx context.Context, s Session, sym string, params core.StrategyParams, days int) core.ExecutionRecord {
	return s.Step(ctx, core.ToolCallIntent{
		Tool:   core.ToolBacktest,
		Args:   backtestArgs(sym, params, days),
		Origin: core.OriginReflection,
	})
}

func backtestArgs(sym string, params core.StrategyParams, days int) map[string]any {
	return map[string]any{
		"symbol": sym,
		"fast":   params.Fast,
		"slow":   params.Slow,
		"days":   days,
	}
}

func finish(act *Action, log *zap.Logger, rec core.ExecutionRecord) (*Action, bool) {
	act.Seqs = append(act.Seqs, rec.Seq)
	if !rec.Succeeded() {
		act.Error = rec.Reason
		log.Warn("reflection backtest failed", zap.String("kind", act.Kind), zap.String("code", rec.Code))
	} else {
		log.Info("reflection backtest", zap.String("kind", act.Kind), zap.String("params", act.Params.String()))
	}
	return act, rec.Status == core.StatusDenied
}

func findOptimization(records []core.ExecutionRecord, sym string) *backtest.Optimization {
	for i := len(records) - 1; i >= 0; i-- {
		if opt, ok := records[i].Result.(*backtest.Optimization); ok && records[i].Succeeded() && opt != nil && strings.EqualFold(opt.Symbol, sym) {
			return opt
		}
	}
	return nil
}
