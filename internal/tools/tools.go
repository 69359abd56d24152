// Package tools binds the analysis and backtest services to the closed
// tool dispatch table. Each tool decodes its flat argument map into a
// typed struct, fills defaults and returns a structured result.
package tools

import (
	"context"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/newthinker/argus/internal/analysis"
	"github.com/newthinker/argus/internal/backtest"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/executor"
	"github.com/newthinker/argus/internal/strategy/ma_crossover"
	"go.uber.org/zap"
)

// Analyzer scores symbols
type Analyzer interface {
	Analyze(ctx context.Context, symbol string, days int) (*analysis.Analysis, error)
	Screen(ctx context.Context, symbols []string, days int) (*analysis.Screen, error)
}

// Backtester runs single backtests and grid optimizations
type Backtester interface {
	Run(ctx context.Context, symbol string, days int, strategyName string, params core.StrategyParams) (*backtest.Result, error)
	Optimize(ctx context.Context, symbol string, days int, req backtest.OptimizeRequest) (*backtest.Optimization, error)
}

// Settings holds the values used when a call omits an argument.
type Settings struct {
	Universe     []string
	Days         int
	BacktestDays int
	OptimizeDays int
	Strategy     string
	Params       core.StrategyParams
	FastValues   []int
	SlowValues   []int
	Split        float64
	TopK         int
}

// DefaultSettings mirrors the default optimization grid.
func DefaultSettings() Settings {
	return Settings{
		Days:         365,
		BacktestDays: 1000,
		OptimizeDays: 1200,
		Strategy:     ma_crossover.Name,
		Params:       core.StrategyParams{Fast: 50, Slow: 200},
		FastValues:   []int{10, 20, 50},
		SlowValues:   []int{100, 150, 200, 250},
		Split:        0.7,
		TopK:         5,
	}
}

// ScreenArgs are the arguments of the screen tool
type ScreenArgs struct {
	Symbols []string `mapstructure:"symbols"`
	Days    int      `mapstructure:"days"`
}

// AnalyzeArgs are the arguments of the analyze tool
type AnalyzeArgs struct {
	Symbol string `mapstructure:"symbol"`
	Days   int    `mapstructure:"days"`
}

// BacktestArgs are the arguments of the backtest tool
type BacktestArgs struct {
	Symbol   string `mapstructure:"symbol"`
	Strategy string `mapstructure:"strategy"`
	Fast     int    `mapstructure:"fast"`
	Slow     int    `mapstructure:"slow"`
	Days     int    `mapstructure:"days"`
}

// OptimizeArgs are the arguments of the optimize_backtest tool
type OptimizeArgs struct {
	Symbol     string  `mapstructure:"symbol"`
	FastValues []int   `mapstructure:"fast_values"`
	SlowValues []int   `mapstructure:"slow_values"`
	Split      float64 `mapstructure:"split"`
	TopK       int     `mapstructure:"top_k"`
	Days       int     `mapstructure:"days"`
}

// Toolbox implements the four tools.
type Toolbox struct {
	analyzer   Analyzer
	backtester Backtester
	settings   Settings
	logger     *zap.Logger
}

// New creates a toolbox
func New(a Analyzer, b Backtester, settings Settings, logger *zap.Logger) *Toolbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toolbox{analyzer: a, backtester: b, settings: settings, logger: logger}
}

// Settings returns the defaults in use
func (t *Toolbox) Settings() Settings {
	return t.settings
}

// Handlers returns the dispatch table entries for every tool.
func (t *Toolbox) Handlers() map[core.ToolName]executor.Handler {
	return map[core.ToolName]executor.Handler{
		core.ToolScreen:   handle(t.Screen),
		core.ToolAnalyze:  handle(t.Analyze),
		core.ToolBacktest: handle(t.Backtest),
		core.ToolOptimize: handle(t.Optimize),
	}
}

// Dispatcher builds the closed dispatch table, requiring every known tool.
func (t *Toolbox) Dispatcher() (*executor.Dispatcher, error) {
	return executor.NewDispatcher(t.Handlers(), core.KnownTools...)
}

// Screen analyzes a list of symbols, defaulting to the universe.
func (t *Toolbox) Screen(ctx context.Context, args ScreenArgs) (*analysis.Screen, error) {
	symbols := normalizeSymbols(args.Symbols)
	if len(symbols) == 0 {
		symbols = normalizeSymbols(t.settings.Universe)
	}
	if len(symbols) == 0 {
		return nil, core.Errorf(core.ErrInvalidParams, "screen: no symbols")
	}
	return t.analyzer.Screen(ctx, symbols, orDefault(args.Days, t.settings.Days))
}

// Analyze scores one symbol.
func (t *Toolbox) Analyze(ctx context.Context, args AnalyzeArgs) (*analysis.Analysis, error) {
	symbol, err := requireSymbol(core.ToolAnalyze, args.Symbol)
	if err != nil {
		return nil, err
	}
	return t.analyzer.Analyze(ctx, symbol, orDefault(args.Days, t.settings.Days))
}

// Backtest runs one strategy with fixed windows.
func (t *Toolbox) Backtest(ctx context.Context, args BacktestArgs) (*backtest.Result, error) {
	symbol, err := requireSymbol(core.ToolBacktest, args.Symbol)
	if err != nil {
		return nil, err
	}
	name := args.Strategy
	if name == "" {
		name = t.settings.Strategy
	}
	params := core.StrategyParams{
		Fast: orDefault(args.Fast, t.settings.Params.Fast),
		Slow: orDefault(args.Slow, t.settings.Params.Slow),
	}
	return t.backtester.Run(ctx, symbol, orDefault(args.Days, t.settings.BacktestDays), name, params)
}

// Optimize runs the walk-forward grid search.
func (t *Toolbox) Optimize(ctx context.Context, args OptimizeArgs) (*backtest.Optimization, error) {
	symbol, err := requireSymbol(core.ToolOptimize, args.Symbol)
	if err != nil {
		return nil, err
	}
	req := backtest.OptimizeRequest{
		FastValues: args.FastValues,
		SlowValues: args.SlowValues,
		Split:      args.Split,
		TopK:       orDefault(args.TopK, t.settings.TopK),
	}
	if len(req.FastValues) == 0 {
		req.FastValues = t.settings.FastValues
	}
	if len(req.SlowValues) == 0 {
		req.SlowValues = t.settings.SlowValues
	}
	if req.Split == 0 {
		req.Split = t.settings.Split
	}
	t.logger.Debug("optimize",
		zap.String("symbol", symbol),
		zap.Ints("fast_values", req.FastValues),
		zap.Ints("slow_values", req.SlowValues))
	return t.backtester.Optimize(ctx, symbol, orDefault(args.Days, t.settings.OptimizeDays), req)
}

// Decode converts a flat argument map into a typed struct. Numbers given
// as strings or floats are coerced; unknown keys are ignored.
func Decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return core.WrapError(core.ErrInvalidParams, err)
	}
	return nil
}

func handle[A any, R any](fn func(context.Context, A) (R, error)) executor.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		var a A
		if err := Decode(args, &a); err != nil {
			return nil, err
		}
		res, err := fn(ctx, a)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
}

func requireSymbol(tool core.ToolName, s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", core.Errorf(core.ErrInvalidParams, "%s: symbol is required", tool)
	}
	return s, nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
