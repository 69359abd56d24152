package backtest

import (
	"context"
	"time"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/metrics"
	"github.com/newthinker/argus/internal/strategy"
	"github.com/newthinker/argus/internal/strategy/ma_crossover"
	"go.uber.org/zap"
)

// PriceProvider fetches daily closes for the trailing lookbackDays
type PriceProvider interface {
	Fetch(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error)
}

// Backtester binds the simulator and optimizer to a price provider
type Backtester struct {
	provider   PriceProvider
	strategies *strategy.Registry
	metrics    *metrics.Registry
	logger     *zap.Logger
	workers    int
}

// Option configures a Backtester
type Option func(*Backtester)

// WithMetrics records backtest and optimization metrics
func WithMetrics(m *metrics.Registry) Option {
	return func(b *Backtester) { b.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithWorkers sets the default optimizer concurrency
func WithWorkers(n int) Option {
	return func(b *Backtester) { b.workers = n }
}

// WithStrategies replaces the strategy registry
func WithStrategies(r *strategy.Registry) Option {
	return func(b *Backtester) {
		if r != nil {
			b.strategies = r
		}
	}
}

// New creates a new Backtester with the given price provider
func New(provider PriceProvider, opts ...Option) *Backtester {
	b := &Backtester{
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.strategies == nil {
		b.strategies = DefaultStrategies(b.logger)
	}
	return b
}

// DefaultStrategies returns a registry holding the SMA crossover
func DefaultStrategies(logger *zap.Logger) *strategy.Registry {
	r := strategy.NewRegistry(logger)
	r.Register(ma_crossover.Name, ma_crossover.Factory)
	return r
}

// Strategies returns the strategy registry
func (b *Backtester) Strategies() *strategy.Registry {
	return b.strategies
}

// Run fetches history for symbol and backtests the named strategy on it
func (b *Backtester) Run(ctx context.Context, symbol string, days int, strategyName string, params core.StrategyParams) (*Result, error) {
	start := time.Now()
	res, err := b.run(ctx, symbol, days, strategyName, params)
	b.metrics.RecordBacktest(statusOf(err), time.Since(start).Seconds())
	if err != nil {
		b.logger.Debug("backtest failed",
			zap.String("symbol", symbol),
			zap.String("params", params.String()),
			zap.Error(err))
		return nil, err
	}
	b.logger.Debug("backtest complete",
		zap.String("symbol", symbol),
		zap.String("params", params.String()),
		zap.Float64("total_return", res.Summary.TotalReturn),
		zap.Int("trades", res.Summary.TradeCount))
	return res, nil
}

func (b *Backtester) run(ctx context.Context, symbol string, days int, strategyName string, params core.StrategyParams) (*Result, error) {
	if strategyName == "" {
		strategyName = ma_crossover.Name
	}
	strat, err := b.strategies.Build(strategyName, params)
	if err != nil {
		return nil, err
	}

	series, err := b.provider.Fetch(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Backtest(series, strat)
}

// Backtest simulates strat over an already fetched series
func Backtest(series core.PriceSeries, strat strategy.Strategy) (*Result, error) {
	sim, err := run(strat, series)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Strategy: strat.Name(),
		Symbol:   series.Symbol,
		Bars:     series.Len(),
		Summary:  sim.Summary,
		Curve:    sim.Curve,
	}
	if p, ok := strat.(interface{ Params() core.StrategyParams }); ok {
		res.Params = p.Params()
	}
	res.StartDate = series.Points[0].Date
	res.EndDate = series.Points[series.Len()-1].Date
	return res, nil
}

// Optimize fetches history for symbol and runs the grid search on it
func (b *Backtester) Optimize(ctx context.Context, symbol string, days int, req OptimizeRequest) (*Optimization, error) {
	start := time.Now()

	if req.Workers == 0 {
		req.Workers = b.workers
	}
	opt, err := b.optimize(ctx, symbol, days, req)
	b.metrics.RecordOptimization(statusOf(err), time.Since(start).Seconds())
	if err != nil {
		b.logger.Debug("optimization failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, err
	}

	b.metrics.RecordCandidates("evaluated", opt.Evaluated)
	b.metrics.RecordCandidates("skipped", len(opt.Skipped))
	b.logger.Debug("optimization complete",
		zap.String("symbol", symbol),
		zap.String("best", opt.Best.Params.String()),
		zap.Float64("os_total_return", opt.Best.OS.TotalReturn),
		zap.Int("evaluated", opt.Evaluated),
		zap.Int("skipped", len(opt.Skipped)))
	return opt, nil
}

func (b *Backtester) optimize(ctx context.Context, symbol string, days int, req OptimizeRequest) (*Optimization, error) {
	series, err := b.provider.Fetch(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	return Optimize(ctx, series, req)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
