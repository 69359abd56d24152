package collector

import (
	"context"
	"errors"
	"strings"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/metrics"
	"go.uber.org/zap"
)

// Chain tries providers in order and returns the first non-empty series
type Chain struct {
	providers []PriceProvider
	metrics   *metrics.Registry
	logger    *zap.Logger
}

// NewChain creates a chain over providers
func NewChain(providers ...PriceProvider) *Chain {
	return &Chain{providers: providers, logger: zap.NewNop()}
}

// WithMetrics records fetch outcomes per provider
func (c *Chain) WithMetrics(m *metrics.Registry) *Chain {
	c.metrics = m
	return c
}

// WithLogger sets the logger
func (c *Chain) WithLogger(l *zap.Logger) *Chain {
	if l != nil {
		c.logger = l
	}
	return c
}

func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Fetch returns the first successful result. Context errors stop the chain.
func (c *Chain) Fetch(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error) {
	var errs []error
	for _, p := range c.providers {
		series, err := p.Fetch(ctx, symbol, lookbackDays)
		if err == nil && series.Len() == 0 {
			err = core.Errorf(core.ErrDataUnavailable, "%s: empty series from %s", symbol, p.Name())
		}
		if err == nil {
			c.metrics.RecordFetch(p.Name(), "ok")
			return series, nil
		}

		c.metrics.RecordFetch(p.Name(), "error")
		if ctx.Err() != nil {
			return core.PriceSeries{}, ctx.Err()
		}
		c.logger.Debug("price provider failed",
			zap.String("provider", p.Name()),
			zap.String("symbol", symbol),
			zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return core.PriceSeries{}, core.Errorf(core.ErrDataUnavailable, "%s: no providers", symbol)
	}
	joined := errors.Join(errs...)
	if errors.Is(joined, core.ErrDataUnavailable) {
		return core.PriceSeries{}, core.WrapError(core.ErrDataUnavailable, joined)
	}
	return core.PriceSeries{}, joined
}
