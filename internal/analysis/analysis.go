// Package analysis scores symbols from price momentum, RSI, trend and
// news sentiment into a BUY/HOLD/SELL recommendation.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/indicator"
	"go.uber.org/zap"
)

// Blend weights and thresholds
const (
	WeightMomentum  = 0.45
	WeightRSI       = 0.20
	WeightTrend     = 0.15
	WeightSentiment = 0.20

	BuyThreshold  = 0.60
	HoldThreshold = 0.40

	rsiPeriod     = 14
	trendFast     = 50
	trendSlow     = 200
	maxMomentumLB = 126
)

// PriceProvider fetches daily closes
type PriceProvider interface {
	Fetch(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error)
}

// SentimentScorer returns a compound news sentiment in [-1, 1]
type SentimentScorer interface {
	Score(ctx context.Context, symbol string) (float64, error)
}

// NeutralSentiment scores every symbol 0
type NeutralSentiment struct{}

func (NeutralSentiment) Score(context.Context, string) (float64, error) { return 0, nil }

// Signals are the component scores, each in [0, 1]
type Signals struct {
	Momentum  float64 `json:"momentum" csv:"momentum"`
	RSI       float64 `json:"rsi" csv:"rsi"`
	Trend     float64 `json:"trend" csv:"trend"`
	Sentiment float64 `json:"sentiment" csv:"sentiment"`
	Overall   float64 `json:"overall" csv:"overall"`
}

// Analysis is the scored view of one symbol
type Analysis struct {
	Symbol            string      `json:"symbol"`
	Recommendation    core.Action `json:"recommendation"`
	Confidence        float64     `json:"confidence"`
	SentimentCompound float64     `json:"sentiment_compound"`
	Signals           Signals     `json:"signals"`
	Rationale         string      `json:"rationale"`
	Bars              int         `json:"bars"`
}

// Pick converts the analysis into a ranked pick
func (a Analysis) Pick() core.Pick {
	return core.Pick{
		Symbol:         a.Symbol,
		Recommendation: a.Recommendation,
		Confidence:     a.Confidence,
		Rationale:      a.Rationale,
	}
}

// Screen is the result of analyzing a universe
type Screen struct {
	Results []Analysis         `json:"results"`
	Errors  []core.SymbolError `json:"errors,omitempty"`
}

// Score blends indicator scores for a series with a raw sentiment value.
func Score(series core.PriceSeries, sentiment float64) (Analysis, error) {
	if series.Len() < 2 {
		return Analysis{}, core.Errorf(core.ErrEmptySeries, "%s: %d bars", series.Symbol, series.Len())
	}
	closes := series.Closes()

	var sig Signals

	lookback := max(1, min(maxMomentumLB, len(closes)/2))
	mom, _ := indicator.Momentum(closes, lookback)
	sig.Momentum = (math.Tanh(mom*3) + 1) / 2

	rsi := indicator.RSI(closes, rsiPeriod)
	switch last := rsi[len(rsi)-1]; {
	case math.IsNaN(last):
		sig.RSI = 0.5
	case last >= 70:
		sig.RSI = 0.2
	case last <= 30:
		sig.RSI = 0.8
	default:
		sig.RSI = 0.5
	}

	fast := indicator.SMA(closes, trendFast)
	slow := indicator.SMA(closes, trendSlow)
	if len(slow) > 0 && fast[len(fast)-1] > slow[len(slow)-1] {
		sig.Trend = 1
	}

	sentiment = math.Max(-1, math.Min(1, sentiment))
	sig.Sentiment = (sentiment + 1) / 2

	sig.Overall = WeightMomentum*sig.Momentum +
		WeightRSI*sig.RSI +
		WeightTrend*sig.Trend +
		WeightSentiment*sig.Sentiment

	rec := Recommend(sig.Overall)
	return Analysis{
		Symbol:            series.Symbol,
		Recommendation:    rec,
		Confidence:        sig.Overall,
		SentimentCompound: sentiment,
		Signals:           sig,
		Bars:              series.Len(),
		Rationale: fmt.Sprintf("Momentum=%.2f, RSI flag=%.2f, Trend=%.2f, News sentiment=%.2f => %s (conf %.2f)",
			sig.Momentum, sig.RSI, sig.Trend, sig.Sentiment, rec, sig.Overall),
	}, nil
}

// Recommend maps a blended score to an action
func Recommend(overall float64) core.Action {
	switch {
	case overall > BuyThreshold:
		return core.ActionBuy
	case overall > HoldThreshold:
		return core.ActionHold
	default:
		return core.ActionSell
	}
}

// Analyzer fetches prices and sentiment and scores symbols
type Analyzer struct {
	prices    PriceProvider
	sentiment SentimentScorer
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer. A nil scorer means neutral sentiment.
func NewAnalyzer(prices PriceProvider, sentiment SentimentScorer, logger *zap.Logger) *Analyzer {
	if sentiment == nil {
		sentiment = NeutralSentiment{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{prices: prices, sentiment: sentiment, logger: logger}
}

// Analyze scores one symbol over the trailing days
func (a *Analyzer) Analyze(ctx context.Context, symbol string, days int) (*Analysis, error) {
	series, err := a.prices.Fetch(ctx, symbol, days)
	if err != nil {
		return nil, err
	}

	sent, err := a.sentiment.Score(ctx, symbol)
	if err != nil {
		a.logger.Warn("sentiment unavailable, using neutral",
			zap.String("symbol", symbol),
			zap.Error(err))
		sent = 0
	}

	res, err := Score(series, sent)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Screen analyzes every symbol; failures are collected per symbol and the
// results are sorted by confidence, highest first.
func (a *Analyzer) Screen(ctx context.Context, symbols []string, days int) (*Screen, error) {
	out := &Screen{Results: []Analysis{}}
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := a.Analyze(ctx, s, days)
		if err != nil {
			out.Errors = append(out.Errors, core.SymbolError{
				Symbol: s,
				Code:   core.CodeOf(err, core.ErrToolFailed.Code),
				Error:  err.Error(),
			})
			a.logger.Info("screen: symbol failed", zap.String("symbol", s), zap.Error(err))
			continue
		}
		out.Results = append(out.Results, *res)
	}
	sort.SliceStable(out.Results, func(i, j int) bool {
		return out.Results[i].Confidence > out.Results[j].Confidence
	})
	return out, nil
}
