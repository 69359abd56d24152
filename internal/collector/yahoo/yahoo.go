package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/newthinker/argus/internal/core"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultTimeout = 10 * time.Second
)

// validSymbol matches stock symbols like AAPL, BRK-B, 600519.SH, 0700.HK, ^GSPC
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches daily closes from the Yahoo Finance chart API
type Yahoo struct {
	client *resty.Client
	now    func() time.Time
}

// Option configures the Yahoo provider
type Option func(*Yahoo)

// WithBaseURL overrides the chart endpoint
func WithBaseURL(url string) Option {
	return func(y *Yahoo) { y.client.SetBaseURL(url) }
}

// WithTimeout sets the HTTP timeout
func WithTimeout(d time.Duration) Option {
	return func(y *Yahoo) {
		if d > 0 {
			y.client.SetTimeout(d)
		}
	}
}

// New creates a new Yahoo provider
func New(opts ...Option) *Yahoo {
	client := resty.New()
	client.SetBaseURL(defaultBaseURL)
	client.SetTimeout(defaultTimeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; argus/1.0)")

	y := &Yahoo{client: client, now: time.Now}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// Fetch returns split/dividend adjusted daily closes for the trailing
// lookbackDays calendar days.
func (y *Yahoo) Fetch(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := validateSymbol(symbol); err != nil {
		return core.PriceSeries{}, core.WrapError(core.ErrDataUnavailable, err)
	}
	if lookbackDays <= 0 {
		return core.PriceSeries{}, core.Errorf(core.ErrDataUnavailable, "%s: lookback must be positive, got %d", symbol, lookbackDays)
	}

	end := y.now()
	start := end.AddDate(0, 0, -lookbackDays)

	resp, err := y.client.R().
		SetContext(ctx).
		SetPathParam("symbol", toYahooSymbol(symbol)).
		SetQueryParams(map[string]string{
			"interval":             "1d",
			"period1":              strconv.FormatInt(start.Unix(), 10),
			"period2":              strconv.FormatInt(end.Unix(), 10),
			"includeAdjustedClose": "true",
		}).
		Get("/{symbol}")
	if err != nil {
		return core.PriceSeries{}, fmt.Errorf("fetching history for %s: %w", symbol, err)
	}

	var result chartResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		if resp.StatusCode() != http.StatusOK {
			return core.PriceSeries{}, fmt.Errorf("yahoo: unexpected status %d for %s", resp.StatusCode(), symbol)
		}
		return core.PriceSeries{}, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return core.PriceSeries{}, core.Errorf(core.ErrDataUnavailable, "%s: %s", symbol, result.Chart.Error.Description)
	}
	if resp.StatusCode() != http.StatusOK {
		return core.PriceSeries{}, fmt.Errorf("yahoo: unexpected status %d for %s", resp.StatusCode(), symbol)
	}
	if len(result.Chart.Result) == 0 {
		return core.PriceSeries{}, core.Errorf(core.ErrDataUnavailable, "no data for symbol: %s", symbol)
	}

	points := toPoints(result.Chart.Result[0])
	if len(points) == 0 {
		return core.PriceSeries{}, core.Errorf(core.ErrDataUnavailable, "no price data for %s", symbol)
	}
	return core.NewPriceSeries(symbol, points)
}

// toPoints prefers adjusted closes, skips missing bars and keeps the last
// bar of each calendar day.
func toPoints(r chartResult) []core.PricePoint {
	var closes []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 && len(r.Indicators.Quote[0].Close) == len(r.Timestamp) {
		closes = r.Indicators.Quote[0].Close
	} else {
		return nil
	}

	points := make([]core.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		c := closes[i]
		if c == nil || *c <= 0 {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if n := len(points); n > 0 && !day.After(points[n-1].Date) {
			if day.Equal(points[n-1].Date) {
				points[n-1].Close = *c
			}
			continue
		}
		points = append(points, core.PricePoint{Date: day, Close: *c})
	}
	return points
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type indicators struct {
	Quote    []quoteIndicator `json:"quote"`
	AdjClose []adjClose       `json:"adjclose"`
}

type quoteIndicator struct {
	Close []*float64 `json:"close"`
}

type adjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}
