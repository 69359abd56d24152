package collector

import (
	"context"

	"github.com/newthinker/argus/internal/core"
)

// PriceProvider fetches daily closes for a symbol.
// Implementations return core.ErrDataUnavailable for unknown symbols or an
// empty result.
type PriceProvider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error)
}
