package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one daily close.
type Observation struct {
	Date  time.Time
	Close decimal.Decimal
}

// Series is an ordered run of daily closes, ascending by date. Calendar gaps
// (weekends, holidays) are normal, not errors.
type Series []Observation

// Last returns the final observation of the series.
func (s Series) Last() Observation {
	return s[len(s)-1]
}

// Source supplies historical and single-window observations for a symbol.
type Source interface {
	// History returns up to lookback worth of daily closes. Unknown symbols and
	// empty payloads fail with a not_found fault.
	History(ctx context.Context, symbol, lookback string) (Series, error)
	// Range returns daily closes within [start, endExclusive). An empty series
	// is a legitimate result (non-trading day), never an error.
	Range(ctx context.Context, symbol string, start, endExclusive time.Time) (Series, error)
}

// NormalizeSymbol canonicalizes a ticker to its uppercase form.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
