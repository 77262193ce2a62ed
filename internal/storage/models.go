package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stockcast/internal/dates"
)

// ForecastRecord is one persisted forecast point for a (symbol, target date)
// pair. The pair is the record identity: a later forecast run for the same
// pair fully replaces the prior record.
type ForecastRecord struct {
	Symbol      string
	TargetDate  time.Time
	Predicted   decimal.Decimal
	Lower       decimal.Decimal
	Upper       decimal.Decimal
	GeneratedOn time.Time
	CreatedAt   time.Time
}

// ID returns the record's storage identity.
func (r ForecastRecord) ID() string {
	return RecordID(r.Symbol, r.TargetDate)
}

// ComparisonRecord captures a reconciled forecast: the stored prediction next
// to the realized close, with error and accuracy computed from the already
// rounded values so the result is reproducible from persisted data alone.
type ComparisonRecord struct {
	Symbol      string
	TargetDate  time.Time
	Predicted   decimal.Decimal
	Actual      decimal.Decimal
	AbsError    decimal.Decimal
	AccuracyPct decimal.Decimal
	ComparedAt  time.Time
}

// ID returns the record's storage identity, shared with its forecast.
func (r ComparisonRecord) ID() string {
	return RecordID(r.Symbol, r.TargetDate)
}

// RecordID builds the document-style key {SYMBOL}_{YYYY-MM-DD}.
func RecordID(symbol string, targetDate time.Time) string {
	return fmt.Sprintf("%s_%s", symbol, dates.Format(targetDate))
}
