package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"stockcast/internal/faults"
	"stockcast/internal/storage"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Compare derives a comparison record from a stored forecast and its realized
// close. Error and accuracy operate on the already rounded stored values:
//
//	error    = |actual - predicted|            (2 dp)
//	accuracy = (1 - error/actual) * 100        (2 dp)
//
// A zero actual makes accuracy undefined and is rejected rather than emitted
// as infinity.
func Compare(record storage.ForecastRecord, actual decimal.Decimal, comparedAt time.Time) (storage.ComparisonRecord, error) {
	if actual.IsZero() {
		return storage.ComparisonRecord{}, faults.New(faults.KindZeroActual, "reconcile", record.Symbol,
			"actual close is zero; accuracy undefined")
	}

	absError := actual.Sub(record.Predicted).Abs().Round(2)
	accuracy := one.Sub(absError.Div(actual)).Mul(hundred).Round(2)

	return storage.ComparisonRecord{
		Symbol:      record.Symbol,
		TargetDate:  record.TargetDate,
		Predicted:   record.Predicted,
		Actual:      actual,
		AbsError:    absError,
		AccuracyPct: accuracy,
		ComparedAt:  comparedAt,
	}, nil
}
