package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockcast/internal/faults"
	"stockcast/internal/storage"
)

func TestCompareFormula(t *testing.T) {
	record := storage.ForecastRecord{
		Symbol:     "AAPL",
		TargetDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Predicted:  decimal.RequireFromString("100.00"),
	}

	comparison, err := Compare(record, decimal.RequireFromString("95.00"), time.Now())
	if err != nil {
		t.Fatalf("compare should succeed: %v", err)
	}

	if got := comparison.AbsError.StringFixed(2); got != "5.00" {
		t.Fatalf("error should be 5.00, got %s", got)
	}
	// (1 - 5/95) * 100 = 94.7368... rounds to 94.74
	if got := comparison.AccuracyPct.StringFixed(2); got != "94.74" {
		t.Fatalf("accuracy should be 94.74, got %s", got)
	}
}

func TestCompareZeroActual(t *testing.T) {
	record := storage.ForecastRecord{
		Symbol:    "AAPL",
		Predicted: decimal.RequireFromString("100.00"),
	}

	_, err := Compare(record, decimal.Zero, time.Now())
	if err == nil {
		t.Fatal("zero actual should be rejected")
	}
	if !faults.IsKind(err, faults.KindZeroActual) {
		t.Fatalf("expected zero_actual kind, got %s", faults.KindOf(err))
	}
}

func TestCompareAbsoluteError(t *testing.T) {
	record := storage.ForecastRecord{
		Symbol:    "MSFT",
		Predicted: decimal.RequireFromString("90.00"),
	}

	comparison, err := Compare(record, decimal.RequireFromString("95.00"), time.Now())
	if err != nil {
		t.Fatalf("compare should succeed: %v", err)
	}
	if got := comparison.AbsError.StringFixed(2); got != "5.00" {
		t.Fatalf("error should be absolute, got %s", got)
	}
}

func TestCompareCarriesIdentity(t *testing.T) {
	target := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	comparedAt := time.Date(2024, 3, 2, 18, 30, 0, 0, time.UTC)
	record := storage.ForecastRecord{
		Symbol:     "MSFT",
		TargetDate: target,
		Predicted:  decimal.RequireFromString("420.69"),
	}

	comparison, err := Compare(record, decimal.RequireFromString("418.00"), comparedAt)
	if err != nil {
		t.Fatalf("compare should succeed: %v", err)
	}
	if comparison.Symbol != "MSFT" || !comparison.TargetDate.Equal(target) {
		t.Fatalf("comparison should link back to the forecast identity: %+v", comparison)
	}
	if !comparison.ComparedAt.Equal(comparedAt) {
		t.Fatalf("compared_at should be preserved: %v", comparison.ComparedAt)
	}
}
