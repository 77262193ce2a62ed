package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockcast/internal/faults"
	"stockcast/internal/marketdata"
)

type fakeFitter struct {
	values, lower, upper []float64
	err                  error
	gotFuture            []time.Time
}

func (f *fakeFitter) FitPredict(t []time.Time, y []float64, future []time.Time) ([]float64, []float64, []float64, error) {
	f.gotFuture = future
	if f.err != nil {
		return nil, nil, nil, f.err
	}
	return f.values, f.lower, f.upper, nil
}

func dailySeries(start time.Time, closes ...float64) marketdata.Series {
	series := make(marketdata.Series, len(closes))
	for i, c := range closes {
		series[i] = marketdata.Observation{
			Date:  start.AddDate(0, 0, i),
			Close: decimal.NewFromFloat(c),
		}
	}
	return series
}

func flatSeries(n int) marketdata.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	return dailySeries(start, closes...)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestGenerateHorizonAndDates(t *testing.T) {
	series := flatSeries(504)
	horizon := 7
	fit := &fakeFitter{
		values: repeat(101.5, horizon),
		lower:  repeat(99.0, horizon),
		upper:  repeat(104.0, horizon),
	}
	engine := newEngine(Options{}, fit, zerolog.Nop())

	points, err := engine.Generate(series, horizon)
	if err != nil {
		t.Fatalf("generate should succeed: %v", err)
	}
	if len(points) != horizon {
		t.Fatalf("expected %d points, got %d", horizon, len(points))
	}

	last := series.Last().Date
	for i, p := range points {
		if !p.Date.After(last) {
			t.Fatalf("point %d dated %v, must be after last observation %v", i, p.Date, last)
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			t.Fatalf("dates must be strictly increasing at %d", i)
		}
		want := last.AddDate(0, 0, i+1)
		if !p.Date.Equal(want) {
			t.Fatalf("point %d should land on %v, got %v", i, want, p.Date)
		}
	}
	if len(fit.gotFuture) != horizon {
		t.Fatalf("fitter should receive %d future dates, got %d", horizon, len(fit.gotFuture))
	}
}

func TestGenerateRoundsToTwoDecimals(t *testing.T) {
	fit := &fakeFitter{
		values: []float64{101.5678},
		lower:  []float64{99.1234},
		upper:  []float64{104.9876},
	}
	engine := newEngine(Options{}, fit, zerolog.Nop())

	points, err := engine.Generate(flatSeries(60), 1)
	if err != nil {
		t.Fatalf("generate should succeed: %v", err)
	}
	p := points[0]
	if p.Value.StringFixed(2) != "101.57" || p.Lower.StringFixed(2) != "99.12" || p.Upper.StringFixed(2) != "104.99" {
		t.Fatalf("values should round to 2 decimals: %+v", p)
	}
	if !p.Value.Equal(p.Value.Round(2)) {
		t.Fatal("rounding must be applied before returning")
	}
}

func TestGenerateClampsBounds(t *testing.T) {
	// Model emits an interval that does not bracket the point estimate.
	fit := &fakeFitter{
		values: []float64{100.0},
		lower:  []float64{101.0},
		upper:  []float64{99.0},
	}
	engine := newEngine(Options{}, fit, zerolog.Nop())

	points, err := engine.Generate(flatSeries(60), 1)
	if err != nil {
		t.Fatalf("generate should succeed: %v", err)
	}
	p := points[0]
	if p.Lower.GreaterThan(p.Value) || p.Upper.LessThan(p.Value) {
		t.Fatalf("bounds must satisfy lower <= value <= upper: %+v", p)
	}
}

func TestGenerateInsufficientData(t *testing.T) {
	engine := newEngine(Options{MinObservations: 30}, &fakeFitter{}, zerolog.Nop())

	_, err := engine.Generate(flatSeries(10), 7)
	if err == nil {
		t.Fatal("short series should be rejected")
	}
	if !faults.IsKind(err, faults.KindInsufficientData) {
		t.Fatalf("expected insufficient_data kind, got %s", faults.KindOf(err))
	}
}

func TestGenerateInvalidHorizon(t *testing.T) {
	engine := newEngine(Options{}, &fakeFitter{}, zerolog.Nop())

	for _, horizon := range []int{0, -3} {
		_, err := engine.Generate(flatSeries(60), horizon)
		if err == nil {
			t.Fatalf("horizon %d should be rejected", horizon)
		}
		if !faults.IsKind(err, faults.KindInput) {
			t.Fatalf("expected input kind, got %s", faults.KindOf(err))
		}
	}
}

func TestGenerateNonFiniteEstimate(t *testing.T) {
	fit := &fakeFitter{
		values: []float64{math.NaN()},
		lower:  []float64{1},
		upper:  []float64{2},
	}
	engine := newEngine(Options{}, fit, zerolog.Nop())

	_, err := engine.Generate(flatSeries(60), 1)
	if err == nil {
		t.Fatal("non-finite estimates must not surface as a partial forecast")
	}
}

func TestGenerateShortModelOutput(t *testing.T) {
	fit := &fakeFitter{
		values: repeat(100, 3),
		lower:  repeat(99, 3),
		upper:  repeat(101, 3),
	}
	engine := newEngine(Options{}, fit, zerolog.Nop())

	if _, err := engine.Generate(flatSeries(60), 7); err == nil {
		t.Fatal("model output shorter than horizon must fail")
	}
}
