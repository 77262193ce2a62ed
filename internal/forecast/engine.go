package forecast

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockcast/internal/dates"
	"stockcast/internal/faults"
	"stockcast/internal/marketdata"
)

// DefaultMinObservations gates model fitting; trend+seasonality decomposition
// needs at least a few weekly cycles to be meaningful.
const DefaultMinObservations = 30

// Point is one forecast step: a point estimate bracketed by its prediction
// interval, all rounded to two decimal places.
type Point struct {
	Date  time.Time
	Value decimal.Decimal
	Lower decimal.Decimal
	Upper decimal.Decimal
}

// Options tune the engine.
type Options struct {
	MinObservations int
}

// Engine fits a decomposable trend+seasonality model to a historical series
// and extrapolates it a fixed number of calendar days forward. It is pure over
// its inputs apart from the model's own optimization randomness.
type Engine struct {
	opts   Options
	fit    fitter
	logger zerolog.Logger
}

// NewEngine constructs an engine backed by the go-forecaster model.
func NewEngine(opts Options, logger zerolog.Logger) *Engine {
	return newEngine(opts, seriesFitter{}, logger)
}

func newEngine(opts Options, fit fitter, logger zerolog.Logger) *Engine {
	if opts.MinObservations <= 0 {
		opts.MinObservations = DefaultMinObservations
	}
	return &Engine{
		opts:   opts,
		fit:    fit,
		logger: logger.With().Str("component", "forecast_engine").Logger(),
	}
}

// Generate produces exactly horizon points dated strictly after the last
// observation, one calendar day apart. It never returns a partial forecast.
func (e *Engine) Generate(series marketdata.Series, horizon int) ([]Point, error) {
	if horizon <= 0 {
		return nil, faults.New(faults.KindInput, "forecast", "", "horizon must be positive, got %d", horizon)
	}
	if len(series) < e.opts.MinObservations {
		return nil, faults.New(faults.KindInsufficientData, "forecast", "",
			"need at least %d observations, got %d", e.opts.MinObservations, len(series))
	}

	t := make([]time.Time, len(series))
	y := make([]float64, len(series))
	for i, obs := range series {
		t[i] = obs.Date
		y[i] = obs.Close.InexactFloat64()
	}

	last := dates.Day(series.Last().Date)
	future := make([]time.Time, horizon)
	for i := range future {
		future[i] = last.AddDate(0, 0, i+1)
	}

	values, lower, upper, err := e.fit.FitPredict(t, y, future)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindInternal, "forecast", "")
	}
	if len(values) != horizon || len(lower) != horizon || len(upper) != horizon {
		return nil, faults.New(faults.KindInternal, "forecast", "",
			"model returned %d/%d/%d points, want %d", len(values), len(lower), len(upper), horizon)
	}

	points := make([]Point, horizon)
	for i := range points {
		if !finite(values[i]) || !finite(lower[i]) || !finite(upper[i]) {
			return nil, faults.New(faults.KindInternal, "forecast", "",
				"model produced non-finite estimate at step %d", i+1)
		}

		// Rounding is part of the persisted contract; the interval is clamped
		// after rounding so lower <= value <= upper holds on stored values.
		value := decimal.NewFromFloat(values[i]).Round(2)
		lo := decimal.NewFromFloat(lower[i]).Round(2)
		hi := decimal.NewFromFloat(upper[i]).Round(2)
		if lo.GreaterThan(value) {
			lo = value
		}
		if hi.LessThan(value) {
			hi = value
		}

		points[i] = Point{Date: future[i], Value: value, Lower: lo, Upper: hi}
	}

	e.logger.Debug().Int("observations", len(series)).Int("horizon", horizon).
		Time("last_observed", last).Msg("forecast generated")

	return points, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
