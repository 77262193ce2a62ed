package predict

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stockcast/internal/dates"
	"stockcast/internal/faults"
	"stockcast/internal/forecast"
	"stockcast/internal/marketdata"
	"stockcast/internal/storage"
)

// Options tune the forecast pipeline.
type Options struct {
	Lookback   string
	MaxHorizon int
}

// Engine produces forecast points from a historical series.
type Engine interface {
	Generate(series marketdata.Series, horizon int) ([]forecast.Point, error)
}

// Pipeline runs the forecast half of the system: fetch history, fit, then
// upsert one record per future date. Collaborators are injected so tests can
// substitute fakes.
type Pipeline struct {
	opts   Options
	source marketdata.Source
	engine Engine
	store  storage.ForecastStore
	logger zerolog.Logger
}

// New constructs the pipeline. A nil store disables persistence.
func New(opts Options, source marketdata.Source, engine Engine, store storage.ForecastStore, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		opts:   opts,
		source: source,
		engine: engine,
		store:  store,
		logger: logger.With().Str("component", "predict_pipeline").Logger(),
	}
}

// Generate forecasts the next horizon calendar days of closes for symbol and
// persists each point under its {SYMBOL}_{date} identity. Regeneration for the
// same symbol and target date overwrites the prior record, so repeated
// invocation is idempotent at the record-identity level.
func (p *Pipeline) Generate(ctx context.Context, symbol string, horizon int) ([]forecast.Point, error) {
	symbol = marketdata.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, faults.New(faults.KindInput, "predict", "", "symbol is required")
	}
	if horizon <= 0 {
		return nil, faults.New(faults.KindInput, "predict", symbol, "horizon must be positive, got %d", horizon)
	}
	if p.opts.MaxHorizon > 0 && horizon > p.opts.MaxHorizon {
		return nil, faults.New(faults.KindInput, "predict", symbol,
			"horizon %d exceeds maximum %d", horizon, p.opts.MaxHorizon)
	}

	series, err := p.source.History(ctx, symbol, p.opts.Lookback)
	if err != nil {
		return nil, err
	}

	points, err := p.engine.Generate(series, horizon)
	if err != nil {
		return nil, err
	}

	if p.store == nil {
		p.logger.Warn().Str("symbol", symbol).Msg("persistence disabled; forecast not stored")
		return points, nil
	}

	generatedOn := dates.Day(time.Now())
	for _, point := range points {
		record := storage.ForecastRecord{
			Symbol:      symbol,
			TargetDate:  point.Date,
			Predicted:   point.Value,
			Lower:       point.Lower,
			Upper:       point.Upper,
			GeneratedOn: generatedOn,
		}
		if err := p.store.Upsert(ctx, record); err != nil {
			return nil, faults.Wrap(err, faults.KindInternal, "predict", symbol)
		}
	}

	p.logger.Info().Str("symbol", symbol).Int("horizon", horizon).
		Time("first_target", points[0].Date).
		Time("last_target", points[len(points)-1].Date).
		Msg("forecast persisted")

	return points, nil
}
