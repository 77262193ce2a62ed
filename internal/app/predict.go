package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"stockcast/internal/dates"
	"stockcast/internal/storage"
)

// PredictOptions configure a one-shot forecast run.
type PredictOptions struct {
	Symbol  string
	Horizon int
}

// Predict generates and persists a forecast from the terminal, printing the
// resulting points.
func (a *App) Predict(ctx context.Context, opts PredictOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; forecast will not be persisted")
	}
	if closeStore != nil {
		defer closeStore()
	}

	horizon := opts.Horizon
	if horizon <= 0 {
		horizon = a.Config.Forecast.DefaultHorizon
	}

	// A typed-nil *storage.Store must not reach the pipeline as a non-nil
	// interface value.
	var forecasts storage.ForecastStore
	if store != nil {
		forecasts = store
	}

	points, err := a.newPipeline(forecasts).Generate(ctx, opts.Symbol, horizon)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Target Date\tPredicted\tLower\tUpper")
	for _, p := range points {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			dates.Format(p.Date),
			p.Value.StringFixed(2),
			p.Lower.StringFixed(2),
			p.Upper.StringFixed(2),
		)
	}
	return writer.Flush()
}
