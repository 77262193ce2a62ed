package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"stockcast/internal/dates"
	"stockcast/internal/marketdata"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Symbol string
	Limit  int
}

// Show prints a symbol's most recent comparisons, newest target first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show comparisons")
	}
	defer closeStore()

	records, err := store.ComparisonsBySymbol(ctx, marketdata.NormalizeSymbol(opts.Symbol))
	if err != nil {
		return err
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no comparisons found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Target Date\tPredicted\tActual\tError\tAccuracy%\tCompared At (UTC)")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			dates.Format(rec.TargetDate),
			rec.Predicted.StringFixed(2),
			rec.Actual.StringFixed(2),
			rec.AbsError.StringFixed(2),
			rec.AccuracyPct.StringFixed(2),
			rec.ComparedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}
