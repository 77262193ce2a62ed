package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"stockcast/internal/dates"
	"stockcast/internal/marketdata"
	"stockcast/internal/storage"
)

// ExportOptions hold parameters for exporting reconciled history.
type ExportOptions struct {
	Symbol    string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// Export renders a symbol's predicted-vs-actual history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	records, err := store.ComparisonsBySymbol(ctx, marketdata.NormalizeSymbol(opts.Symbol))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no comparisons found for export")
		return nil
	}

	// Store order is newest-first; exports read chronologically.
	reverse(records)
	downsampled := downsample(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting comparisons")

	if opts.CSVPath != "" {
		if err := writeComparisonsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeComparisonsPNG(opts.PNGPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func reverse(records []storage.ComparisonRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}

func downsample(records []storage.ComparisonRecord, max int) []storage.ComparisonRecord {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]storage.ComparisonRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeComparisonsCSV(path string, records []storage.ComparisonRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"symbol", "target_date", "predicted_close", "actual_close", "abs_error", "accuracy_pct", "compared_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Symbol,
			dates.Format(rec.TargetDate),
			rec.Predicted.StringFixed(2),
			rec.Actual.StringFixed(2),
			rec.AbsError.StringFixed(2),
			rec.AccuracyPct.StringFixed(2),
			rec.ComparedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeComparisonsPNG(path, symbol string, records []storage.ComparisonRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	predicted := make([]float64, len(records))
	actual := make([]float64, len(records))
	accuracy := make([]float64, len(records))

	for i, rec := range records {
		x[i] = rec.TargetDate
		predicted[i] = rec.Predicted.InexactFloat64()
		actual[i] = rec.Actual.InexactFloat64()
		accuracy[i] = rec.AccuracyPct.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Close (" + symbol + ")",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Accuracy (%)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Predicted",
				XValues: x,
				YValues: predicted,
			},
			chart.TimeSeries{
				Name:    "Actual",
				XValues: x,
				YValues: actual,
			},
			chart.TimeSeries{
				Name:    "Accuracy %",
				XValues: x,
				YValues: accuracy,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
