package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stockcast/internal/dates"
	"stockcast/internal/faults"
	"stockcast/internal/marketdata"
	"stockcast/internal/storage"
)

// Options tune the reconciliation job.
type Options struct {
	// Location is the canonical zone in which "today" is evaluated.
	Location        *time.Location
	AdvisoryLockKey int64
}

// Report summarises one reconciliation pass. Skipped records stay due and are
// retried on the next pass.
type Report struct {
	AsOf     time.Time
	Due      int
	Compared int
	Skipped  int
	Failed   int
}

// Job closes the loop on due forecasts: it fetches the realized close for each
// one, computes error and accuracy, and persists the comparison. Items are
// attempted independently; one symbol's failure never aborts the batch.
type Job struct {
	opts        Options
	source      marketdata.Source
	forecasts   storage.ForecastStore
	comparisons storage.ComparisonStore
	locker      storage.AdvisoryLocker
	now         func() time.Time
	logger      zerolog.Logger
}

// New constructs the job. locker may be nil to disable overlap protection.
func New(opts Options, source marketdata.Source, forecasts storage.ForecastStore, comparisons storage.ComparisonStore, locker storage.AdvisoryLocker, logger zerolog.Logger) *Job {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Job{
		opts:        opts,
		source:      source,
		forecasts:   forecasts,
		comparisons: comparisons,
		locker:      locker,
		now:         time.Now,
		logger:      logger.With().Str("component", "reconcile_job").Logger(),
	}
}

// Run executes one pass as of today in the canonical zone.
func (j *Job) Run(ctx context.Context) (Report, error) {
	return j.RunAsOf(ctx, dates.DayIn(j.now(), j.opts.Location))
}

// RunAsOf executes one pass as of the given calendar date.
func (j *Job) RunAsOf(ctx context.Context, asOf time.Time) (Report, error) {
	asOf = dates.Day(asOf)
	report := Report{AsOf: asOf}

	unlock, proceed, err := j.acquireLock(ctx)
	if err != nil {
		return report, err
	}
	if !proceed {
		j.logger.Info().Time("as_of", asOf).Msg("skip pass; another reconciliation holds the lock")
		return report, nil
	}
	if unlock != nil {
		defer unlock()
	}

	due, err := j.forecasts.Due(ctx, asOf)
	if err != nil {
		return report, faults.Wrap(err, faults.KindInternal, "reconcile", "")
	}
	report.Due = len(due)

	for _, record := range due {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		switch err := j.reconcileOne(ctx, record); {
		case err == nil:
			report.Compared++
		case faults.IsKind(err, faults.KindNotFound):
			// Actual not yet observable; the record stays due for the next run.
			report.Skipped++
			j.logger.Info().Str("symbol", record.Symbol).
				Str("target_date", dates.Format(record.TargetDate)).
				Msg("actual close not yet available; deferring")
		default:
			report.Failed++
			j.logger.Error().Err(err).Str("symbol", record.Symbol).
				Str("target_date", dates.Format(record.TargetDate)).
				Str("kind", string(faults.KindOf(err))).
				Msg("reconciliation item failed")
		}
	}

	j.logger.Info().Time("as_of", asOf).
		Int("due", report.Due).
		Int("compared", report.Compared).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("reconciliation pass complete")

	return report, nil
}

func (j *Job) reconcileOne(ctx context.Context, record storage.ForecastRecord) error {
	target := dates.Day(record.TargetDate)

	// Half-open single-day window; an inclusive window can silently return
	// zero rows on some providers.
	series, err := j.source.Range(ctx, record.Symbol, target, target.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return faults.New(faults.KindNotFound, "reconcile", record.Symbol,
			"no close published for %s", dates.Format(target))
	}

	comparison, err := Compare(record, series[0].Close, j.now().UTC())
	if err != nil {
		return err
	}

	if err := j.comparisons.Add(ctx, comparison); err != nil {
		return faults.Wrap(err, faults.KindInternal, "reconcile", record.Symbol)
	}

	j.logger.Info().Str("symbol", record.Symbol).
		Str("target_date", dates.Format(target)).
		Str("predicted", comparison.Predicted.StringFixed(2)).
		Str("actual", comparison.Actual.StringFixed(2)).
		Str("accuracy_pct", comparison.AccuracyPct.StringFixed(2)).
		Msg("forecast reconciled")

	return nil
}

func (j *Job) acquireLock(ctx context.Context) (func(), bool, error) {
	if j.opts.AdvisoryLockKey == 0 || j.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := j.locker.TryAdvisoryLock(ctx, j.opts.AdvisoryLockKey)
	if err != nil {
		return nil, false, faults.Wrap(err, faults.KindInternal, "reconcile", "")
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
