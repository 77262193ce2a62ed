package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stockcast/internal/dates"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertForecastSQL = `INSERT INTO forecasts (
        record_id,
        symbol,
        target_date,
        predicted_close,
        lower_bound,
        upper_bound,
        generated_on
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (record_id) DO UPDATE
    SET
        predicted_close = EXCLUDED.predicted_close,
        lower_bound     = EXCLUDED.lower_bound,
        upper_bound     = EXCLUDED.upper_bound,
        generated_on    = EXCLUDED.generated_on,
        created_at      = now();`

	listForecastsBySymbolSQL = `SELECT
        symbol,
        target_date,
        predicted_close,
        lower_bound,
        upper_bound,
        generated_on,
        created_at
    FROM forecasts
    WHERE symbol = $1
    ORDER BY target_date DESC;`

	dueForecastsSQL = `SELECT
        f.symbol,
        f.target_date,
        f.predicted_close,
        f.lower_bound,
        f.upper_bound,
        f.generated_on,
        f.created_at
    FROM forecasts f
    WHERE f.target_date <= $1
      AND NOT EXISTS (
          SELECT 1 FROM comparisons c WHERE c.record_id = f.record_id
      )
    ORDER BY f.target_date, f.symbol;`

	upsertComparisonSQL = `INSERT INTO comparisons (
        record_id,
        symbol,
        target_date,
        predicted_close,
        actual_close,
        abs_error,
        accuracy_pct,
        compared_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (record_id) DO UPDATE
    SET predicted_close = EXCLUDED.predicted_close,
        actual_close    = EXCLUDED.actual_close,
        abs_error       = EXCLUDED.abs_error,
        accuracy_pct    = EXCLUDED.accuracy_pct;`

	listComparisonsBySymbolSQL = `SELECT
        symbol,
        target_date,
        predicted_close,
        actual_close,
        abs_error,
        accuracy_pct,
        compared_at
    FROM comparisons
    WHERE symbol = $1
    ORDER BY target_date DESC;`

	countForecastsSQL = `SELECT COUNT(*) FROM forecasts;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ForecastStore defines operations for forecast record persistence.
type ForecastStore interface {
	Upsert(ctx context.Context, record ForecastRecord) error
	ForecastsBySymbol(ctx context.Context, symbol string) ([]ForecastRecord, error)
	Due(ctx context.Context, asOf time.Time) ([]ForecastRecord, error)
}

// ComparisonStore defines operations for comparison record persistence.
type ComparisonStore interface {
	Add(ctx context.Context, record ComparisonRecord) error
	ComparisonsBySymbol(ctx context.Context, symbol string) ([]ComparisonRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers for non-overlapping jobs.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to forecast and comparison records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Upsert persists a forecast record, replacing any prior record with the same
// (symbol, target_date) identity.
func (s *Store) Upsert(ctx context.Context, record ForecastRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertForecastSQL,
		record.ID(),
		record.Symbol,
		dates.Day(record.TargetDate),
		record.Predicted.String(),
		record.Lower.String(),
		record.Upper.String(),
		dates.Day(record.GeneratedOn),
	)
	if execErr != nil {
		return fmt.Errorf("upsert forecast: %w", execErr)
	}
	return nil
}

// ForecastsBySymbol lists a symbol's forecasts ordered by target date descending.
func (s *Store) ForecastsBySymbol(ctx context.Context, symbol string) ([]ForecastRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listForecastsBySymbolSQL, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list forecasts: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ForecastRecord, 0)
	for rows.Next() {
		record, scanErr := scanForecast(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// Due lists forecasts whose target date has arrived and that have no
// comparison yet. A record skipped on one run (actual not yet published)
// keeps surfacing here until it is reconciled.
func (s *Store) Due(ctx context.Context, asOf time.Time) ([]ForecastRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, dueForecastsSQL, dates.Day(asOf))
	if queryErr != nil {
		return nil, fmt.Errorf("list due forecasts: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ForecastRecord, 0)
	for rows.Next() {
		record, scanErr := scanForecast(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// Add persists a comparison record. Reruns for the same identity update the
// numeric fields but keep the original compared_at.
func (s *Store) Add(ctx context.Context, record ComparisonRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	comparedAt := record.ComparedAt
	if comparedAt.IsZero() {
		comparedAt = time.Now().UTC()
	}

	_, execErr := pool.Exec(ctx, upsertComparisonSQL,
		record.ID(),
		record.Symbol,
		dates.Day(record.TargetDate),
		record.Predicted.String(),
		record.Actual.String(),
		record.AbsError.String(),
		record.AccuracyPct.String(),
		comparedAt,
	)
	if execErr != nil {
		return fmt.Errorf("add comparison: %w", execErr)
	}
	return nil
}

// ComparisonsBySymbol lists a symbol's comparisons ordered by target date descending.
func (s *Store) ComparisonsBySymbol(ctx context.Context, symbol string) ([]ComparisonRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listComparisonsBySymbolSQL, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list comparisons: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ComparisonRecord, 0)
	for rows.Next() {
		record, scanErr := scanComparison(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountForecasts counts stored forecast records.
func (s *Store) CountForecasts(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countForecastsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count forecasts: %w", scanErr)
	}
	return count, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func. Used to keep reconciliation passes from overlapping.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func scanForecast(rows pgx.Rows) (ForecastRecord, error) {
	var (
		symbol       string
		targetDate   time.Time
		predictedStr string
		lowerStr     string
		upperStr     string
		generatedOn  time.Time
		createdAt    time.Time
	)

	if err := rows.Scan(
		&symbol,
		&targetDate,
		&predictedStr,
		&lowerStr,
		&upperStr,
		&generatedOn,
		&createdAt,
	); err != nil {
		return ForecastRecord{}, err
	}

	predicted, err := decimal.NewFromString(predictedStr)
	if err != nil {
		return ForecastRecord{}, fmt.Errorf("parse predicted close: %w", err)
	}
	lower, err := decimal.NewFromString(lowerStr)
	if err != nil {
		return ForecastRecord{}, fmt.Errorf("parse lower bound: %w", err)
	}
	upper, err := decimal.NewFromString(upperStr)
	if err != nil {
		return ForecastRecord{}, fmt.Errorf("parse upper bound: %w", err)
	}

	return ForecastRecord{
		Symbol:      symbol,
		TargetDate:  dates.Day(targetDate),
		Predicted:   predicted,
		Lower:       lower,
		Upper:       upper,
		GeneratedOn: dates.Day(generatedOn),
		CreatedAt:   createdAt,
	}, nil
}

func scanComparison(rows pgx.Rows) (ComparisonRecord, error) {
	var (
		symbol       string
		targetDate   time.Time
		predictedStr string
		actualStr    string
		errorStr     string
		accuracyStr  string
		comparedAt   time.Time
	)

	if err := rows.Scan(
		&symbol,
		&targetDate,
		&predictedStr,
		&actualStr,
		&errorStr,
		&accuracyStr,
		&comparedAt,
	); err != nil {
		return ComparisonRecord{}, err
	}

	predicted, err := decimal.NewFromString(predictedStr)
	if err != nil {
		return ComparisonRecord{}, fmt.Errorf("parse predicted close: %w", err)
	}
	actual, err := decimal.NewFromString(actualStr)
	if err != nil {
		return ComparisonRecord{}, fmt.Errorf("parse actual close: %w", err)
	}
	absError, err := decimal.NewFromString(errorStr)
	if err != nil {
		return ComparisonRecord{}, fmt.Errorf("parse abs error: %w", err)
	}
	accuracy, err := decimal.NewFromString(accuracyStr)
	if err != nil {
		return ComparisonRecord{}, fmt.Errorf("parse accuracy pct: %w", err)
	}

	return ComparisonRecord{
		Symbol:      symbol,
		TargetDate:  dates.Day(targetDate),
		Predicted:   predicted,
		Actual:      actual,
		AbsError:    absError,
		AccuracyPct: accuracy,
		ComparedAt:  comparedAt,
	}, nil
}
