package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"stockcast/internal/dates"
	"stockcast/internal/faults"
	"stockcast/internal/forecast"
	"stockcast/internal/marketdata"
	"stockcast/internal/storage"
)

// Forecaster is the slice of the predict pipeline the API needs.
type Forecaster interface {
	Generate(ctx context.Context, symbol string, horizon int) ([]forecast.Point, error)
}

// HandlerOptions carry per-route defaults.
type HandlerOptions struct {
	DefaultHorizon  int
	HistoryLookback string
}

// Handler exposes the pipeline over HTTP.
type Handler struct {
	opts        HandlerOptions
	forecaster  Forecaster
	source      marketdata.Source
	comparisons storage.ComparisonStore
	logger      zerolog.Logger
}

// NewHandler constructs the API handler.
func NewHandler(opts HandlerOptions, forecaster Forecaster, source marketdata.Source, comparisons storage.ComparisonStore, logger zerolog.Logger) *Handler {
	if opts.DefaultHorizon <= 0 {
		opts.DefaultHorizon = 7
	}
	if opts.HistoryLookback == "" {
		opts.HistoryLookback = "1y"
	}
	return &Handler{
		opts:        opts,
		forecaster:  forecaster,
		source:      source,
		comparisons: comparisons,
		logger:      logger.With().Str("component", "http_handler").Logger(),
	}
}

// Register attaches all routes.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/predict", h.Predict)
	e.GET("/history", h.History)
	e.GET("/comparisons", h.Comparisons)
	e.GET("/healthz", h.Healthz)
}

type forecastPointDTO struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

type historyPointDTO struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type comparisonDTO struct {
	Symbol          string  `json:"symbol"`
	TargetDate      string  `json:"target_date"`
	PredictedValue  float64 `json:"predicted_value"`
	ActualValue     float64 `json:"actual_value"`
	Error           float64 `json:"error"`
	AccuracyPercent float64 `json:"accuracy_percent"`
	ComparedAt      string  `json:"compared_at"`
}

type errorDTO struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Predict runs the forecast pipeline for ?symbol= and optional ?days=.
func (h *Handler) Predict(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return h.fail(c, faults.New(faults.KindInput, "predict", "", "symbol query parameter is required"))
	}

	horizon := h.opts.DefaultHorizon
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return h.fail(c, faults.New(faults.KindInput, "predict", symbol, "days must be a positive integer"))
		}
		horizon = parsed
	}

	points, err := h.forecaster.Generate(c.Request().Context(), symbol, horizon)
	if err != nil {
		return h.fail(c, err)
	}

	body := make([]forecastPointDTO, len(points))
	for i, p := range points {
		body[i] = forecastPointDTO{
			Date:  dates.Format(p.Date),
			Value: p.Value.InexactFloat64(),
			Lower: p.Lower.InexactFloat64(),
			Upper: p.Upper.InexactFloat64(),
		}
	}
	return c.JSON(http.StatusOK, body)
}

// History returns daily closes for ?symbol= over optional ?range=.
func (h *Handler) History(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return h.fail(c, faults.New(faults.KindInput, "history", "", "symbol query parameter is required"))
	}

	lookback := c.QueryParam("range")
	if lookback == "" {
		lookback = h.opts.HistoryLookback
	}

	series, err := h.source.History(c.Request().Context(), symbol, lookback)
	if err != nil {
		return h.fail(c, err)
	}

	body := make([]historyPointDTO, len(series))
	for i, obs := range series {
		body[i] = historyPointDTO{
			Date:  dates.Format(obs.Date),
			Close: obs.Close.InexactFloat64(),
		}
	}
	return c.JSON(http.StatusOK, body)
}

// Comparisons returns reconciled records for ?symbol=, newest target first.
func (h *Handler) Comparisons(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return h.fail(c, faults.New(faults.KindInput, "comparisons", "", "symbol query parameter is required"))
	}

	records, err := h.comparisons.ComparisonsBySymbol(c.Request().Context(), marketdata.NormalizeSymbol(symbol))
	if err != nil {
		return h.fail(c, faults.Wrap(err, faults.KindInternal, "comparisons", symbol))
	}

	body := make([]comparisonDTO, len(records))
	for i, rec := range records {
		body[i] = comparisonDTO{
			Symbol:          rec.Symbol,
			TargetDate:      dates.Format(rec.TargetDate),
			PredictedValue:  rec.Predicted.InexactFloat64(),
			ActualValue:     rec.Actual.InexactFloat64(),
			Error:           rec.AbsError.InexactFloat64(),
			AccuracyPercent: rec.AccuracyPct.InexactFloat64(),
			ComparedAt:      rec.ComparedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return c.JSON(http.StatusOK, body)
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) fail(c echo.Context, err error) error {
	kind := faults.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	} else {
		h.logger.Debug().Err(err).Str("kind", string(kind)).Msg("request rejected")
	}
	return c.JSON(status, errorDTO{Code: string(kind), Error: err.Error()})
}

func statusFor(kind faults.Kind) int {
	switch kind {
	case faults.KindInput:
		return http.StatusBadRequest
	case faults.KindNotFound:
		return http.StatusNotFound
	case faults.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case faults.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case faults.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
