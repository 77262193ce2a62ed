package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockcast/internal/faults"
	"stockcast/internal/forecast"
	"stockcast/internal/marketdata"
	"stockcast/internal/storage"
)

type stubForecaster struct {
	points  []forecast.Point
	err     error
	symbol  string
	horizon int
}

func (s *stubForecaster) Generate(_ context.Context, symbol string, horizon int) ([]forecast.Point, error) {
	s.symbol = symbol
	s.horizon = horizon
	return s.points, s.err
}

type stubSource struct {
	series marketdata.Series
	err    error
}

func (s *stubSource) History(context.Context, string, string) (marketdata.Series, error) {
	return s.series, s.err
}

func (s *stubSource) Range(context.Context, string, time.Time, time.Time) (marketdata.Series, error) {
	return s.series, s.err
}

type stubComparisons struct {
	records []storage.ComparisonRecord
	err     error
	symbol  string
}

func (s *stubComparisons) Add(context.Context, storage.ComparisonRecord) error { return nil }

func (s *stubComparisons) ComparisonsBySymbol(_ context.Context, symbol string) ([]storage.ComparisonRecord, error) {
	s.symbol = symbol
	return s.records, s.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func serve(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDTO {
	t.Helper()
	var body errorDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestPredictRequiresSymbol(t *testing.T) {
	h := NewHandler(HandlerOptions{}, &stubForecaster{}, &stubSource{}, &stubComparisons{}, zerolog.Nop())

	rec := serve(t, h, "/predict")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != string(faults.KindInput) {
		t.Errorf("code = %q, want %q", body.Code, faults.KindInput)
	}
}

func TestPredictRejectsBadDays(t *testing.T) {
	h := NewHandler(HandlerOptions{}, &stubForecaster{}, &stubSource{}, &stubComparisons{}, zerolog.Nop())

	for _, days := range []string{"0", "-3", "week"} {
		rec := serve(t, h, "/predict?symbol=AAPL&days="+days)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("days=%s: status = %d, want 400", days, rec.Code)
		}
	}
}

func TestPredictDefaultsHorizon(t *testing.T) {
	fc := &stubForecaster{points: []forecast.Point{
		{Date: day("2026-03-02"), Value: dec("150.25"), Lower: dec("148.00"), Upper: dec("152.50")},
	}}
	h := NewHandler(HandlerOptions{DefaultHorizon: 10}, fc, &stubSource{}, &stubComparisons{}, zerolog.Nop())

	rec := serve(t, h, "/predict?symbol=AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if fc.horizon != 10 {
		t.Errorf("horizon = %d, want default 10", fc.horizon)
	}

	var body []forecastPointDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("points = %d, want 1", len(body))
	}
	if body[0].Date != "2026-03-02" || body[0].Value != 150.25 {
		t.Errorf("point = %+v", body[0])
	}
}

func TestPredictMapsFaultKindsToStatus(t *testing.T) {
	cases := []struct {
		kind faults.Kind
		want int
	}{
		{faults.KindInput, http.StatusBadRequest},
		{faults.KindNotFound, http.StatusNotFound},
		{faults.KindInsufficientData, http.StatusUnprocessableEntity},
		{faults.KindUpstreamTimeout, http.StatusGatewayTimeout},
		{faults.KindUpstreamUnavailable, http.StatusBadGateway},
		{faults.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			fc := &stubForecaster{err: faults.New(tc.kind, "predict", "AAPL", "boom")}
			h := NewHandler(HandlerOptions{}, fc, &stubSource{}, &stubComparisons{}, zerolog.Nop())

			rec := serve(t, h, "/predict?symbol=AAPL")
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if body := decodeError(t, rec); body.Code != string(tc.kind) {
				t.Errorf("code = %q, want %q", body.Code, tc.kind)
			}
		})
	}
}

func TestHistoryReturnsCloses(t *testing.T) {
	src := &stubSource{series: marketdata.Series{
		{Date: day("2026-02-27"), Close: dec("148.91")},
		{Date: day("2026-03-02"), Close: dec("150.25")},
	}}
	h := NewHandler(HandlerOptions{}, &stubForecaster{}, src, &stubComparisons{}, zerolog.Nop())

	rec := serve(t, h, "/history?symbol=AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body []historyPointDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("rows = %d, want 2", len(body))
	}
	if body[0].Date != "2026-02-27" || body[0].Close != 148.91 {
		t.Errorf("row 0 = %+v", body[0])
	}
}

func TestComparisonsNormalizesSymbol(t *testing.T) {
	comps := &stubComparisons{records: []storage.ComparisonRecord{{
		Symbol:      "AAPL",
		TargetDate:  day("2026-03-02"),
		Predicted:   dec("150.25"),
		Actual:      dec("151.00"),
		AbsError:    dec("0.75"),
		AccuracyPct: dec("99.50"),
		ComparedAt:  time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC),
	}}}
	h := NewHandler(HandlerOptions{}, &stubForecaster{}, &stubSource{}, comps, zerolog.Nop())

	rec := serve(t, h, "/comparisons?symbol=aapl")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if comps.symbol != "AAPL" {
		t.Errorf("queried symbol = %q, want AAPL", comps.symbol)
	}

	var body []comparisonDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("rows = %d, want 1", len(body))
	}
	got := body[0]
	if got.TargetDate != "2026-03-02" || got.Error != 0.75 || got.AccuracyPercent != 99.5 {
		t.Errorf("row = %+v", got)
	}
	if got.ComparedAt != "2026-03-03T10:30:00Z" {
		t.Errorf("compared_at = %q", got.ComparedAt)
	}
}

func TestHealthz(t *testing.T) {
	h := NewHandler(HandlerOptions{}, &stubForecaster{}, &stubSource{}, &stubComparisons{}, zerolog.Nop())

	rec := serve(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
