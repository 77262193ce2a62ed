package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"stockcast/internal/dates"
	"stockcast/internal/faults"
)

const chartPath = "/v8/finance/chart/"

var validLookbacks = map[string]struct{}{
	"1mo": {}, "3mo": {}, "6mo": {}, "1y": {}, "2y": {}, "5y": {}, "10y": {}, "max": {},
}

// ClientOptions parameterise the market-data HTTP client.
type ClientOptions struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	RequestsPerSec int
}

// Client fetches daily closes from a Yahoo-chart-compatible JSON API.
type Client struct {
	opts    ClientOptions
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient constructs a market-data client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		opts:    opts,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger.With().Str("component", "marketdata_client").Logger(),
	}
}

// History retrieves up to lookback of daily closes for symbol.
func (c *Client) History(ctx context.Context, symbol, lookback string) (Series, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, faults.New(faults.KindInput, "history", "", "symbol is required")
	}
	if _, ok := validLookbacks[lookback]; !ok {
		return nil, faults.New(faults.KindInput, "history", symbol, "invalid lookback %q", lookback)
	}

	url := fmt.Sprintf("%s%s%s?range=%s&interval=1d", c.baseURL, chartPath, symbol, lookback)
	series, err := c.fetchChart(ctx, "history", symbol, url)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, faults.New(faults.KindNotFound, "history", symbol, "no data for lookback %s", lookback)
	}
	return series, nil
}

// Range retrieves daily closes within [start, endExclusive).
func (c *Client) Range(ctx context.Context, symbol string, start, endExclusive time.Time) (Series, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, faults.New(faults.KindInput, "range", "", "symbol is required")
	}
	if !start.Before(endExclusive) {
		return nil, faults.New(faults.KindInput, "range", symbol, "start must precede end")
	}

	url := fmt.Sprintf("%s%s%s?period1=%d&period2=%d&interval=1d",
		c.baseURL, chartPath, symbol, start.Unix(), endExclusive.Unix())

	series, err := c.fetchChart(ctx, "range", symbol, url)
	if err != nil {
		// An empty window on a non-trading day surfaces upstream as not_found;
		// callers must see it as "no rows", so the fault is flattened here.
		if faults.IsKind(err, faults.KindNotFound) {
			return Series{}, nil
		}
		return nil, err
	}

	// The chart endpoint rounds period bounds to trading sessions, so clamp to
	// the requested half-open window before returning.
	trimmed := make(Series, 0, len(series))
	for _, obs := range series {
		if obs.Date.Before(start) || !obs.Date.Before(endExclusive) {
			continue
		}
		trimmed = append(trimmed, obs)
	}
	return trimmed, nil
}

func (c *Client) fetchChart(ctx context.Context, stage, symbol, url string) (Series, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, faults.Wrap(err, faults.KindUpstreamUnavailable, stage, symbol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindInternal, stage, symbol)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "stockcast/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		kind := faults.KindUpstreamUnavailable
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = faults.KindUpstreamTimeout
		}
		return nil, faults.Wrap(err, kind, stage, symbol)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindUpstreamUnavailable, stage, symbol)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, faults.New(faults.KindNotFound, stage, symbol, "symbol unknown upstream")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, faults.New(faults.KindUpstreamUnavailable, stage, symbol,
			"chart api status %d: %s", resp.StatusCode, sniffError(payload))
	}

	var body chartResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, faults.Wrap(err, faults.KindUpstreamUnavailable, stage, symbol)
	}
	if body.Chart.Error != nil {
		if strings.EqualFold(body.Chart.Error.Code, "Not Found") {
			return nil, faults.New(faults.KindNotFound, stage, symbol, "%s", body.Chart.Error.Description)
		}
		return nil, faults.New(faults.KindUpstreamUnavailable, stage, symbol, "%s", body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, faults.New(faults.KindNotFound, stage, symbol, "empty chart result")
	}

	result := body.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, faults.New(faults.KindNotFound, stage, symbol, "no quote data")
	}

	closes := result.Indicators.Quote[0].Close
	series := make(Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		series = append(series, Observation{
			Date:  dates.Day(time.Unix(ts, 0)),
			Close: decimal.NewFromFloat(*closes[i]).Round(2),
		})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	c.logger.Debug().Str("symbol", symbol).Str("stage", stage).
		Int("observations", len(series)).Msg("chart fetched")

	return series, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *chartError `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func sniffError(payload []byte) string {
	var body chartResponse
	if err := json.Unmarshal(payload, &body); err == nil && body.Chart.Error != nil {
		if body.Chart.Error.Description != "" {
			return body.Chart.Error.Description
		}
		return body.Chart.Error.Code
	}
	if len(payload) > 0 {
		return strings.TrimSpace(string(payload))
	}
	return "no payload"
}

var _ Source = (*Client)(nil)
