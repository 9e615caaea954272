// Package marketdata talks to the centralized market-data API and falls back
// to deterministic mock candles when the API has nothing to offer.
package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stock-screener/internal/models"
)

// Client is the HTTP client for the centralized API. Requests are rate
// limited client-side so large scans do not hammer the upstream.
type Client struct {
	baseURL    string
	useLocal   bool
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient builds a client against the API base URL. useLocal routes candle
// requests to the locally-persisted candle store instead of the live feed.
func NewClient(baseURL string, useLocal bool, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		useLocal:   useLocal,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(20), 40),
		logger:     logger,
	}
}

// do performs one API round-trip and decodes the JSON response into dest.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait")
	}

	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, snippet)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(err, "decoding %s response", endpoint)
	}
	return nil
}

// candleResponse is the upstream wire shape: parallel arrays plus a status
// flag. Any status other than "ok" means no data, not an error.
type candleResponse struct {
	Status     string    `json:"s"`
	Opens      []float64 `json:"o"`
	Highs      []float64 `json:"h"`
	Lows       []float64 `json:"l"`
	Closes     []float64 `json:"c"`
	Volumes    []float64 `json:"v"`
	Timestamps []int64   `json:"t"`
}

// Candles fetches OHLCV bars for one symbol. outputsize "compact" covers
// roughly 100 bars; anything else requests the full 20-year history.
func (c *Client) Candles(ctx context.Context, symbol, interval, outputsize string) (*StockData, error) {
	resolution, err := Resolution(interval)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.Add(-window(interval, outputsize))

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("resolution", resolution)
	query.Set("from", strconv.FormatInt(from.Unix(), 10))
	query.Set("to", strconv.FormatInt(now.Unix(), 10))

	endpoint := "/api/market-data/candles"
	if c.useLocal {
		endpoint = "/api/market-data/candles/local"
	}

	var raw candleResponse
	if err := c.do(ctx, http.MethodGet, endpoint, query, nil, &raw); err != nil {
		return nil, err
	}

	result := &StockData{
		Symbol:      symbol,
		Interval:    interval,
		OutputSize:  outputsize,
		LastUpdated: now.Format(time.RFC3339),
	}
	if raw.Status != "ok" {
		c.logger.Warn("no candle data returned",
			zap.String("symbol", symbol), zap.String("status", raw.Status))
		result.Data = nil
		return result, nil
	}

	layout := dateLayout(interval)
	for i := range raw.Timestamps {
		result.Data = append(result.Data, candleAt(&raw, i, layout))
	}
	result.DataPoints = len(result.Data)
	if n := len(result.Data); n > 0 {
		latest := result.Data[n-1].Close
		result.LatestPrice = &latest
	}
	return result, nil
}

func candleAt(raw *candleResponse, i int, layout string) (c models.Candle) {
	c.Date = time.Unix(raw.Timestamps[i], 0).Format(layout)
	if i < len(raw.Opens) {
		c.Open = raw.Opens[i]
	}
	if i < len(raw.Highs) {
		c.High = raw.Highs[i]
	}
	if i < len(raw.Lows) {
		c.Low = raw.Lows[i]
	}
	if i < len(raw.Closes) {
		c.Close = raw.Closes[i]
	}
	if i < len(raw.Volumes) {
		c.Volume = int64(raw.Volumes[i])
	}
	return c
}

// Metrics fetches the fundamental metric map for one symbol.
func (c *Client) Metrics(ctx context.Context, symbol string) (map[string]any, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	var resp struct {
		Metric map[string]any `json:"metric"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/market-data/metric", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Metric, nil
}

// Universe fetches the tradable symbol list, overriding the API's default
// pagination so scans see the whole universe.
func (c *Client) Universe(ctx context.Context, exchange string) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("take", "5000")
	if exchange != "" {
		query.Set("exchange", exchange)
	}

	var resp struct {
		Symbols []map[string]any `json:"symbols"`
		Total   int              `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/symbols", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// Ping checks API reachability with a minimal symbols request.
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("take", "1")
	return c.do(ctx, http.MethodGet, "/api/symbols", query, nil, nil)
}

// BaseURL exposes the configured upstream for health reporting.
func (c *Client) BaseURL() string { return c.baseURL }
