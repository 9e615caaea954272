// Package server exposes the screener's tool surface over HTTP.
package server

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stock-screener/internal/cache"
	"stock-screener/internal/indicators"
	"stock-screener/internal/marketdata"
	"stock-screener/internal/models"
	"stock-screener/internal/screener"
)

const version = "2.0.0"

// Service implements the tool surface: data fetching, indicator snapshots,
// scans, presets, query parsing, health, and the platform passthrough for
// watchlists and saved scans.
type Service struct {
	provider marketdata.Provider
	client   *marketdata.Client
	scanner  *screener.Scanner
	store    cache.Store
	logger   *zap.Logger
}

func NewService(provider marketdata.Provider, client *marketdata.Client, scanner *screener.Scanner, store cache.Store, logger *zap.Logger) *Service {
	return &Service{
		provider: provider,
		client:   client,
		scanner:  scanner,
		store:    store,
		logger:   logger,
	}
}

// FetchStockData returns the OHLCV payload for one symbol.
func (s *Service) FetchStockData(ctx context.Context, symbol, interval, outputsize string) (*marketdata.StockData, error) {
	if interval == "" {
		interval = "daily"
	}
	if outputsize == "" {
		outputsize = "compact"
	}
	return s.provider.StockData(ctx, symbol, interval, outputsize)
}

// IndicatorPoint is one dated value row of an indicator series. Multi-line
// indicators fill Extra instead of Value.
type IndicatorPoint struct {
	Date  string             `json:"date"`
	Value *float64           `json:"value,omitempty"`
	Extra map[string]float64 `json:"-"`
}

func (p IndicatorPoint) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+2)
	out["date"] = p.Date
	if p.Value != nil {
		out["value"] = *p.Value
	}
	for k, v := range p.Extra {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses the flattened wire form so cached results decode
// back into the same point: date and value go to their fields, every other
// numeric key is a component line.
func (p *IndicatorPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if d, ok := raw["date"]; ok {
		if err := json.Unmarshal(d, &p.Date); err != nil {
			return err
		}
		delete(raw, "date")
	}
	if v, ok := raw["value"]; ok {
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return err
		}
		p.Value = &f
		delete(raw, "value")
	}
	for k, rawVal := range raw {
		var f float64
		if err := json.Unmarshal(rawVal, &f); err != nil {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]float64)
		}
		p.Extra[k] = f
	}
	return nil
}

// IndicatorResult is the snapshot envelope for one indicator request.
type IndicatorResult struct {
	Symbol      string           `json:"symbol"`
	Indicator   string           `json:"indicator"`
	Interval    string           `json:"interval"`
	Values      []IndicatorPoint `json:"values"`
	LatestValue *IndicatorPoint  `json:"latest_value,omitempty"`
	Parameters  map[string]any   `json:"parameters"`
}

// TechnicalIndicator computes a named indicator over a symbol's recent
// candles. RSI, SMA and EMA yield single-value rows; MACD and BBANDS yield
// their component lines per row. Warm-up rows are omitted.
func (s *Service) TechnicalIndicator(ctx context.Context, symbol, indicator, interval string, timePeriod int, seriesType string) (*IndicatorResult, error) {
	if interval == "" {
		interval = "daily"
	}
	if timePeriod <= 0 {
		timePeriod = 14
	}
	if seriesType == "" {
		seriesType = "close"
	}

	key := cache.IndicatorKey(symbol, indicator, interval, timePeriod, seriesType)
	var cached IndicatorResult
	if s.store.Get(ctx, key, &cached) {
		return &cached, nil
	}

	s.logger.Info("calculating indicator",
		zap.String("symbol", symbol), zap.String("indicator", indicator))

	data, err := s.provider.StockData(ctx, symbol, interval, "compact")
	if err != nil {
		return nil, err
	}
	if data.Empty() {
		return nil, errors.Errorf("no data available for %s", symbol)
	}
	frame := data.Frame()

	result := &IndicatorResult{
		Symbol:    symbol,
		Indicator: indicator,
		Interval:  interval,
		Parameters: map[string]any{
			"time_period": timePeriod,
			"series_type": seriesType,
		},
	}

	switch strings.ToUpper(indicator) {
	case "SMA":
		result.Values = singleSeries(frame, indicators.SMA(frame, timePeriod))
	case "EMA":
		result.Values = singleSeries(frame, indicators.EMA(frame, timePeriod))
	case "RSI":
		result.Values = singleSeries(frame, indicators.RSI(frame, timePeriod))
	case "MACD":
		macd := indicators.MACD(frame, 12, 26, 9)
		result.Values = multiSeries(frame, map[string][]float64{
			"MACD":        macd.MACD,
			"MACD_Signal": macd.Signal,
			"MACD_Hist":   macd.Histogram,
		}, macd.MACD)
	case "BBANDS":
		bb := indicators.Bollinger(frame, timePeriod, 2.0)
		result.Values = multiSeries(frame, map[string][]float64{
			"upper":  bb.Upper,
			"middle": bb.Middle,
			"lower":  bb.Lower,
		}, bb.Middle)
	default:
		return nil, errors.Errorf("unsupported indicator: %s. Supported: RSI, SMA, EMA, MACD, BBANDS", indicator)
	}

	if n := len(result.Values); n > 0 {
		result.LatestValue = &result.Values[n-1]
	}

	s.store.Set(ctx, key, result, cache.TTLIndicator)
	return result, nil
}

func singleSeries(frame *models.Frame, series []float64) []IndicatorPoint {
	points := make([]IndicatorPoint, 0, len(series))
	for i, v := range series {
		if v != v { // NaN warm-up
			continue
		}
		val := v
		points = append(points, IndicatorPoint{Date: frame.Candles[i].Date, Value: &val})
	}
	return points
}

func multiSeries(frame *models.Frame, lines map[string][]float64, anchor []float64) []IndicatorPoint {
	points := make([]IndicatorPoint, 0, len(anchor))
	for i, v := range anchor {
		if v != v {
			continue
		}
		extra := make(map[string]float64, len(lines))
		defined := true
		for name, series := range lines {
			if series[i] != series[i] {
				defined = false
				break
			}
			extra[name] = series[i]
		}
		if !defined {
			continue
		}
		points = append(points, IndicatorPoint{Date: frame.Candles[i].Date, Extra: extra})
	}
	return points
}

// ScanStocks runs a filter scan; an empty symbol list plus a watchlist
// identifier resolves the universe from that watchlist.
func (s *Service) ScanStocks(ctx context.Context, symbols []string, rawFilters json.RawMessage, filterLogic, watchlistID string) (*models.ScanResult, error) {
	var filters []*models.Filter
	var err error
	if len(rawFilters) > 0 {
		filters, err = models.ParseFilters(rawFilters)
		if err != nil {
			return nil, err
		}
	}
	if len(symbols) == 0 && watchlistID != "" {
		symbols, err = s.client.WatchlistSymbols(ctx, watchlistID)
		if err != nil {
			return nil, err
		}
	}
	return s.scanner.Scan(ctx, marketdata.NormalizeSymbols(symbols), filters, filterLogic)
}

// RunPresetScan executes a named preset scan.
func (s *Service) RunPresetScan(ctx context.Context, presetName string, symbols []string, customParams map[string]any) (*models.ScanResult, error) {
	return s.scanner.RunPreset(ctx, presetName, marketdata.NormalizeSymbols(symbols), customParams)
}

// FetchStockUniverse lists the tradable symbols for an exchange.
func (s *Service) FetchStockUniverse(ctx context.Context, exchange string) (map[string]any, error) {
	if exchange == "" {
		exchange = "US"
	}
	universe, err := s.client.Universe(ctx, exchange)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"exchange": exchange,
		"count":    len(universe),
		"symbols":  universe,
	}, nil
}

// ParseNaturalLanguageQuery converts a plain-English screening query into
// filter configurations.
func (s *Service) ParseNaturalLanguageQuery(query string) map[string]any {
	return map[string]any{
		"filters": screener.ParseQuery(query, s.logger),
	}
}

// Health reports overall service health with per-component status. Any
// broken dependency degrades the status instead of failing the check.
func (s *Service) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status":    "healthy",
		"version":   version,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	components := map[string]any{}

	if err := s.store.Ping(ctx); err != nil {
		components["cache"] = map[string]any{"status": "error", "message": err.Error()}
		health["status"] = "degraded"
	} else {
		components["cache"] = map[string]any{"status": "connected"}
	}

	if err := s.client.Ping(ctx); err != nil {
		components["upstream"] = map[string]any{"status": "error", "message": err.Error()}
		health["status"] = "degraded"
	} else {
		components["upstream"] = map[string]any{"status": "connected", "url": s.client.BaseURL()}
	}

	health["components"] = components
	return health
}
