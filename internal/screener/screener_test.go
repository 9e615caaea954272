package screener

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"

	"stock-screener/internal/marketdata"
	"stock-screener/internal/models"
)

// Test fixtures shared across the package tests.

func candlesFromCloses(closes []float64) []models.Candle {
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Date:   fmt.Sprintf("2024-01-%02d", i+1),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return candles
}

func frameFromCloses(symbol string, closes []float64) *models.Frame {
	return models.NewFrame(symbol, "daily", candlesFromCloses(closes))
}

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func fallingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	return closes
}

// fakeProvider serves canned candles and metrics per symbol. Symbols in
// errSymbols fail every fetch.
type fakeProvider struct {
	candles    map[string][]models.Candle
	full       map[string][]models.Candle
	metrics    map[string]map[string]any
	errSymbols map[string]error

	calls atomic.Int64
}

func (p *fakeProvider) StockData(_ context.Context, symbol, interval, outputsize string) (*marketdata.StockData, error) {
	p.calls.Add(1)
	if err, ok := p.errSymbols[symbol]; ok {
		return nil, err
	}
	source := p.candles
	if outputsize == "full" && p.full != nil {
		source = p.full
	}
	candles, ok := source[symbol]
	if !ok {
		return nil, errors.Errorf("no fixture for %s", symbol)
	}
	data := &marketdata.StockData{
		Symbol:     symbol,
		Interval:   interval,
		OutputSize: outputsize,
		DataPoints: len(candles),
		Data:       candles,
	}
	return data, nil
}

func (p *fakeProvider) Metrics(_ context.Context, symbol string) (map[string]any, error) {
	m, ok := p.metrics[symbol]
	if !ok {
		return nil, errors.Errorf("no metrics for %s", symbol)
	}
	// Copy so enrichment's aliasing does not mutate the fixture.
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// fakeUniverse returns a fixed ticker list.
type fakeUniverse struct {
	tickers []string
}

func (u *fakeUniverse) Universe(context.Context, string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(u.tickers))
	for _, t := range u.tickers {
		out = append(out, map[string]any{"ticker": t})
	}
	return out, nil
}
