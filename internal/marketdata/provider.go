package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stock-screener/internal/cache"
)

// Provider serves candle and metric data to the screener.
type Provider interface {
	StockData(ctx context.Context, symbol, interval, outputsize string) (*StockData, error)
	Metrics(ctx context.Context, symbol string) (map[string]any, error)
}

// FallbackProvider is the production Provider: cache-through reads against
// the API client, substituting mock candles when the API fails or returns an
// empty series. Invalid intervals still error; everything else degrades.
type FallbackProvider struct {
	client *Client
	mock   *Mock
	store  cache.Store
	logger *zap.Logger
}

func NewFallbackProvider(client *Client, mock *Mock, store cache.Store, logger *zap.Logger) *FallbackProvider {
	return &FallbackProvider{client: client, mock: mock, store: store, logger: logger}
}

func (p *FallbackProvider) StockData(ctx context.Context, symbol, interval, outputsize string) (*StockData, error) {
	if !ValidInterval(interval) {
		return nil, ErrInvalidInterval
	}

	key := cache.StockKey(symbol, interval, outputsize)
	var cached StockData
	if p.store.Get(ctx, key, &cached) {
		return &cached, nil
	}

	p.logger.Info("fetching stock data",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.String("outputsize", outputsize))

	result, err := p.client.Candles(ctx, symbol, interval, outputsize)
	if err != nil || result.Empty() {
		if err != nil {
			p.logger.Warn("primary provider failed, falling back to mock",
				zap.String("symbol", symbol), zap.Error(err))
		} else {
			p.logger.Warn("primary provider returned no candles, falling back to mock",
				zap.String("symbol", symbol))
		}
		result = p.mock.Candles(ctx, symbol, interval, outputsize)
	}

	p.store.Set(ctx, key, result, cache.TTLStockData)
	return result, nil
}

func (p *FallbackProvider) Metrics(ctx context.Context, symbol string) (map[string]any, error) {
	key := "metrics:" + symbol
	var cached map[string]any
	if p.store.Get(ctx, key, &cached) {
		return cached, nil
	}
	metrics, err := p.client.Metrics(ctx, symbol)
	if err != nil {
		return nil, err
	}
	p.store.Set(ctx, key, metrics, 30*time.Minute)
	return metrics, nil
}
