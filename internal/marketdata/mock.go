package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"stock-screener/internal/models"
)

// Mock generates a deterministic random-walk series per symbol. The same
// symbol always yields the same candles within a process run, so a scan sees
// consistent data across filters.
type Mock struct {
	logger *zap.Logger
}

func NewMock(logger *zap.Logger) *Mock {
	return &Mock{logger: logger}
}

const mockDays = 150

// Candles synthesizes ~150 daily bars: a +/-2% random walk with intraday
// range and volume noise, seeded from the symbol name.
func (m *Mock) Candles(_ context.Context, symbol, interval, outputsize string) *StockData {
	m.logger.Info("generating mock data", zap.String("symbol", symbol))

	h := fnv.New64a()
	h.Write([]byte(symbol))
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	price := 100.0 + r.Float64()*100
	now := time.Now()

	candles := make([]models.Candle, 0, mockDays)
	for i := 0; i < mockDays; i++ {
		dt := now.AddDate(0, 0, -(mockDays - i))

		change := (r.Float64() - 0.5) * 4
		price = price * (1 + change/100)

		high := price * (1 + r.Float64()/100)
		low := price * (1 - r.Float64()/100)
		open := (high + low) / 2
		volume := int64(100000 + r.Float64()*900000)

		candles = append(candles, models.Candle{
			Date:   dt.Format("2006-01-02"),
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(price),
			Volume: volume,
		})
	}

	latest := candles[len(candles)-1].Close
	return &StockData{
		Symbol:      symbol,
		Interval:    interval,
		OutputSize:  outputsize,
		DataPoints:  len(candles),
		Data:        candles,
		LastUpdated: now.Format(time.RFC3339),
		LatestPrice: &latest,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
