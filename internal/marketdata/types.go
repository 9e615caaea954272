package marketdata

import (
	"stock-screener/internal/models"
)

// StockData is the candle payload served to tool callers and stored in the
// cache. The shape is stable so cached entries round-trip cleanly.
type StockData struct {
	Symbol      string          `json:"symbol"`
	Interval    string          `json:"interval"`
	OutputSize  string          `json:"outputsize"`
	DataPoints  int             `json:"data_points"`
	Data        []models.Candle `json:"data"`
	LastUpdated string          `json:"last_updated"`
	LatestPrice *float64        `json:"latest_price"`
}

// Frame converts the payload into the screener's frame form.
func (s *StockData) Frame() *models.Frame {
	return models.NewFrame(s.Symbol, s.Interval, s.Data)
}

// Empty reports whether the payload carries no candles.
func (s *StockData) Empty() bool {
	return s == nil || len(s.Data) == 0
}
