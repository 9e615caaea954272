package screener

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stock-screener/internal/models"
)

// Preset is a canned scan definition. Filters are kept as loose maps so
// custom parameter overrides can patch any key before the typed decode.
type Preset struct {
	Description string
	Filters     []map[string]any
	FilterLogic string
	Note        string
}

var presets = map[string]Preset{
	"rsi_oversold": {
		Description: "Stocks with RSI below 30 (potentially oversold)",
		Filters: []map[string]any{
			{"type": "indicator", "field": "RSI", "operator": "lt", "value": 30, "time_period": 14},
		},
	},
	"rsi_overbought": {
		Description: "Stocks with RSI above 70 (potentially overbought)",
		Filters: []map[string]any{
			{"type": "indicator", "field": "RSI", "operator": "gt", "value": 70, "time_period": 14},
		},
	},
	"bullish_crossover": {
		Description: "Price crosses above 50-day moving average",
		Filters: []map[string]any{
			{
				"type": "price", "field": "close", "operator": "crossed_above",
				"value": map[string]any{"type": "indicator", "field": "sma_50", "time_period": 50},
			},
		},
	},
	"bearish_crossover": {
		Description: "Price crosses below 50-day moving average",
		Filters: []map[string]any{
			{
				"type": "price", "field": "close", "operator": "crossed_below",
				"value": map[string]any{"type": "indicator", "field": "sma_50", "time_period": 50},
			},
		},
	},
	"macd_bullish": {
		Description: "MACD line crosses above its signal line",
		Filters: []map[string]any{
			{
				"type": "indicator", "field": "MACD", "operator": "crossed_above",
				"value": map[string]any{"type": "indicator", "field": "MACD_SIGNAL"},
			},
		},
	},
	"high_volume": {
		Description: "Volume more than 2x the 20-day average",
		Filters: []map[string]any{
			{"type": "volume", "operator": "gt_avg", "avg_period": 20, "multiplier": 2.0},
		},
	},
	"breakout_52week": {
		Description: "Price near 52-week high (within 5%)",
		Filters: []map[string]any{
			{
				"type": "price_52week", "field": "close", "operator": "lte",
				"value": 5.0, "metric": "distance_from_high_pct", "lookback_days": 252,
			},
		},
		FilterLogic: "AND",
	},
	"strong_momentum": {
		Description: "Strong upward momentum: RSI > 60 with price above 20-day SMA",
		Filters: []map[string]any{
			{"type": "indicator", "field": "RSI", "operator": "gt", "value": 60, "time_period": 14},
			{
				"type": "price", "field": "close", "operator": "gt",
				"value": map[string]any{"type": "indicator", "field": "sma_20", "time_period": 20},
			},
		},
		FilterLogic: "AND",
	},
	"breakout_candidate": {
		Description: "RSI > 50 with high volume",
		Filters: []map[string]any{
			{"type": "indicator", "field": "RSI", "operator": "gt", "value": 50, "time_period": 14},
			{"type": "volume", "operator": "gt_avg", "avg_period": 20, "multiplier": 1.5},
		},
		FilterLogic: "AND",
	},
}

// PresetNames lists the available presets, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunPreset executes a named preset. customParams patch matching keys on
// each filter before the scan (a key absent from a filter is left alone).
func (s *Scanner) RunPreset(ctx context.Context, presetName string, symbols []string, customParams map[string]any) (*models.ScanResult, error) {
	preset, ok := presets[presetName]
	if !ok {
		return nil, errors.Errorf("unknown preset: %s. Available: %s",
			presetName, strings.Join(PresetNames(), ", "))
	}

	s.logger.Info("running preset scan", zap.String("preset", presetName))

	filterMaps := make([]map[string]any, 0, len(preset.Filters))
	for _, template := range preset.Filters {
		filter := make(map[string]any, len(template))
		for k, v := range template {
			filter[k] = v
		}
		for k, v := range customParams {
			if _, exists := filter[k]; exists {
				filter[k] = v
			}
		}
		filterMaps = append(filterMaps, filter)
	}

	raw, err := json.Marshal(filterMaps)
	if err != nil {
		return nil, errors.Wrap(err, "encoding preset filters")
	}
	filters, err := models.ParseFilters(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decoding preset filters")
	}

	logic := preset.FilterLogic
	if logic == "" {
		logic = "AND"
	}
	result, err := s.Scan(ctx, symbols, filters, logic)
	if err != nil {
		return nil, err
	}
	result.PresetName = presetName
	result.PresetDescription = preset.Description
	if preset.Note != "" {
		result.Note = preset.Note
	}
	return result, nil
}
