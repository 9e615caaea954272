package screener

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock-screener/internal/models"
)

func parseFilter(t *testing.T, raw string) *models.Filter {
	t.Helper()
	var f models.Filter
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return &f
}

func newTestEvaluator(p *fakeProvider) *Evaluator {
	if p == nil {
		p = &fakeProvider{}
	}
	return NewEvaluator(p, zap.NewNop())
}

func TestEvaluatePriceGreaterThan(t *testing.T) {
	e := newTestEvaluator(nil)
	frames := dailyFrames([]float64{100, 102, 105})

	f := parseFilter(t, `{"type":"price","field":"close","operator":"gt","value":100}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 105.0, detail["current_value"])
	assert.Equal(t, 100.0, detail["compare_value"])

	f = parseFilter(t, `{"type":"price","field":"close","operator":"gt","value":200}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
}

func TestEvaluateOffsetReadsEarlierCandle(t *testing.T) {
	e := newTestEvaluator(nil)
	frames := dailyFrames([]float64{100, 110, 90})

	f := parseFilter(t, `{"type":"price","field":"close","operator":"gt","value":105,"offset":1}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 110.0, detail["current_value"])
}

func TestEvaluateIndicatorFilter(t *testing.T) {
	e := newTestEvaluator(nil)
	// Monotonic gains drive Wilder RSI to 100.
	frames := dailyFrames(risingCloses(40))

	f := parseFilter(t, `{"type":"indicator","field":"RSI","operator":"gt","value":70,"time_period":14}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 14, detail["time_period"])
	assert.InDelta(t, 100.0, detail["current_value"].(float64), 1e-9)
}

func TestEvaluateBetweenIsInclusive(t *testing.T) {
	e := newTestEvaluator(nil)
	frames := dailyFrames([]float64{100, 105})

	f := parseFilter(t, `{"type":"price","field":"close","operator":"between","value":[105,110]}`)
	passed, _ := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)

	f = parseFilter(t, `{"type":"price","field":"close","operator":"between","value":[106,110]}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
}

func TestEvaluateMeasureRHS(t *testing.T) {
	e := newTestEvaluator(nil)
	// Green latest candle: close above open.
	frames := dailyFrames([]float64{100, 102, 104})

	f := parseFilter(t, `{
		"type":"price","field":"close","operator":"gt",
		"value":{"type":"attribute","field":"open"}
	}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 103.5, detail["compare_value"])
}

func TestEvaluateCrossedAboveMovingAverage(t *testing.T) {
	e := newTestEvaluator(nil)
	// SMA(3): 9.67 then 10.33. Close jumps 9 -> 12 through it.
	frames := dailyFrames([]float64{10, 10, 10, 9, 12})

	f := parseFilter(t, `{
		"type":"price","field":"close","operator":"crossed_above",
		"value":{"type":"indicator","field":"sma_3","time_period":3}
	}`)
	passed, _ := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)

	f = parseFilter(t, `{
		"type":"price","field":"close","operator":"crossed_below",
		"value":{"type":"indicator","field":"sma_3","time_period":3}
	}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
}

func TestEvaluateCrossoverStaticDataFallback(t *testing.T) {
	e := newTestEvaluator(nil)
	frames := dailyFrames([]float64{100, 100, 100, 100})

	f := parseFilter(t, `{"type":"price","field":"close","operator":"crossed_above","value":50}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, "Static data detected, fell back to >", detail["note"])
}

func TestEvaluateVolumeAboveAverage(t *testing.T) {
	e := newTestEvaluator(nil)
	candles := candlesFromCloses(risingCloses(21))
	candles[len(candles)-1].Volume = 3000
	frames := map[string]*models.Frame{"daily": models.NewFrame("TEST", "daily", candles)}

	// Window average is (19*1000 + 3000)/20 = 1100; threshold 1650.
	f := parseFilter(t, `{"type":"volume","operator":"gt_avg","avg_period":20,"multiplier":1.5}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.InDelta(t, 1100.0, detail["average_volume"].(float64), 1e-9)
	assert.InDelta(t, 1650.0, detail["threshold"].(float64), 1e-9)

	f = parseFilter(t, `{"type":"volume","operator":"gt_avg","avg_period":20,"multiplier":3}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
}

func TestEvaluatePriceChange(t *testing.T) {
	e := newTestEvaluator(nil)
	frames := dailyFrames([]float64{100, 100, 110})

	f := parseFilter(t, `{"type":"price_change","field":"close","operator":"gt","value":5}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.InDelta(t, 10.0, detail["current_value"].(float64), 1e-9)
	assert.Equal(t, 1, detail["lookback"])
}

func TestEvaluateVolumeChange(t *testing.T) {
	e := newTestEvaluator(nil)
	candles := candlesFromCloses([]float64{100, 101, 102})
	candles[len(candles)-1].Volume = 1500
	frames := map[string]*models.Frame{"daily": models.NewFrame("TEST", "daily", candles)}

	// Volume steps 1000 -> 1500, a 50% jump.
	f := parseFilter(t, `{"type":"volume_change","operator":"gt","value":25}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, "volume", detail["field"])
	assert.InDelta(t, 50.0, detail["current_value"].(float64), 1e-9)
	assert.Equal(t, 1, detail["lookback"])

	f = parseFilter(t, `{"type":"volume_change","operator":"gt","value":60}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
}

func TestEvaluateGapUp(t *testing.T) {
	e := newTestEvaluator(nil)
	candles := []models.Candle{
		{Date: "2024-01-01", Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
		{Date: "2024-01-02", Open: 105, High: 108, Low: 104, Close: 107, Volume: 1200},
	}
	frames := map[string]*models.Frame{"daily": models.NewFrame("TEST", "daily", candles)}

	f := parseFilter(t, `{"type":"gap","operator":"gt","value":3}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.InDelta(t, 5.0, detail["current_value"].(float64), 1e-9)
	assert.Equal(t, 105.0, detail["current_open"])
	assert.Equal(t, 100.0, detail["previous_close"])
}

func TestEvaluateHammerPattern(t *testing.T) {
	e := newTestEvaluator(nil)
	candles := []models.Candle{
		{Date: "2024-01-01", Open: 100, High: 100.3, Low: 90, Close: 98, Volume: 1000},
	}
	frames := map[string]*models.Frame{"daily": models.NewFrame("TEST", "daily", candles)}

	f := parseFilter(t, `{"type":"pattern","pattern":"HAMMER"}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, "hammer", detail["pattern"])

	f = parseFilter(t, `{"type":"pattern","pattern":"shooting_star"}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)

	f = parseFilter(t, `{"type":"pattern"}`)
	passed, detail = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
	assert.Contains(t, detail["error"], "Pattern name is required")
}

func TestEvaluate52WeekDistanceFromHigh(t *testing.T) {
	// 260 days of history. The 52-week high is 200; last close 190 sits
	// exactly 5% below it.
	closes := make([]float64, 260)
	for i := range closes {
		closes[i] = 150
	}
	closes[200] = 199 // high = close + 1 = 200
	closes[259] = 190
	candles := candlesFromCloses(closes)

	p := &fakeProvider{full: map[string][]models.Candle{"TEST": candles}, candles: map[string][]models.Candle{"TEST": candles}}
	e := newTestEvaluator(p)
	frames := map[string]*models.Frame{"daily": models.NewFrame("TEST", "daily", candles)}

	f := parseFilter(t, `{"type":"price_52week","field":"close","operator":"lte","value":5.1,"metric":"distance_from_high_pct"}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 200.0, detail["high_52w"])
	assert.InDelta(t, 5.0, detail["current_value"].(float64), 1e-9)

	f = parseFilter(t, `{"type":"price_52week","field":"close","operator":"lte","value":4.9,"metric":"distance_from_high_pct"}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
}

func TestEvaluate52WeekDistanceFromLow(t *testing.T) {
	// The 52-week low is 100; last close 150 sits exactly 50% above it.
	closes := make([]float64, 260)
	for i := range closes {
		closes[i] = 101 // low = close - 1 = 100
	}
	closes[259] = 150
	candles := candlesFromCloses(closes)

	p := &fakeProvider{full: map[string][]models.Candle{"TEST": candles}, candles: map[string][]models.Candle{"TEST": candles}}
	e := newTestEvaluator(p)
	frames := map[string]*models.Frame{"daily": models.NewFrame("TEST", "daily", candles)}

	f := parseFilter(t, `{"type":"price_52week","field":"close","operator":"gte","value":49.9,"metric":"distance_from_low_pct"}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 100.0, detail["low_52w"])
	assert.InDelta(t, 50.0, detail["current_value"].(float64), 1e-9)

	f = parseFilter(t, `{"type":"price_52week","field":"close","operator":"gte","value":50.1,"metric":"distance_from_low_pct"}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
}

func TestEvaluateFinancialAlias(t *testing.T) {
	p := &fakeProvider{metrics: map[string]map[string]any{
		"TEST": {"peBasicExclExtraTTM": 18.0, "grossMarginTTM": 44.5},
	}}
	e := newTestEvaluator(p)
	frames := dailyFrames([]float64{100})

	f := parseFilter(t, `{"type":"financial","field":"pe_ratio","operator":"lt","value":30}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 18.0, detail["current_value"])

	// Underscore and case insensitive fallback.
	f = parseFilter(t, `{"type":"financial","field":"gross_margin_ttm","operator":"gt","value":40}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)

	f = parseFilter(t, `{"type":"financial","field":"no_such_metric","operator":"gt","value":1}`)
	passed, detail = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
	assert.Contains(t, detail["error"], "not found")
}

func TestEvaluateFunctionCount(t *testing.T) {
	e := newTestEvaluator(nil)
	// candlesFromCloses opens 0.5 below the close, so every bar is green.
	frames := dailyFrames(risingCloses(25))

	f := parseFilter(t, `{"type":"function","field":"count","operator":"gte","value":20}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 20.0, detail["current_value"])

	f = parseFilter(t, `{"type":"function","field":"max","operator":"gt","value":1000}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)

	f = parseFilter(t, `{"type":"function","field":"median","operator":"gt","value":1}`)
	passed, detail = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
	assert.Contains(t, detail["error"], "Unsupported function")
}

func TestEvaluateExpressionFilter(t *testing.T) {
	e := newTestEvaluator(nil)
	frames := dailyFrames([]float64{100, 105})

	f := parseFilter(t, `{
		"type": "price",
		"expression": {
			"type": "binary", "operator": ">",
			"left": {"type": "attribute", "field": "close"},
			"right": {"type": "constant", "value": 104}
		}
	}`)
	require.Equal(t, models.FilterExpression, f.Kind())

	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.Equal(t, 1.0, detail["result"])
}

func TestEvaluateMissingTimeframeIsFilterError(t *testing.T) {
	e := newTestEvaluator(nil)
	frames := dailyFrames([]float64{100})

	f := parseFilter(t, `{"type":"price","field":"close","operator":"gt","value":50,"timeframe":"15min"}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.False(t, passed)
	assert.Contains(t, detail["error"], "15min")
}

func TestEvaluateStringScalarComparison(t *testing.T) {
	e := newTestEvaluator(nil)
	frame := frameFromCloses("TEST", []float64{100})
	frame.SetScalar("sector", "Technology")
	frames := map[string]*models.Frame{"daily": frame}

	f := parseFilter(t, `{"type":"price","field":"sector","operator":"eq","value":"Technology"}`)
	passed, _ := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)

	f = parseFilter(t, `{"type":"price","field":"sector","operator":"contains","value":"tech"}`)
	passed, _ = e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
}

func TestEnrichFrameBroadcastsMetrics(t *testing.T) {
	p := &fakeProvider{metrics: map[string]map[string]any{
		"TEST": {"peBasicExclExtraTTM": 12.5},
	}}
	frame := frameFromCloses("TEST", []float64{100, 101})
	filters := []*models.Filter{
		parseFilter(t, `{"type":"price","field":"pe_ratio","operator":"lt","value":20}`),
	}

	enrichFrame(context.Background(), p, frame, filters, zap.NewNop())
	require.True(t, frame.HasField("pe_ratio"))

	e := newTestEvaluator(p)
	frames := map[string]*models.Frame{"daily": frame}
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, filters[0])
	assert.True(t, passed)
	assert.Equal(t, 12.5, detail["current_value"])
}

func TestEvaluateArithmeticAdjustedRHS(t *testing.T) {
	e := newTestEvaluator(nil)
	frames := dailyFrames([]float64{100, 102, 104})

	// close > open * 1.001
	f := parseFilter(t, `{
		"type":"price","field":"close","operator":"gt",
		"value":{"type":"attribute","field":"open"},
		"arithmeticOperator":"*","arithmeticValue":1.001
	}`)
	passed, detail := e.Evaluate(context.Background(), "TEST", frames, f)
	assert.True(t, passed)
	assert.InDelta(t, 103.5*1.001, detail["compare_value"].(float64), 1e-9)
}
