package screener

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock-screener/internal/models"
)

func TestParseQueryIndicatorThreshold(t *testing.T) {
	filters := ParseQuery("RSI 14 above 70", zap.NewNop())
	require.Len(t, filters, 1)

	f := filters[0]
	assert.Equal(t, models.FilterIndicator, f["filterType"])
	assert.Equal(t, "rsi_14", f["field"])
	assert.Equal(t, 14, f["time_period"])
	assert.Equal(t, models.OpGT, f["operator"])
	assert.Equal(t, 70.0, f["value"])
	assert.NotEmpty(t, f["id"])
}

func TestParseQueryMeasureRHS(t *testing.T) {
	filters := ParseQuery("close above sma 50", zap.NewNop())
	require.Len(t, filters, 1)

	f := filters[0]
	assert.Equal(t, models.FilterPrice, f["filterType"])
	assert.Equal(t, "close", f["field"])
	assert.Equal(t, models.OpGT, f["operator"])

	value, ok := f["value"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "indicator", value["type"])
	assert.Equal(t, "sma_50", value["field"])
	assert.Equal(t, 50, value["time_period"])
}

func TestParseQueryMultipleConditions(t *testing.T) {
	filters := ParseQuery("rsi 14 above 70 and close above sma 50", zap.NewNop())
	require.Len(t, filters, 2)
	assert.Equal(t, "rsi_14", filters[0]["field"])
	assert.Equal(t, "close", filters[1]["field"])
}

func TestParseQueryOperatorPhrases(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"rsi 14 above 70", models.OpGT},
		{"rsi 14 greater than 70", models.OpGT},
		{"rsi 14 over 70", models.OpGT},
		{"rsi 14 below 30", models.OpLT},
		{"rsi 14 less than 30", models.OpLT},
		{"rsi 14 under 30", models.OpLT},
		{"close crossed above sma 50", models.OpCrossedAbove},
		{"close crossed below sma 50", models.OpCrossedBelow},
	}
	for _, tc := range cases {
		filters := ParseQuery(tc.query, zap.NewNop())
		require.Len(t, filters, 1, tc.query)
		assert.Equal(t, tc.want, filters[0]["operator"], tc.query)
	}
}

func TestParseQueryConsecutiveCandles(t *testing.T) {
	filters := ParseQuery("consecutive 3 red candles on 15min", zap.NewNop())
	require.Len(t, filters, 3)

	for i, f := range filters {
		assert.Equal(t, "close", f["field"])
		assert.Equal(t, models.FilterPrice, f["filterType"])
		assert.Equal(t, models.OpLT, f["operator"])
		assert.Equal(t, i, f["offset"])
		assert.Equal(t, "15min", f["timeframe"])

		value, ok := f["value"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "attribute", value["type"])
		assert.Equal(t, "open", value["field"])
	}
}

func TestParseQueryConsecutiveGreenDefaultsDaily(t *testing.T) {
	filters := ParseQuery("consecutive 2 green candles", zap.NewNop())
	require.Len(t, filters, 2)
	assert.Equal(t, models.OpGT, filters[0]["operator"])
	assert.Equal(t, "daily", filters[0]["timeframe"])
}

func TestParseQueryHourAliasMapsTo60Min(t *testing.T) {
	filters := ParseQuery("consecutive 2 red candles on 1h", zap.NewNop())
	require.Len(t, filters, 2)
	assert.Equal(t, "60min", filters[0]["timeframe"])
}

func TestParseQuerySkipsUnparseableConditions(t *testing.T) {
	filters := ParseQuery("to the moon and rsi 14 above 70", zap.NewNop())
	require.Len(t, filters, 1)
	assert.Equal(t, "rsi_14", filters[0]["field"])
}

func TestParseQueryEmitsValidFilters(t *testing.T) {
	// Round-trip through the typed decoder: everything the parser emits must
	// be a well-formed filter.
	raw := ParseQuery("rsi 14 above 70 and close above sma 50 and consecutive 2 green candles", zap.NewNop())
	require.Len(t, raw, 4)

	encoded, err := json.Marshal(raw)
	require.NoError(t, err)
	filters, err := models.ParseFilters(encoded)
	require.NoError(t, err)
	require.Len(t, filters, 4)

	assert.Equal(t, models.FilterIndicator, filters[0].Kind())
	assert.Equal(t, models.FilterPrice, filters[1].Kind())
	require.NotNil(t, filters[1].Value.Measure)
	assert.Equal(t, "sma_50", filters[1].Value.Measure.Field)
	assert.Equal(t, 1, int(filters[3].Offset))
}
