package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFieldPeriodSuffix(t *testing.T) {
	name, period := decodeField("rsi_9", 14)
	assert.Equal(t, "RSI", name)
	assert.Equal(t, 9, period)

	name, period = decodeField("sma_200", 14)
	assert.Equal(t, "SMA", name)
	assert.Equal(t, 200, period)

	name, period = decodeField("williams_r_9", 14)
	assert.Equal(t, "WILLIAMS_R", name)
	assert.Equal(t, 9, period)
}

func TestDecodeFieldLeavesMultiOutputNamesAlone(t *testing.T) {
	name, period := decodeField("macd_signal", 14)
	assert.Equal(t, "MACD_SIGNAL", name)
	assert.Equal(t, 14, period)

	name, _ = decodeField("bbands_upper", 20)
	assert.Equal(t, "BBANDS_UPPER", name)
}

func TestSeriesCompoundFieldMatchesDirectCall(t *testing.T) {
	f := risingFrame(40)

	viaName, err := Series(f, "rsi_9", 14, nil)
	require.NoError(t, err)
	direct := RSI(f, 9)

	for i := range direct {
		if math.IsNaN(direct[i]) {
			assert.True(t, math.IsNaN(viaName[i]))
			continue
		}
		assert.InDelta(t, direct[i], viaName[i], 1e-9)
	}
}

func TestSeriesMACDSignalLine(t *testing.T) {
	f := risingFrame(60)

	signal, err := Series(f, "MACD_SIGNAL", 14, nil)
	require.NoError(t, err)
	direct := MACD(f, 12, 26, 9)
	assert.InDelta(t, direct.Signal[len(direct.Signal)-1], signal[len(signal)-1], 1e-9)
}

func TestSeriesBollingerWidth(t *testing.T) {
	f := flatFrame(30, 100)

	width, err := Series(f, "BB_WIDTH", 20, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, width[len(width)-1], 1e-9)
}

func TestSeriesFallsBackToFrameColumn(t *testing.T) {
	f := frameFromCloses([]float64{1, 2, 3})

	closes, err := Series(f, "close", 14, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, closes)
}

func TestSeriesBroadcastsEnrichmentScalar(t *testing.T) {
	f := frameFromCloses([]float64{1, 2, 3})
	f.SetScalar("pe_ratio", 18.5)

	series, err := Series(f, "pe_ratio", 14, nil)
	require.NoError(t, err)
	require.Len(t, series, 3)
	for _, v := range series {
		assert.InDelta(t, 18.5, v, 1e-9)
	}
}

func TestSeriesUnknownName(t *testing.T) {
	f := frameFromCloses([]float64{1, 2, 3})
	_, err := Series(f, "bogus_indicator", 14, nil)
	assert.Error(t, err)
}

func TestAtNegativeIndexing(t *testing.T) {
	series := []float64{1, 2, 3}

	v, err := At(series, -1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = At(series, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = At(series, -4)
	assert.Error(t, err)
}

func TestSeriesSupertrendUsesMultiplierParam(t *testing.T) {
	f := risingFrame(40)

	tight, err := Series(f, "SUPERTREND", 10, Params{"multiplier": 1})
	require.NoError(t, err)
	wide, err := Series(f, "SUPERTREND", 10, Params{"multiplier": 5})
	require.NoError(t, err)

	assert.NotEqual(t, tight[len(tight)-1], wide[len(wide)-1])
}
