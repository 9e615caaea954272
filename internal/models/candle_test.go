package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame() *Frame {
	return NewFrame("AAPL", "daily", []Candle{
		{Date: "2024-01-01", Open: 100, High: 105, Low: 99, Close: 104, Volume: 1000},
		{Date: "2024-01-02", Open: 104, High: 108, Low: 103, Close: 107, Volume: 1500},
		{Date: "2024-01-03", Open: 107, High: 109, Low: 105, Close: 106, Volume: 900},
	})
}

func TestFrameNegativeIndexing(t *testing.T) {
	f := sampleFrame()

	latest, err := f.At(-1)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", latest.Date)

	first, err := f.At(0)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", first.Date)

	prev, err := f.At(-2)
	require.NoError(t, err)
	assert.Equal(t, 107.0, prev.Close)

	_, err = f.At(-4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = f.At(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestFrameValueResolvesColumnsAndScalars(t *testing.T) {
	f := sampleFrame()

	v, err := f.Value("close", -1)
	require.NoError(t, err)
	assert.Equal(t, 106.0, v)

	v, err = f.Value("volume", -2)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, v)

	_, err = f.Value("pe_ratio", -1)
	assert.ErrorIs(t, err, ErrMissingField)

	f.SetScalar("pe_ratio", 22.5)
	v, err = f.Value("pe_ratio", -1)
	require.NoError(t, err)
	assert.Equal(t, 22.5, v)
	assert.True(t, f.HasField("pe_ratio"))
}

func TestFrameNonNumericScalarFailsNumericLookup(t *testing.T) {
	f := sampleFrame()
	f.SetScalar("sector", "technology")

	raw, err := f.RawValue("sector", -1)
	require.NoError(t, err)
	assert.Equal(t, "technology", raw)

	_, err = f.Value("sector", -1)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestFrameColumn(t *testing.T) {
	f := sampleFrame()

	closes, ok := f.Column("close")
	require.True(t, ok)
	assert.Equal(t, []float64{104, 107, 106}, closes)

	_, ok = f.Column("sector")
	assert.False(t, ok)
}
