package models

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Candle is a single OHLCV bar. Date is pre-formatted by the market-data
// layer: "2006-01-02" for daily and coarser, "2006-01-02 15:04:05" for
// intraday intervals.
type Candle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// ErrMissingField marks a frame lookup for a column that neither the OHLCV
// data nor enrichment provides. Filters treat it as a failed condition, not
// a failed symbol.
var ErrMissingField = errors.New("field not found in frame")

// ErrIndexOutOfRange marks a candle index outside the frame.
var ErrIndexOutOfRange = errors.New("index out of range")

// Frame is one symbol's candle series for one timeframe, sorted ascending by
// timestamp. Indexing is negative-from-the-end: -1 is the latest candle.
// Enrichment attaches scalar columns that are logically broadcast across
// every row (fundamental metrics on the daily frame).
type Frame struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`

	scalars map[string]any
}

func NewFrame(symbol, interval string, candles []Candle) *Frame {
	return &Frame{Symbol: symbol, Interval: interval, Candles: candles}
}

func (f *Frame) Len() int { return len(f.Candles) }

func (f *Frame) Empty() bool { return len(f.Candles) == 0 }

// resolve maps a possibly negative index onto the candle slice.
func (f *Frame) resolve(idx int) (int, error) {
	pos := idx
	if pos < 0 {
		pos = len(f.Candles) + idx
	}
	if pos < 0 || pos >= len(f.Candles) {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d with %d candles", idx, len(f.Candles))
	}
	return pos, nil
}

func (f *Frame) At(idx int) (Candle, error) {
	pos, err := f.resolve(idx)
	if err != nil {
		return Candle{}, err
	}
	return f.Candles[pos], nil
}

// Latest returns the most recent candle.
func (f *Frame) Latest() (Candle, bool) {
	if len(f.Candles) == 0 {
		return Candle{}, false
	}
	return f.Candles[len(f.Candles)-1], true
}

// Column returns the named base series. Column names are the lower-case
// OHLCV fields; anything else is not a per-row series.
func (f *Frame) Column(name string) ([]float64, bool) {
	out := make([]float64, len(f.Candles))
	switch name {
	case "open":
		for i, c := range f.Candles {
			out[i] = c.Open
		}
	case "high":
		for i, c := range f.Candles {
			out[i] = c.High
		}
	case "low":
		for i, c := range f.Candles {
			out[i] = c.Low
		}
	case "close":
		for i, c := range f.Candles {
			out[i] = c.Close
		}
	case "volume":
		for i, c := range f.Candles {
			out[i] = float64(c.Volume)
		}
	default:
		return nil, false
	}
	return out, true
}

// HasField reports whether the field is resolvable on this frame, either as
// a base column or a broadcast scalar.
func (f *Frame) HasField(name string) bool {
	switch name {
	case "open", "high", "low", "close", "volume", "date":
		return true
	}
	_, ok := f.scalars[name]
	return ok
}

// SetScalar attaches an enrichment value broadcast across all rows.
func (f *Frame) SetScalar(name string, value any) {
	if f.scalars == nil {
		f.scalars = make(map[string]any)
	}
	f.scalars[name] = value
}

// RawValue resolves a field at an index without forcing a numeric type;
// broadcast scalars keep whatever type enrichment stored.
func (f *Frame) RawValue(field string, idx int) (any, error) {
	switch field {
	case "open", "high", "low", "close", "volume":
		c, err := f.At(idx)
		if err != nil {
			return nil, err
		}
		switch field {
		case "open":
			return c.Open, nil
		case "high":
			return c.High, nil
		case "low":
			return c.Low, nil
		case "close":
			return c.Close, nil
		default:
			return float64(c.Volume), nil
		}
	case "date":
		c, err := f.At(idx)
		if err != nil {
			return nil, err
		}
		return c.Date, nil
	}
	if v, ok := f.scalars[field]; ok {
		return v, nil
	}
	return nil, errors.Wrapf(ErrMissingField, "%q in %s frame", field, f.Interval)
}

// Value resolves a field at an index as a float. Non-numeric scalars come
// back as ErrMissingField so numeric filters fail cleanly.
func (f *Frame) Value(field string, idx int) (float64, error) {
	raw, err := f.RawValue(field, idx)
	if err != nil {
		return 0, err
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		fv, err := v.Float64()
		if err != nil {
			return 0, errors.Wrapf(ErrMissingField, "%q is not numeric", field)
		}
		return fv, nil
	default:
		return 0, errors.Wrapf(ErrMissingField, "%q is not numeric", field)
	}
}
