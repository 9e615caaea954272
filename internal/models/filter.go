package models

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Filter kinds.
const (
	FilterPrice        = "price"
	FilterIndicator    = "indicator"
	FilterVolume       = "volume"
	FilterPriceChange  = "price_change"
	FilterVolumeChange = "volume_change"
	FilterPrice52Week  = "price_52week"
	FilterGap          = "gap"
	FilterPattern      = "pattern"
	FilterFinancial    = "financial"
	FilterFunction     = "function"
	FilterExpression   = "expression"
)

// Comparison operators.
const (
	OpGT           = "gt"
	OpGTE          = "gte"
	OpLT           = "lt"
	OpLTE          = "lte"
	OpEQ           = "eq"
	OpNEQ          = "neq"
	OpBetween      = "between"
	OpCrossedAbove = "crossed_above"
	OpCrossedBelow = "crossed_below"
	OpGTAvg        = "gt_avg"
	OpContains     = "contains"
)

// Offset counts candles back from the latest: 0 is the newest bar. The wire
// form tolerates an integer, "latest" (0) or "Nd_ago" (N).
type Offset int

func (o *Offset) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*o = Offset(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("invalid offset %s", string(data))
	}
	*o = Offset(ParseOffset(s))
	return nil
}

func (o Offset) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(o))
}

// ParseOffset maps the string offset forms onto candle counts. Anything
// unrecognized is treated as the latest bar.
func ParseOffset(s string) int {
	if s == "latest" || s == "" {
		return 0
	}
	if strings.HasSuffix(s, "d_ago") {
		if n, err := strconv.Atoi(strings.TrimSuffix(s, "d_ago")); err == nil {
			return n
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return 0
}

// Measure is a dynamic comparison target: another attribute or indicator,
// optionally on its own timeframe and offset. A nil Offset inherits the
// filter's offset.
type Measure struct {
	Type       string             `json:"type"`
	Field      string             `json:"field"`
	TimePeriod int                `json:"time_period,omitempty"`
	Timeframe  string             `json:"timeframe,omitempty"`
	Offset     *Offset            `json:"offset,omitempty"`
	Params     map[string]float64 `json:"-"`
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	type alias Measure
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Measure(aux)
	var extras map[string]json.RawMessage
	if err := json.Unmarshal(data, &extras); err == nil {
		for _, key := range astParamKeys {
			rawVal, ok := extras[key]
			if !ok {
				continue
			}
			var v float64
			if err := json.Unmarshal(rawVal, &v); err != nil {
				continue
			}
			if m.Params == nil {
				m.Params = make(map[string]float64)
			}
			m.Params[key] = v
		}
	}
	return nil
}

// FilterValue is the RHS of a comparison: a scalar, a [min,max] pair for
// `between`, a string, or a nested measure object.
type FilterValue struct {
	Scalar  *float64
	Range   *[2]float64
	Str     string
	Measure *Measure

	raw json.RawMessage
}

func (v *FilterValue) UnmarshalJSON(data []byte) error {
	v.raw = append(json.RawMessage(nil), data...)

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		v.Scalar = &f
		return nil
	}
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return errors.Errorf("range value needs exactly 2 elements, got %d", len(pair))
		}
		v.Range = &[2]float64{pair[0], pair[1]}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Str = s
		return nil
	}
	var m Measure
	if err := json.Unmarshal(data, &m); err == nil && m.Type != "" {
		v.Measure = &m
		return nil
	}
	return errors.Errorf("unsupported filter value %s", string(data))
}

func (v *FilterValue) MarshalJSON() ([]byte, error) {
	if len(v.raw) > 0 {
		return v.raw, nil
	}
	switch {
	case v.Scalar != nil:
		return json.Marshal(*v.Scalar)
	case v.Range != nil:
		return json.Marshal(*v.Range)
	case v.Measure != nil:
		return json.Marshal(v.Measure)
	default:
		return json.Marshal(v.Str)
	}
}

// ScalarValue returns the plain numeric RHS, or 0 when absent.
func (v *FilterValue) ScalarValue() float64 {
	if v == nil || v.Scalar == nil {
		return 0
	}
	return *v.Scalar
}

// Filter is the typed form of one screening condition. The wire form is
// tolerant: the NL parser and the scan-builder UI emit `type: "simple"` with
// a `filterType` discriminator, flat or nested RHS, and integer or string
// offsets; Kind() and the custom decoders normalize all of it.
type Filter struct {
	ID         string             `json:"id,omitempty"`
	Type       string             `json:"type,omitempty"`
	FilterType string             `json:"filterType,omitempty"`
	Field      string             `json:"field,omitempty"`
	Operator   string             `json:"operator,omitempty"`
	Value      *FilterValue       `json:"value,omitempty"`
	TimePeriod int                `json:"time_period,omitempty"`
	Offset     Offset             `json:"offset,omitempty"`
	Timeframe  string             `json:"timeframe,omitempty"`
	Params     map[string]float64 `json:"params,omitempty"`

	// RHS adjustment: rhs = rhs <op> <value>.
	ArithmeticOperator string  `json:"arithmeticOperator,omitempty"`
	ArithmeticValue    float64 `json:"arithmeticValue,omitempty"`

	// Flat RHS hints from the scan builder: compare against another field,
	// possibly on another timeframe and offset.
	CompareToMeasure   string  `json:"compareToMeasure,omitempty"`
	CompareToTimeframe string  `json:"compareToTimeframe,omitempty"`
	CompareToOffset    *Offset `json:"compareToOffset,omitempty"`

	// Change / 52-week / volume / pattern / function specifics.
	Lookback     int     `json:"lookback,omitempty"`
	LookbackDays int     `json:"lookback_days,omitempty"`
	Metric       string  `json:"metric,omitempty"`
	AvgPeriod    int     `json:"avg_period,omitempty"`
	Multiplier   float64 `json:"multiplier,omitempty"`
	Pattern      string  `json:"pattern,omitempty"`

	Expression *ASTNode `json:"expression,omitempty"`

	raw json.RawMessage
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	type alias Filter
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "decoding filter")
	}
	*f = Filter(aux)
	f.raw = append(json.RawMessage(nil), data...)

	var extras map[string]json.RawMessage
	if err := json.Unmarshal(data, &extras); err == nil {
		for _, key := range astParamKeys {
			rawVal, ok := extras[key]
			if !ok {
				continue
			}
			var v float64
			if err := json.Unmarshal(rawVal, &v); err != nil {
				continue
			}
			if f.Params == nil {
				f.Params = make(map[string]float64)
			}
			f.Params[key] = v
		}
	}
	return nil
}

func (f *Filter) MarshalJSON() ([]byte, error) {
	if len(f.raw) > 0 {
		return f.raw, nil
	}
	type alias Filter
	return json.Marshal((*alias)(f))
}

// Kind resolves the effective filter type. Expression filters short-circuit
// everything else; "simple" defers to the filterType discriminator.
func (f *Filter) Kind() string {
	if f.Expression != nil {
		return FilterExpression
	}
	t := f.Type
	if t == "" || t == "simple" {
		if f.FilterType != "" {
			t = f.FilterType
		} else {
			t = FilterPrice
		}
	}
	return t
}

// EffectiveTimeframe is the LHS timeframe, defaulting to daily.
func (f *Filter) EffectiveTimeframe() string {
	if f.Timeframe == "" {
		return "daily"
	}
	return f.Timeframe
}

// EffectivePeriod is the indicator period, defaulting to 14 like the
// upstream scan builder.
func (f *Filter) EffectivePeriod() int {
	if f.TimePeriod <= 0 {
		return 14
	}
	return f.TimePeriod
}

// ParseFilters decodes a raw JSON array of filter configurations.
func ParseFilters(data []byte) ([]*Filter, error) {
	var filters []*Filter
	if err := json.Unmarshal(data, &filters); err != nil {
		return nil, errors.Wrap(err, "decoding filters")
	}
	return filters, nil
}
