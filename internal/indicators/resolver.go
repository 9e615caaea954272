package indicators

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"stock-screener/internal/models"
)

// singleParamIndicators are the names that accept a trailing period suffix,
// so "rsi_9" resolves to RSI with period 9.
var singleParamIndicators = map[string]struct{}{
	"RSI": {}, "SMA": {}, "EMA": {}, "WMA": {}, "RMA": {}, "TEMA": {},
	"HMA": {}, "VWMA": {}, "ATR": {}, "CCI": {}, "ADX": {}, "WILLIAMS_R": {},
}

// multiOutputPrefixes keep the suffix decoder away from names whose
// underscored parts select an output line rather than a period.
var multiOutputPrefixes = []string{"BBANDS", "MACD", "ICHIMOKU", "SUPERTREND"}

// decodeField splits a compound field like "sma_50" into its base indicator
// and period override. Names belonging to multi-output families pass through
// untouched.
func decodeField(field string, timePeriod int) (string, int) {
	upper := strings.ToUpper(field)
	for _, prefix := range multiOutputPrefixes {
		if strings.Contains(upper, prefix) {
			return upper, timePeriod
		}
	}
	if i := strings.LastIndex(upper, "_"); i > 0 {
		if n, err := strconv.Atoi(upper[i+1:]); err == nil {
			base := upper[:i]
			if _, ok := singleParamIndicators[base]; ok {
				return base, n
			}
		}
	}
	return upper, timePeriod
}

// Series resolves an indicator field name to its full series over the frame.
// Unknown names fall back to the frame's own columns, so enrichment fields
// and raw OHLCV attributes resolve through the same path.
func Series(f *models.Frame, field string, timePeriod int, params Params) ([]float64, error) {
	name, period := decodeField(field, timePeriod)

	switch name {
	case "RSI":
		return RSI(f, period), nil
	case "SMA":
		return SMA(f, period), nil
	case "EMA":
		return EMA(f, period), nil
	case "WMA":
		return WMA(f, period), nil
	case "RMA":
		return RMA(f, period), nil
	case "TEMA":
		return TEMA(f, period), nil
	case "HMA":
		return HMA(f, period), nil
	case "VWMA":
		return VWMA(f, period), nil
	case "VWAP":
		return VWAP(f), nil
	case "ADX":
		return ADX(f, period).ADX, nil
	case "ADX_PLUS_DI", "PLUS_DI":
		return ADX(f, period).PlusDI, nil
	case "ADX_MINUS_DI", "MINUS_DI":
		return ADX(f, period).MinusDI, nil
	case "STOCH", "STOCH_K":
		return Stochastic(f, period, params.getInt("smooth_k", 3)).K, nil
	case "ATR":
		return ATR(f, period), nil
	case "SUPERTREND":
		return Supertrend(f, period, params.getFloat("multiplier", 3.0)), nil
	case "CCI":
		return CCI(f, period), nil
	case "WILLIAMS_R":
		return WilliamsR(f, period), nil
	case "OBV":
		return OBV(f), nil
	case "MFI":
		return MFI(f, period), nil
	case "ROC":
		return ROC(f, period), nil
	case "MAX":
		return RollingMaxHigh(f, period), nil
	case "MIN":
		return RollingMinLow(f, period), nil
	case "PARABOLIC_SAR", "SAR":
		return ParabolicSAR(f, params.getFloat("step", 0.02), params.getFloat("max", 0.2)), nil
	}

	if strings.HasPrefix(name, "MACD") {
		res := MACD(f,
			params.getInt("fast", 12),
			params.getInt("slow", 26),
			params.getInt("signal", 9))
		switch name {
		case "MACD_SIGNAL":
			return res.Signal, nil
		case "MACD_HIST", "MACD_HISTOGRAM":
			return res.Histogram, nil
		default:
			return res.MACD, nil
		}
	}

	if strings.HasPrefix(name, "BBANDS") || name == "BB_WIDTH" ||
		name == "BB_UPPER" || name == "BB_LOWER" {
		res := Bollinger(f, period, params.getFloat("std_dev", 2.0))
		switch name {
		case "BBANDS_UPPER", "BB_UPPER":
			return res.Upper, nil
		case "BBANDS_LOWER", "BB_LOWER":
			return res.Lower, nil
		case "BBANDS_PCT_B":
			return res.PercentB, nil
		case "BB_WIDTH", "BBANDS_WIDTH":
			return res.Width, nil
		default:
			return res.Middle, nil
		}
	}

	if strings.HasPrefix(name, "ICHIMOKU") {
		res := Ichimoku(f,
			params.getInt("period_fast", 9),
			params.getInt("period_med", 26),
			params.getInt("period_slow", 52))
		switch {
		case strings.Contains(name, "KIJUN"):
			return res.Kijun, nil
		case strings.Contains(name, "SENKOU_A"):
			return res.SenkouA, nil
		case strings.Contains(name, "SENKOU_B"):
			return res.SenkouB, nil
		case strings.Contains(name, "CHIKOU"):
			return res.Chikou, nil
		default:
			return res.Tenkan, nil
		}
	}

	if strings.HasPrefix(name, "AROON") {
		res := Aroon(f, period)
		switch name {
		case "AROON_DOWN":
			return res.Down, nil
		case "AROON_OSC", "AROON_OSCILLATOR":
			return res.Oscillator, nil
		default:
			return res.Up, nil
		}
	}

	lower := strings.ToLower(field)
	if col, ok := f.Column(lower); ok {
		return col, nil
	}
	if f.HasField(lower) {
		// Broadcast enrichment scalar across every row.
		v, err := f.Value(lower, -1)
		if err != nil {
			return nil, err
		}
		out := make([]float64, f.Len())
		for i := range out {
			out[i] = v
		}
		return out, nil
	}
	return nil, errors.Errorf("unsupported indicator: %s", field)
}

// At indexes a series negative-from-the-end, matching frame indexing.
// Out-of-range positions return NaN with an error.
func At(series []float64, idx int) (float64, error) {
	pos := idx
	if pos < 0 {
		pos = len(series) + idx
	}
	if pos < 0 || pos >= len(series) {
		return math.NaN(), errors.Wrapf(models.ErrIndexOutOfRange,
			"index %d with %d values", idx, len(series))
	}
	return series[pos], nil
}

// Value resolves one indicator value at a (possibly negative) index.
func Value(f *models.Frame, field string, timePeriod, idx int, params Params) (float64, error) {
	series, err := Series(f, field, timePeriod, params)
	if err != nil {
		return math.NaN(), err
	}
	return At(series, idx)
}
