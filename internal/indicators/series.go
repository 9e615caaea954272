// Package indicators computes technical indicators over OHLCV frames.
//
// Every function returns a series aligned 1:1 with the input frame; warm-up
// positions that have no defined value hold NaN. Callers compare values with
// ordinary float operators, so an undefined region fails a condition instead
// of raising.
package indicators

import "math"

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean is a windowed arithmetic mean with NaN warm-up.
func rollingMean(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	var sum float64
	for i, v := range vals {
		sum += v
		if i >= period {
			sum -= vals[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// rollingStd is the windowed sample standard deviation (ddof=1).
func rollingStd(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	if period <= 1 || len(vals) < period {
		return out
	}
	for i := period - 1; i < len(vals); i++ {
		window := vals[i-period+1 : i+1]
		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)
		var sq float64
		for _, v := range window {
			d := v - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period-1))
	}
	return out
}

func rollingMax(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	for i := period - 1; i < len(vals); i++ {
		m := vals[i-period+1]
		for _, v := range vals[i-period+2 : i+1] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

func rollingMin(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	for i := period - 1; i < len(vals); i++ {
		m := vals[i-period+1]
		for _, v := range vals[i-period+2 : i+1] {
			if v < m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

func rollingSum(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	if period <= 0 {
		return out
	}
	// Leading NaNs delay the first defined window, matching min_periods
	// semantics over a series that starts undefined.
	firstValid := -1
	for i, v := range vals {
		if !math.IsNaN(v) {
			firstValid = i
			break
		}
	}
	if firstValid < 0 || len(vals)-firstValid < period {
		return out
	}
	var sum float64
	for i := firstValid; i < len(vals); i++ {
		sum += vals[i]
		if i-firstValid >= period {
			sum -= vals[i-period]
		}
		if i-firstValid >= period-1 {
			out[i] = sum
		}
	}
	return out
}

// ewm is an exponentially weighted mean with a fixed alpha, seeded at the
// first defined observation. The output stays NaN until minPeriods defined
// observations have been folded in.
func ewm(vals []float64, alpha float64, minPeriods int) []float64 {
	out := nanSeries(len(vals))
	var acc float64
	seeded := false
	count := 0
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if !seeded {
			acc = v
			seeded = true
		} else {
			acc = alpha*v + (1-alpha)*acc
		}
		count++
		if count >= minPeriods {
			out[i] = acc
		}
	}
	return out
}

// emaSpan is the span-parameterized EMA: alpha = 2/(period+1).
func emaSpan(vals []float64, period int) []float64 {
	return ewm(vals, 2/float64(period+1), 1)
}

// wilder is Wilder's smoothing: alpha = 1/period.
func wilder(vals []float64, period, minPeriods int) []float64 {
	return ewm(vals, 1/float64(period), minPeriods)
}
