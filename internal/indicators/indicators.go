package indicators

import (
	"math"

	"stock-screener/internal/models"
)

// Params carries optional indicator tuning knobs collected off the wire.
// Missing keys fall back to the conventional defaults.
type Params map[string]float64

func (p Params) getInt(key string, def int) int {
	if v, ok := p[key]; ok && v > 0 {
		return int(v)
	}
	return def
}

func (p Params) getFloat(key string, def float64) float64 {
	if v, ok := p[key]; ok && v > 0 {
		return v
	}
	return def
}

// SMA is the simple moving average of close.
func SMA(f *models.Frame, period int) []float64 {
	closes, _ := f.Column("close")
	return rollingMean(closes, period)
}

// EMA is the exponential moving average of close, alpha = 2/(period+1),
// seeded at the first bar.
func EMA(f *models.Frame, period int) []float64 {
	closes, _ := f.Column("close")
	return emaSpan(closes, period)
}

// WMA is the linearly weighted moving average of close, newest bar weighted
// heaviest.
func WMA(f *models.Frame, period int) []float64 {
	closes, _ := f.Column("close")
	return wmaOf(closes, period)
}

// RMA is the Wilder-smoothed moving average of close, alpha = 1/period.
func RMA(f *models.Frame, period int) []float64 {
	closes, _ := f.Column("close")
	return wilder(closes, period, 1)
}

// TEMA is the triple exponential moving average: 3*e1 - 3*e2 + e3.
func TEMA(f *models.Frame, period int) []float64 {
	closes, _ := f.Column("close")
	e1 := emaSpan(closes, period)
	e2 := emaSpan(e1, period)
	e3 := emaSpan(e2, period)
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = 3*e1[i] - 3*e2[i] + e3[i]
	}
	return out
}

func wmaOf(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	denom := float64(period*(period+1)) / 2
	for i := period - 1; i < len(vals); i++ {
		var sum float64
		defined := true
		for j := 0; j < period; j++ {
			v := vals[i-period+1+j]
			if math.IsNaN(v) {
				defined = false
				break
			}
			sum += v * float64(j+1)
		}
		if defined {
			out[i] = sum / denom
		}
	}
	return out
}

// HMA is the Hull moving average: WMA(2*WMA(n/2) - WMA(n), sqrt(n)).
func HMA(f *models.Frame, period int) []float64 {
	closes, _ := f.Column("close")
	half := wmaOf(closes, period/2)
	full := wmaOf(closes, period)
	diff := make([]float64, len(closes))
	for i := range diff {
		diff[i] = 2*half[i] - full[i]
	}
	return wmaOf(diff, int(math.Round(math.Sqrt(float64(period)))))
}

// VWMA is the volume-weighted moving average of close.
func VWMA(f *models.Frame, period int) []float64 {
	out := nanSeries(f.Len())
	if period <= 0 || f.Len() < period {
		return out
	}
	for i := period - 1; i < f.Len(); i++ {
		var pv, v float64
		for _, c := range f.Candles[i-period+1 : i+1] {
			pv += c.Close * float64(c.Volume)
			v += float64(c.Volume)
		}
		if v > 0 {
			out[i] = pv / v
		}
	}
	return out
}

// VWAP is the cumulative volume-weighted average of the typical price,
// anchored at the start of the frame.
func VWAP(f *models.Frame) []float64 {
	out := nanSeries(f.Len())
	var cumPV, cumV float64
	for i, c := range f.Candles {
		tp := (c.High + c.Low + c.Close) / 3
		cumPV += tp * float64(c.Volume)
		cumV += float64(c.Volume)
		if cumV > 0 {
			out[i] = cumPV / cumV
		}
	}
	return out
}

// RSI is Wilder's relative strength index. The first `period` bars are NaN.
func RSI(f *models.Frame, period int) []float64 {
	closes, _ := f.Column("close")
	n := len(closes)
	gains := nanSeries(n)
	losses := nanSeries(n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i], losses[i] = d, 0
		} else {
			gains[i], losses[i] = 0, -d
		}
	}
	avgGain := wilder(gains, period, period)
	avgLoss := wilder(losses, period, period)
	out := nanSeries(n)
	for i := 0; i < n; i++ {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		if l == 0 {
			if g == 0 {
				continue
			}
			out[i] = 100
			continue
		}
		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDResult bundles the MACD line, its signal EMA and the histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow), the signal EMA over the MACD line and
// their difference.
func MACD(f *models.Frame, fast, slow, signal int) MACDResult {
	fastEMA := EMA(f, fast)
	slowEMA := EMA(f, slow)
	line := make([]float64, len(fastEMA))
	for i := range line {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := emaSpan(line, signal)
	hist := make([]float64, len(line))
	for i := range hist {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}

// BollingerResult bundles the band lines plus the %B position and the
// normalized band width.
type BollingerResult struct {
	Upper    []float64
	Middle   []float64
	Lower    []float64
	PercentB []float64
	Width    []float64
}

// Bollinger computes SMA +/- stdDev sample standard deviations.
func Bollinger(f *models.Frame, period int, stdDev float64) BollingerResult {
	closes, _ := f.Column("close")
	middle := rollingMean(closes, period)
	sd := rollingStd(closes, period)
	n := len(closes)
	upper := nanSeries(n)
	lower := nanSeries(n)
	pctB := nanSeries(n)
	width := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(middle[i]) || math.IsNaN(sd[i]) {
			continue
		}
		upper[i] = middle[i] + stdDev*sd[i]
		lower[i] = middle[i] - stdDev*sd[i]
		if span := upper[i] - lower[i]; span != 0 {
			pctB[i] = (closes[i] - lower[i]) / span
		}
		if middle[i] != 0 {
			width[i] = (upper[i] - lower[i]) / middle[i]
		}
	}
	return BollingerResult{Upper: upper, Middle: middle, Lower: lower, PercentB: pctB, Width: width}
}

// trueRange seeds the first bar with high-low since there is no prior close.
func trueRange(f *models.Frame) []float64 {
	tr := make([]float64, f.Len())
	for i, c := range f.Candles {
		if i == 0 {
			tr[i] = c.High - c.Low
			continue
		}
		prevClose := f.Candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return tr
}

// ATR is the Wilder-smoothed true range.
func ATR(f *models.Frame, period int) []float64 {
	return wilder(trueRange(f), period, 1)
}

// ADXResult bundles the directional components alongside the ADX line.
type ADXResult struct {
	PlusDI  []float64
	MinusDI []float64
	DX      []float64
	ADX     []float64
}

// ADX computes Wilder's directional movement system: smoothed +DM/-DM over
// ATR gives +DI/-DI, DX is their normalized spread and ADX smooths DX.
func ADX(f *models.Frame, period int) ADXResult {
	n := f.Len()
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := f.Candles[i].High - f.Candles[i-1].High
		down := f.Candles[i-1].Low - f.Candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	atr := ATR(f, period)
	smoothPlus := wilder(plusDM, period, 1)
	smoothMinus := wilder(minusDM, period, 1)

	plusDI := nanSeries(n)
	minusDI := nanSeries(n)
	dx := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || atr[i] == 0 {
			continue
		}
		plusDI[i] = 100 * smoothPlus[i] / atr[i]
		minusDI[i] = 100 * smoothMinus[i] / atr[i]
		if sum := plusDI[i] + minusDI[i]; sum != 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
		}
	}
	adx := ewm(dx, 1/float64(period), 1)
	return ADXResult{PlusDI: plusDI, MinusDI: minusDI, DX: dx, ADX: adx}
}

// StochasticResult holds the smoothed %K line.
type StochasticResult struct {
	K []float64
}

// Stochastic computes the %K oscillator over `period` bars, SMA-smoothed by
// `smoothK`.
func Stochastic(f *models.Frame, period, smoothK int) StochasticResult {
	highs, _ := f.Column("high")
	lows, _ := f.Column("low")
	closes, _ := f.Column("close")
	hh := rollingMax(highs, period)
	ll := rollingMin(lows, period)
	n := f.Len()
	raw := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) {
			continue
		}
		if span := hh[i] - ll[i]; span != 0 {
			raw[i] = 100 * (closes[i] - ll[i]) / span
		}
	}
	// Smooth only the defined region so warm-up NaNs stay NaN.
	smoothed := nanSeries(n)
	firstValid := -1
	for i, v := range raw {
		if !math.IsNaN(v) {
			firstValid = i
			break
		}
	}
	if firstValid >= 0 {
		partial := rollingMean(raw[firstValid:], smoothK)
		copy(smoothed[firstValid:], partial)
	}
	return StochasticResult{K: smoothed}
}

// Supertrend computes the ATR-banded trend line. The series flips between
// the final upper and lower bands as closes break through them.
func Supertrend(f *models.Frame, period int, multiplier float64) []float64 {
	n := f.Len()
	out := nanSeries(n)
	if n == 0 {
		return out
	}
	atr := ATR(f, period)
	basicUpper := make([]float64, n)
	basicLower := make([]float64, n)
	for i, c := range f.Candles {
		hl2 := (c.High + c.Low) / 2
		basicUpper[i] = hl2 + multiplier*atr[i]
		basicLower[i] = hl2 - multiplier*atr[i]
	}
	finalUpper := make([]float64, n)
	finalLower := make([]float64, n)
	finalUpper[0] = basicUpper[0]
	finalLower[0] = basicLower[0]
	out[0] = finalUpper[0]
	for i := 1; i < n; i++ {
		close := f.Candles[i].Close
		prevClose := f.Candles[i-1].Close

		if basicUpper[i] < finalUpper[i-1] || prevClose > finalUpper[i-1] {
			finalUpper[i] = basicUpper[i]
		} else {
			finalUpper[i] = finalUpper[i-1]
		}
		if basicLower[i] > finalLower[i-1] || prevClose < finalLower[i-1] {
			finalLower[i] = basicLower[i]
		} else {
			finalLower[i] = finalLower[i-1]
		}

		switch {
		case out[i-1] == finalUpper[i-1] && close <= finalUpper[i]:
			out[i] = finalUpper[i]
		case out[i-1] == finalUpper[i-1] && close > finalUpper[i]:
			out[i] = finalLower[i]
		case out[i-1] == finalLower[i-1] && close >= finalLower[i]:
			out[i] = finalLower[i]
		default:
			out[i] = finalUpper[i]
		}
	}
	return out
}

// ParabolicSAR computes the stop-and-reverse series with the given
// acceleration step and cap. The SAR is clamped to the two prior extremes.
func ParabolicSAR(f *models.Frame, step, maxStep float64) []float64 {
	n := f.Len()
	out := nanSeries(n)
	if n < 2 {
		return out
	}
	uptrend := f.Candles[1].Close > f.Candles[0].Close
	sar := f.Candles[0].Low
	ep := f.Candles[0].High
	if !uptrend {
		sar = f.Candles[0].High
		ep = f.Candles[0].Low
	}
	af := step
	out[0] = sar
	for i := 1; i < n; i++ {
		high, low := f.Candles[i].High, f.Candles[i].Low
		sar = sar + af*(ep-sar)
		if uptrend {
			// SAR may not enter the range of the last two candles.
			sar = math.Min(sar, f.Candles[i-1].Low)
			if i >= 2 {
				sar = math.Min(sar, f.Candles[i-2].Low)
			}
			if low < sar {
				uptrend = false
				sar = ep
				ep = low
				af = step
			} else if high > ep {
				ep = high
				af = math.Min(af+step, maxStep)
			}
		} else {
			sar = math.Max(sar, f.Candles[i-1].High)
			if i >= 2 {
				sar = math.Max(sar, f.Candles[i-2].High)
			}
			if high > sar {
				uptrend = true
				sar = ep
				ep = high
				af = step
			} else if low < ep {
				ep = low
				af = math.Min(af+step, maxStep)
			}
		}
		out[i] = sar
	}
	return out
}

// IchimokuResult bundles the five Ichimoku lines. Senkou spans are shifted
// forward by the kijun period; chikou is the close shifted backward by it.
type IchimokuResult struct {
	Tenkan  []float64
	Kijun   []float64
	SenkouA []float64
	SenkouB []float64
	Chikou  []float64
}

func midline(highs, lows []float64, period int) []float64 {
	hh := rollingMax(highs, period)
	ll := rollingMin(lows, period)
	out := nanSeries(len(highs))
	for i := range out {
		if !math.IsNaN(hh[i]) && !math.IsNaN(ll[i]) {
			out[i] = (hh[i] + ll[i]) / 2
		}
	}
	return out
}

// Ichimoku computes the cloud with the conventional 9/26/52 structure
// (periods overridable).
func Ichimoku(f *models.Frame, tenkanP, kijunP, senkouBP int) IchimokuResult {
	highs, _ := f.Column("high")
	lows, _ := f.Column("low")
	closes, _ := f.Column("close")
	n := f.Len()

	tenkan := midline(highs, lows, tenkanP)
	kijun := midline(highs, lows, kijunP)

	senkouA := nanSeries(n)
	senkouB := nanSeries(n)
	rawB := midline(highs, lows, senkouBP)
	for i := kijunP; i < n; i++ {
		a := (tenkan[i-kijunP] + kijun[i-kijunP]) / 2
		if !math.IsNaN(a) {
			senkouA[i] = a
		}
		senkouB[i] = rawB[i-kijunP]
	}

	chikou := nanSeries(n)
	for i := 0; i+kijunP < n; i++ {
		chikou[i] = closes[i+kijunP]
	}
	return IchimokuResult{Tenkan: tenkan, Kijun: kijun, SenkouA: senkouA, SenkouB: senkouB, Chikou: chikou}
}

// AroonResult bundles the up/down lines and their oscillator.
type AroonResult struct {
	Up         []float64
	Down       []float64
	Oscillator []float64
}

// Aroon computes ((period - bars_since_extreme) / period) * 100 over a
// window of period+1 bars.
func Aroon(f *models.Frame, period int) AroonResult {
	highs, _ := f.Column("high")
	lows, _ := f.Column("low")
	n := f.Len()
	up := nanSeries(n)
	down := nanSeries(n)
	osc := nanSeries(n)
	for i := period; i < n; i++ {
		hiIdx, loIdx := 0, 0
		for j := 1; j <= period; j++ {
			if highs[i-period+j] > highs[i-period+hiIdx] {
				hiIdx = j
			}
			if lows[i-period+j] < lows[i-period+loIdx] {
				loIdx = j
			}
		}
		barsSinceHigh := period - hiIdx
		barsSinceLow := period - loIdx
		up[i] = float64(period-barsSinceHigh) / float64(period) * 100
		down[i] = float64(period-barsSinceLow) / float64(period) * 100
		osc[i] = up[i] - down[i]
	}
	return AroonResult{Up: up, Down: down, Oscillator: osc}
}

// CCI is the commodity channel index over the typical price. A zero mean
// deviation leaves the value undefined.
func CCI(f *models.Frame, period int) []float64 {
	n := f.Len()
	tp := make([]float64, n)
	for i, c := range f.Candles {
		tp[i] = (c.High + c.Low + c.Close) / 3
	}
	sma := rollingMean(tp, period)
	out := nanSeries(n)
	for i := period - 1; i < n; i++ {
		if math.IsNaN(sma[i]) {
			continue
		}
		var mad float64
		for _, v := range tp[i-period+1 : i+1] {
			mad += math.Abs(v - sma[i])
		}
		mad /= float64(period)
		if mad == 0 {
			continue
		}
		out[i] = (tp[i] - sma[i]) / (0.015 * mad)
	}
	return out
}

// WilliamsR is %R: -100..0, measuring the close against the rolling range.
func WilliamsR(f *models.Frame, period int) []float64 {
	highs, _ := f.Column("high")
	lows, _ := f.Column("low")
	closes, _ := f.Column("close")
	hh := rollingMax(highs, period)
	ll := rollingMin(lows, period)
	out := nanSeries(f.Len())
	for i := range out {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) {
			continue
		}
		if span := hh[i] - ll[i]; span != 0 {
			out[i] = -100 * (hh[i] - closes[i]) / span
		}
	}
	return out
}

// OBV is on-balance volume, cumulative from zero at the first bar.
func OBV(f *models.Frame) []float64 {
	n := f.Len()
	out := nanSeries(n)
	if n == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < n; i++ {
		out[i] = out[i-1]
		switch {
		case f.Candles[i].Close > f.Candles[i-1].Close:
			out[i] += float64(f.Candles[i].Volume)
		case f.Candles[i].Close < f.Candles[i-1].Close:
			out[i] -= float64(f.Candles[i].Volume)
		}
	}
	return out
}

// MFI is the money flow index. All-negative flow pins the value at 0,
// all-positive at 100; a window with no flow at all stays undefined.
func MFI(f *models.Frame, period int) []float64 {
	n := f.Len()
	posFlow := nanSeries(n)
	negFlow := nanSeries(n)
	prevTP := math.NaN()
	for i, c := range f.Candles {
		tp := (c.High + c.Low + c.Close) / 3
		if i > 0 {
			flow := tp * float64(c.Volume)
			switch {
			case tp > prevTP:
				posFlow[i], negFlow[i] = flow, 0
			case tp < prevTP:
				posFlow[i], negFlow[i] = 0, flow
			default:
				posFlow[i], negFlow[i] = 0, 0
			}
		}
		prevTP = tp
	}
	posSum := rollingSum(posFlow, period)
	negSum := rollingSum(negFlow, period)
	out := nanSeries(n)
	for i := 0; i < n; i++ {
		p, ng := posSum[i], negSum[i]
		if math.IsNaN(p) || math.IsNaN(ng) {
			continue
		}
		if ng == 0 {
			if p > 0 {
				out[i] = 100
			}
			continue
		}
		out[i] = 100 - 100/(1+p/ng)
	}
	return out
}

// ROC is the percentage rate of change of close over `period` bars.
func ROC(f *models.Frame, period int) []float64 {
	closes, _ := f.Column("close")
	out := nanSeries(len(closes))
	for i := period; i < len(closes); i++ {
		if closes[i-period] == 0 {
			continue
		}
		out[i] = (closes[i] - closes[i-period]) / closes[i-period] * 100
	}
	return out
}

// RollingMaxHigh is the highest high over the trailing window.
func RollingMaxHigh(f *models.Frame, period int) []float64 {
	highs, _ := f.Column("high")
	return rollingMax(highs, period)
}

// RollingMinLow is the lowest low over the trailing window.
func RollingMinLow(f *models.Frame, period int) []float64 {
	lows, _ := f.Column("low")
	return rollingMin(lows, period)
}
