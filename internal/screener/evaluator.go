package screener

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stock-screener/internal/indicators"
	"stock-screener/internal/marketdata"
	"stock-screener/internal/models"
)

// Evaluator applies one filter condition to a symbol's frames. Evaluation
// never returns a Go error to the caller: any failure becomes a failed
// condition with an error detail, so one bad filter cannot sink a scan.
type Evaluator struct {
	provider marketdata.Provider
	logger   *zap.Logger
}

func NewEvaluator(provider marketdata.Provider, logger *zap.Logger) *Evaluator {
	return &Evaluator{provider: provider, logger: logger}
}

func errDetail(err error) (bool, models.FilterDetail) {
	return false, models.FilterDetail{"error": err.Error()}
}

func fieldOr(field, fallback string) string {
	if field == "" {
		return fallback
	}
	return field
}

// Evaluate runs a single filter against the symbol's frames and returns
// whether it passed along with a diagnostic detail.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string, frames map[string]*models.Frame, f *models.Filter) (bool, models.FilterDetail) {
	kind := f.Kind()
	offset := int(f.Offset)
	idx := -(offset + 1)

	tf := f.EffectiveTimeframe()
	frame := frames[tf]
	if frame == nil {
		return errDetail(errors.Errorf("timeframe %q data not found", tf))
	}

	if kind == models.FilterExpression {
		result, err := EvalExpr(f.Expression, frames, idx)
		if err != nil {
			return errDetail(err)
		}
		passed := result != 0
		return passed, models.FilterDetail{
			"type":       "expression",
			"expression": f.Expression,
			"result":     result,
			"passed":     passed,
		}
	}

	switch kind {
	case models.FilterVolume:
		return e.evalVolume(frame, f, idx)
	case models.FilterPriceChange:
		return e.evalChange(frame, f, fieldOr(f.Field, "close"), kind, offset, idx)
	case models.FilterVolumeChange:
		return e.evalChange(frame, f, "volume", kind, offset, idx)
	case models.FilterGap:
		return e.evalGap(frame, f, offset, idx)
	case models.FilterPattern:
		return e.evalPattern(frame, f, idx)
	case models.FilterPrice52Week:
		return e.eval52Week(ctx, symbol, frame, f, idx)
	case models.FilterFinancial:
		return e.evalFinancial(ctx, symbol, f)
	case models.FilterFunction:
		return e.evalFunction(frame, f, idx)
	default:
		return e.evalComparison(frames, frame, f, kind, tf, offset, idx)
	}
}

// lhsValue resolves the filter's left-hand side at an index. Price filters
// read frame fields and fall back to an indicator calculation when the name
// is not a column; indicator filters go straight to the indicator resolver.
// The string return carries non-numeric enrichment values.
func (e *Evaluator) lhsValue(frame *models.Frame, f *models.Filter, kind string, idx int) (float64, string, bool, error) {
	field := fieldOr(f.Field, "close")

	if kind == models.FilterIndicator {
		v, err := indicators.Value(frame, field, f.EffectivePeriod(), idx, indicators.Params(f.Params))
		return v, "", true, err
	}

	if frame.HasField(field) {
		raw, err := frame.RawValue(field, idx)
		if err != nil {
			return 0, "", false, err
		}
		if s, ok := raw.(string); ok {
			return 0, s, false, nil
		}
		v, err := frame.Value(field, idx)
		if err != nil {
			return 0, "", false, err
		}
		return v, "", true, nil
	}

	v, err := indicators.Value(frame, field, f.EffectivePeriod(), idx, indicators.Params(f.Params))
	if err != nil {
		return 0, "", false, errors.Errorf("field %q not found in data and could not be calculated", field)
	}
	return v, "", true, nil
}

// rhs is a resolved right-hand side. A measure RHS keeps its frame and index
// so crossovers can re-resolve it one candle back.
type rhs struct {
	value   float64
	rng     *[2]float64
	measure *models.Measure
	frame   *models.Frame
	idx     int
}

func (e *Evaluator) resolveRHS(frames map[string]*models.Frame, f *models.Filter, lhsTimeframe string, offset int) (rhs, error) {
	v := f.Value

	if v != nil && v.Measure != nil {
		m := v.Measure
		tf := m.Timeframe
		if tf == "" {
			tf = lhsTimeframe
		}
		frame, ok := frames[tf]
		if !ok || frame == nil {
			return rhs{}, errors.Errorf("timeframe %q data not found for RHS", tf)
		}
		rhsOffset := offset
		if m.Offset != nil {
			rhsOffset = int(*m.Offset)
		}
		rhsIdx := -(rhsOffset + 1)
		val, err := e.measureValue(frame, m, rhsIdx)
		if err != nil {
			return rhs{}, err
		}
		return rhs{value: val, measure: m, frame: frame, idx: rhsIdx}, nil
	}

	if (v == nil || (v.Scalar == nil && v.Range == nil && v.Str == "")) && f.CompareToMeasure != "" {
		tf := f.CompareToTimeframe
		if tf == "" {
			tf = lhsTimeframe
		}
		frame, ok := frames[tf]
		if !ok || frame == nil {
			return rhs{}, errors.Errorf("timeframe %q data not found for RHS", tf)
		}
		rhsOffset := offset
		if f.CompareToOffset != nil {
			rhsOffset = int(*f.CompareToOffset)
		}
		rhsIdx := -(rhsOffset + 1)
		m := &models.Measure{Type: "attribute", Field: f.CompareToMeasure}
		val, err := e.measureValue(frame, m, rhsIdx)
		if err != nil {
			return rhs{}, err
		}
		return rhs{value: val, measure: m, frame: frame, idx: rhsIdx}, nil
	}

	if v != nil && v.Range != nil {
		return rhs{rng: v.Range}, nil
	}
	return rhs{value: v.ScalarValue()}, nil
}

func (e *Evaluator) measureValue(frame *models.Frame, m *models.Measure, idx int) (float64, error) {
	if m.Type == "indicator" {
		period := m.TimePeriod
		if period <= 0 {
			period = 14
		}
		return indicators.Value(frame, m.Field, period, idx, indicators.Params(m.Params))
	}
	return frame.Value(fieldOr(m.Field, "close"), idx)
}

func applyArithmetic(value float64, f *models.Filter) float64 {
	switch f.ArithmeticOperator {
	case "+":
		return value + f.ArithmeticValue
	case "-":
		return value - f.ArithmeticValue
	case "*":
		return value * f.ArithmeticValue
	case "/":
		if f.ArithmeticValue != 0 {
			return value / f.ArithmeticValue
		}
	}
	return value
}

// evalComparison handles price and indicator filters: static or measure RHS,
// arithmetic adjustment, string comparison, crossovers with a static-data
// fallback, and range checks.
func (e *Evaluator) evalComparison(frames map[string]*models.Frame, frame *models.Frame, f *models.Filter, kind, tf string, offset, idx int) (bool, models.FilterDetail) {
	field := fieldOr(f.Field, "close")
	operator := fieldOr(f.Operator, models.OpGT)
	prevIdx := idx - 1

	current, currentStr, isNumeric, err := e.lhsValue(frame, f, kind, idx)
	if err != nil {
		return errDetail(err)
	}

	right, err := e.resolveRHS(frames, f, tf, offset)
	if err != nil {
		return errDetail(err)
	}
	if f.ArithmeticOperator != "" && right.rng == nil {
		right.value = applyArithmetic(right.value, f)
	}

	if !isNumeric {
		compareStr := ""
		if f.Value != nil {
			compareStr = f.Value.Str
			if f.Value.Scalar != nil {
				compareStr = strconv.FormatFloat(*f.Value.Scalar, 'f', -1, 64)
			}
		}
		passed := compareStrings(currentStr, compareStr, operator)
		return passed, models.FilterDetail{
			"type":          kind,
			"field":         field,
			"current_value": currentStr,
			"compare_value": compareStr,
			"operator":      operator,
			"passed":        passed,
		}
	}

	detail := models.FilterDetail{
		"type":          kind,
		"field":         field,
		"current_value": current,
		"operator":      operator,
	}
	if kind == models.FilterIndicator {
		detail["time_period"] = f.EffectivePeriod()
	}

	if right.rng != nil {
		passed := operator == models.OpBetween && compareBetween(current, *right.rng)
		detail["compare_value"] = *right.rng
		detail["passed"] = passed
		return passed, detail
	}
	detail["compare_value"] = right.value

	if isCrossOperator(operator) {
		previous, _, _, err := e.lhsValue(frame, f, kind, prevIdx)
		if err != nil {
			return errDetail(err)
		}
		previousCompare := right.value
		if right.measure != nil {
			pc, err := e.measureValue(right.frame, right.measure, right.idx-1)
			if err != nil {
				return errDetail(err)
			}
			previousCompare = pc
		}

		// A flat series cannot cross anything. Fall back to a plain
		// comparison so mock or stale data still yields a signal.
		if previous == current {
			op, sym := models.OpGT, ">"
			if !isCrossAbove(operator) {
				op, sym = models.OpLT, "<"
			}
			passed := compareNumeric(current, right.value, op)
			detail["passed"] = passed
			detail["note"] = "Static data detected, fell back to " + sym
			return passed, detail
		}

		var passed bool
		if isCrossAbove(operator) {
			passed = crossedAbove(current, right.value, previous, previousCompare)
		} else {
			passed = crossedBelow(current, right.value, previous, previousCompare)
		}
		detail["passed"] = passed
		return passed, detail
	}

	passed := compareNumeric(current, right.value, operator)
	detail["passed"] = passed
	return passed, detail
}

func (e *Evaluator) evalVolume(frame *models.Frame, f *models.Filter, idx int) (bool, models.FilterDetail) {
	currentVolume, err := frame.Value("volume", idx)
	if err != nil {
		return errDetail(err)
	}

	if f.Operator == models.OpGTAvg {
		avgPeriod := f.AvgPeriod
		if avgPeriod <= 0 {
			avgPeriod = 20
		}
		multiplier := f.Multiplier
		if multiplier == 0 {
			multiplier = 1.5
		}
		avg, err := rollingAverageAt(frame, "volume", avgPeriod, idx)
		if err != nil {
			return errDetail(err)
		}
		threshold := avg * multiplier
		passed := currentVolume > threshold
		return passed, models.FilterDetail{
			"type":           models.FilterVolume,
			"current_volume": currentVolume,
			"average_volume": avg,
			"threshold":      threshold,
			"multiplier":     multiplier,
			"passed":         passed,
		}
	}

	passed, compareValue := e.scalarOrRange(currentVolume, f)
	return passed, models.FilterDetail{
		"type":           models.FilterVolume,
		"current_volume": currentVolume,
		"compare_value":  compareValue,
		"operator":       f.Operator,
		"passed":         passed,
	}
}

// scalarOrRange compares a numeric LHS against the filter's static value,
// honoring between ranges.
func (e *Evaluator) scalarOrRange(current float64, f *models.Filter) (bool, any) {
	if f.Value != nil && f.Value.Range != nil {
		return f.Operator == models.OpBetween && compareBetween(current, *f.Value.Range), *f.Value.Range
	}
	compare := f.Value.ScalarValue()
	return compareNumeric(current, compare, fieldOr(f.Operator, models.OpGT)), compare
}

// rollingAverageAt is the mean of the trailing window ending at idx
// inclusive.
func rollingAverageAt(frame *models.Frame, field string, period, idx int) (float64, error) {
	col, ok := frame.Column(field)
	if !ok {
		return 0, errors.Errorf("field %q has no series", field)
	}
	pos := idx
	if pos < 0 {
		pos = len(col) + idx
	}
	start := pos - period + 1
	if start < 0 || pos >= len(col) {
		return 0, errors.Errorf("not enough data for %d-period average", period)
	}
	var sum float64
	for _, v := range col[start : pos+1] {
		sum += v
	}
	return sum / float64(period), nil
}

func (e *Evaluator) evalChange(frame *models.Frame, f *models.Filter, field, kind string, offset, idx int) (bool, models.FilterDetail) {
	lookback := f.Lookback
	if lookback <= 0 {
		lookback = 1
	}
	required := offset + lookback + 1
	if frame.Len() < required {
		return false, models.FilterDetail{
			"type":           kind,
			"field":          field,
			"error":          "Not enough data for " + kind + " filter",
			"required_rows":  required,
			"available_rows": frame.Len(),
		}
	}

	current, err := frame.Value(field, idx)
	if err != nil {
		return errDetail(err)
	}
	previous, err := frame.Value(field, idx-lookback)
	if err != nil {
		return errDetail(err)
	}
	change := pctChange(current, previous)

	passed, compareValue := e.scalarOrRange(change, f)
	return passed, models.FilterDetail{
		"type":          kind,
		"field":         field,
		"current_value": change,
		"compare_value": compareValue,
		"operator":      f.Operator,
		"lookback":      lookback,
		"passed":        passed,
	}
}

func (e *Evaluator) evalGap(frame *models.Frame, f *models.Filter, offset, idx int) (bool, models.FilterDetail) {
	required := offset + 2
	if frame.Len() < required {
		return false, models.FilterDetail{
			"type":           models.FilterGap,
			"error":          "Not enough data for gap filter",
			"required_rows":  required,
			"available_rows": frame.Len(),
		}
	}

	currentOpen, err := frame.Value("open", idx)
	if err != nil {
		return errDetail(err)
	}
	previousClose, err := frame.Value("close", idx-1)
	if err != nil {
		return errDetail(err)
	}
	gap := pctChange(currentOpen, previousClose)

	passed, compareValue := e.scalarOrRange(gap, f)
	return passed, models.FilterDetail{
		"type":           models.FilterGap,
		"current_open":   currentOpen,
		"previous_close": previousClose,
		"current_value":  gap,
		"compare_value":  compareValue,
		"operator":       f.Operator,
		"offset":         offset,
		"passed":         passed,
	}
}

func (e *Evaluator) evalPattern(frame *models.Frame, f *models.Filter, idx int) (bool, models.FilterDetail) {
	if f.Pattern == "" {
		return false, models.FilterDetail{
			"type":  models.FilterPattern,
			"error": "Pattern name is required for pattern filter",
		}
	}
	pattern := strings.ToLower(f.Pattern)
	matched, patternDetail := detectPattern(frame, idx, pattern)
	detail := models.FilterDetail{
		"type":    models.FilterPattern,
		"pattern": pattern,
		"passed":  matched,
	}
	for k, v := range patternDetail {
		detail[k] = v
	}
	return matched, detail
}

func (e *Evaluator) eval52Week(ctx context.Context, symbol string, frame *models.Frame, f *models.Filter, idx int) (bool, models.FilterDetail) {
	field := fieldOr(f.Field, "close")
	lookbackDays := f.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = 252
	}
	metric := fieldOr(f.Metric, "distance_from_high_pct")

	full, err := e.provider.StockData(ctx, symbol, "daily", "full")
	if err != nil {
		return false, models.FilterDetail{
			"type":  models.FilterPrice52Week,
			"field": field,
			"error": "Failed to fetch full history for 52-week calculation: " + err.Error(),
		}
	}
	if full.Empty() {
		return false, models.FilterDetail{
			"type":  models.FilterPrice52Week,
			"field": field,
			"error": "Insufficient OHLC data for 52-week calculation",
		}
	}

	candles := full.Data
	if len(candles) > lookbackDays {
		candles = candles[len(candles)-lookbackDays:]
	}
	high52 := math.Inf(-1)
	low52 := math.Inf(1)
	for _, c := range candles {
		high52 = math.Max(high52, c.High)
		low52 = math.Min(low52, c.Low)
	}

	currentPrice, err := frame.Value(field, idx)
	if err != nil {
		return errDetail(err)
	}

	var current float64
	switch metric {
	case "distance_from_high_pct":
		if high52 != 0 {
			current = (high52 - currentPrice) / high52 * 100
		}
	case "distance_from_low_pct":
		if low52 != 0 {
			current = (currentPrice - low52) / low52 * 100
		}
	default:
		return errDetail(errors.Errorf("unsupported metric for price_52week filter: %s", metric))
	}

	passed, compareValue := e.scalarOrRange(current, f)
	return passed, models.FilterDetail{
		"type":          models.FilterPrice52Week,
		"field":         field,
		"metric":        metric,
		"current_value": current,
		"compare_value": compareValue,
		"operator":      f.Operator,
		"lookback_days": lookbackDays,
		"high_52w":      high52,
		"low_52w":       low52,
		"passed":        passed,
	}
}

func (e *Evaluator) evalFinancial(ctx context.Context, symbol string, f *models.Filter) (bool, models.FilterDetail) {
	field := strings.ToLower(f.Field)
	if field == "" {
		return false, models.FilterDetail{"error": "Financial filter requires a field"}
	}

	metrics, err := e.provider.Metrics(ctx, symbol)
	if err != nil {
		return false, models.FilterDetail{"error": "Failed to evaluate financial filter: " + err.Error()}
	}

	raw, ok := metrics[field]
	if !ok {
		// Same alias table enrichment uses, so pe_ratio resolves identically
		// whether the filter reads a broadcast column or the feed directly.
		if alias, found := enrichmentAliases[field]; found {
			raw, ok = metrics[alias]
		}
	}
	if !ok {
		// Last resort: match ignoring case and underscores.
		target := strings.ReplaceAll(field, "_", "")
		for k, v := range metrics {
			if strings.ReplaceAll(strings.ToLower(k), "_", "") == target {
				raw, ok = v, true
				break
			}
		}
	}
	if !ok {
		return false, models.FilterDetail{
			"type":   models.FilterFinancial,
			"field":  field,
			"error":  "Metric " + field + " not found for " + symbol,
			"passed": false,
		}
	}

	current, err := toFloat(raw)
	if err != nil {
		return false, models.FilterDetail{"error": "Failed to evaluate financial filter: " + err.Error()}
	}

	passed, compareValue := e.scalarOrRange(current, f)
	return passed, models.FilterDetail{
		"type":          models.FilterFinancial,
		"field":         field,
		"current_value": current,
		"compare_value": compareValue,
		"operator":      f.Operator,
		"passed":        passed,
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "non-numeric metric %q", t)
		}
		return f, nil
	default:
		return 0, errors.Errorf("non-numeric metric value %v", v)
	}
}

const functionWindow = 20

// evalFunction covers the window aggregate filters: max high, min low,
// absolute close change, and green-candle count over a fixed 20-bar window
// ending at the filter's index.
func (e *Evaluator) evalFunction(frame *models.Frame, f *models.Filter, idx int) (bool, models.FilterDetail) {
	name := strings.ToLower(f.Field)
	operator := fieldOr(f.Operator, models.OpGT)
	compare := f.Value.ScalarValue()

	pos := idx
	if pos < 0 {
		pos = frame.Len() + idx
	}
	start := pos - functionWindow + 1
	if pos < 0 || pos >= frame.Len() || (start < 0 && name != "abs") {
		return false, models.FilterDetail{
			"error": "Not enough data for function " + name +
				" (needs " + strconv.Itoa(functionWindow) + " periods)",
		}
	}

	var current float64
	switch name {
	case "max":
		current = math.Inf(-1)
		for _, c := range frame.Candles[start : pos+1] {
			current = math.Max(current, c.High)
		}
	case "min":
		current = math.Inf(1)
		for _, c := range frame.Candles[start : pos+1] {
			current = math.Min(current, c.Low)
		}
	case "abs":
		c, err := frame.Value("close", idx)
		if err != nil {
			return errDetail(err)
		}
		p, err := frame.Value("close", idx-1)
		if err != nil {
			return errDetail(err)
		}
		current = math.Abs(pctChange(c, p))
	case "count":
		for _, c := range frame.Candles[start : pos+1] {
			if c.Close > c.Open {
				current++
			}
		}
	default:
		return false, models.FilterDetail{"error": "Unsupported function: " + name}
	}

	passed := compareNumeric(current, compare, operator)
	return passed, models.FilterDetail{
		"type":          models.FilterFunction,
		"field":         name,
		"current_value": current,
		"compare_value": compare,
		"operator":      operator,
		"passed":        passed,
		"period":        functionWindow,
	}
}
