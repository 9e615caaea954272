package screener

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stock-screener/internal/models"
)

// The NL parser turns plain-English screening phrases into filter
// configurations. It is heuristic by design: conditions it cannot parse are
// skipped, not errored.

var (
	consecutiveRe = regexp.MustCompile(`consecutive (\d+) (red|green) candles?(?: on ([a-z0-9-]+))?`)
	measureRe     = regexp.MustCompile(`([a-z_]+)\s*\(?\s*(\d+)\s*\)?`)
)

// nlIndicators are the indicator names the parser recognizes with a period,
// as in "sma 20" or "rsi(14)".
var nlIndicators = map[string]struct{}{
	"sma": {}, "ema": {}, "rsi": {}, "wma": {},
	"atr": {}, "adx": {}, "cci": {}, "stoch": {},
}

// operator phrases, longest first so "crossed above" wins over "above".
var nlOperators = []string{
	"crossed above", "crossed below", "greater than", "higher than",
	"less than", "lower than", "is above", "is below",
	"above", "below", "over", "under", "==", ">", "<", "=",
}

func mapOperator(text string) string {
	switch {
	case strings.Contains(text, "crossed above"):
		return models.OpCrossedAbove
	case strings.Contains(text, "crossed below"):
		return models.OpCrossedBelow
	case strings.Contains(text, "above"), strings.Contains(text, "greater"),
		strings.Contains(text, "more than"), strings.Contains(text, "higher"),
		strings.Contains(text, ">"), strings.Contains(text, "over"):
		return models.OpGT
	case strings.Contains(text, "below"), strings.Contains(text, "less"),
		strings.Contains(text, "under"), strings.Contains(text, "lower"),
		strings.Contains(text, "<"), strings.Contains(text, "fewer"):
		return models.OpLT
	case strings.Contains(text, "equal"), strings.Contains(text, "="):
		return models.OpEQ
	}
	return models.OpGT
}

// nlMeasure is a parsed side of a condition: either an indicator with a
// period or a plain attribute.
type nlMeasure struct {
	kind       string
	field      string
	timePeriod int
}

func parseMeasure(text string) nlMeasure {
	text = strings.TrimSpace(text)

	if m := measureRe.FindStringSubmatch(text); m != nil {
		name := m[1]
		if _, ok := nlIndicators[name]; ok {
			period, _ := strconv.Atoi(m[2])
			return nlMeasure{
				kind:       "indicator",
				field:      name + "_" + m[2],
				timePeriod: period,
			}
		}
	}

	field := strings.ReplaceAll(text, "market cap", "market_cap")
	return nlMeasure{kind: "attribute", field: field}
}

func nlTimeframe(raw string) string {
	tf := strings.ReplaceAll(strings.ToLower(raw), "-", "")
	switch tf {
	case "5min", "15min", "30min", "60min", "daily", "weekly", "monthly", "1min":
		return tf
	case "1h", "1hour", "hourly":
		return "60min"
	case "1d":
		return "daily"
	case "1w":
		return "weekly"
	case "1m":
		return "monthly"
	}
	return "daily"
}

// ParseQuery translates a natural-language screening query into filter
// configurations. Conditions are split on "and"; each becomes one filter
// (consecutive-candle phrases expand to one filter per candle).
func ParseQuery(query string, logger *zap.Logger) []map[string]any {
	query = strings.ToLower(query)
	filters := []map[string]any{}

	for _, cond := range regexp.MustCompile(`\s+and\s+`).Split(query, -1) {
		cond = strings.TrimSpace(cond)
		if cond == "" {
			continue
		}

		if m := consecutiveRe.FindStringSubmatch(cond); m != nil {
			filters = append(filters, consecutiveCandleFilters(m)...)
			continue
		}

		operator := models.OpGT
		splitOn := ""
		for _, opText := range nlOperators {
			if strings.Contains(" "+cond+" ", " "+opText+" ") {
				operator = mapOperator(opText)
				splitOn = opText
				break
			}
		}
		if splitOn == "" {
			logger.Warn("no operator found in condition, skipping", zap.String("condition", cond))
			continue
		}

		parts := strings.SplitN(cond, splitOn, 2)
		if len(parts) != 2 {
			logger.Warn("could not split condition", zap.String("condition", cond))
			continue
		}

		lhs := parseMeasure(parts[0])

		filter := map[string]any{
			"id":       uuid.NewString(),
			"type":     "simple",
			"enabled":  true,
			"field":    lhs.field,
			"operator": operator,
		}
		if lhs.kind == "indicator" {
			filter["filterType"] = models.FilterIndicator
			filter["time_period"] = lhs.timePeriod
		} else {
			filter["filterType"] = models.FilterPrice
		}

		rhsText := strings.TrimSpace(parts[1])
		if val, err := strconv.ParseFloat(rhsText, 64); err == nil {
			filter["value"] = val
		} else {
			rhs := parseMeasure(rhsText)
			value := map[string]any{"type": rhs.kind, "field": rhs.field}
			if rhs.kind == "indicator" {
				value["time_period"] = rhs.timePeriod
			}
			filter["value"] = value
		}

		filters = append(filters, filter)
	}

	return filters
}

// consecutiveCandleFilters expands "consecutive N red/green candles" into N
// per-candle filters comparing close against open at increasing offsets.
func consecutiveCandleFilters(m []string) []map[string]any {
	count, _ := strconv.Atoi(m[1])
	color := m[2]
	timeframe := nlTimeframe(m[3])

	operator := models.OpGT
	if color == "red" {
		operator = models.OpLT
	}

	filters := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		filters = append(filters, map[string]any{
			"id":         uuid.NewString(),
			"type":       "simple",
			"enabled":    true,
			"field":      "close",
			"filterType": models.FilterPrice,
			"operator":   operator,
			"value":      map[string]any{"type": "attribute", "field": "open"},
			"offset":     i,
			"timeframe":  timeframe,
		})
	}
	return filters
}
