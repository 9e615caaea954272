package screener

import (
	"math"

	"stock-screener/internal/models"
)

// candleComponents are the candlestick anatomy measures pattern rules work
// on.
type candleComponents struct {
	Body        float64
	UpperShadow float64
	LowerShadow float64
	TotalRange  float64
}

func components(c models.Candle) candleComponents {
	return candleComponents{
		Body:        math.Abs(c.Close - c.Open),
		UpperShadow: c.High - math.Max(c.Open, c.Close),
		LowerShadow: math.Min(c.Open, c.Close) - c.Low,
		TotalRange:  c.High - c.Low,
	}
}

// detectPattern matches a single-candle pattern at the index and returns the
// diagnostic breakdown. A candle with zero range matches nothing.
func detectPattern(f *models.Frame, idx int, pattern string) (bool, models.FilterDetail) {
	if f.Empty() {
		return false, models.FilterDetail{
			"matched": false,
			"reason":  "No data available for pattern detection",
		}
	}
	c, err := f.At(idx)
	if err != nil {
		return false, models.FilterDetail{
			"matched": false,
			"reason":  "Index out of bounds for pattern detection",
		}
	}

	comp := components(c)
	detail := models.FilterDetail{
		"body":         comp.Body,
		"upper_shadow": comp.UpperShadow,
		"lower_shadow": comp.LowerShadow,
		"total_range":  comp.TotalRange,
	}
	if comp.TotalRange <= 0 {
		detail["matched"] = false
		detail["reason"] = "Zero price range for candle"
		return false, detail
	}

	bodyRatio := comp.Body / comp.TotalRange
	upperRatio := comp.UpperShadow / comp.TotalRange
	lowerRatio := comp.LowerShadow / comp.TotalRange
	detail["body_ratio"] = bodyRatio
	detail["upper_ratio"] = upperRatio
	detail["lower_ratio"] = lowerRatio

	var matched bool
	switch pattern {
	case "hammer":
		matched = bodyRatio <= 0.4 && lowerRatio >= 0.6 && upperRatio <= 0.2
	case "shooting_star":
		matched = bodyRatio <= 0.4 && upperRatio >= 0.6 && lowerRatio <= 0.2
	case "long_body":
		matched = bodyRatio >= 0.6
	case "small_body":
		matched = bodyRatio <= 0.2
	default:
		detail["matched"] = false
		detail["reason"] = "Unsupported pattern: " + pattern
		return false, detail
	}

	detail["matched"] = matched
	return matched, detail
}
