package marketdata

import (
	"time"

	"github.com/pkg/errors"
)

// Supported candle intervals and their upstream resolutions.
var resolutionMap = map[string]string{
	"daily":   "D",
	"weekly":  "W",
	"monthly": "M",
	"1min":    "1",
	"5min":    "5",
	"15min":   "15",
	"30min":   "30",
	"60min":   "60",
}

// ErrInvalidInterval rejects intervals outside the supported set.
var ErrInvalidInterval = errors.New("invalid interval")

// Resolution maps an interval name to the upstream resolution code.
func Resolution(interval string) (string, error) {
	res, ok := resolutionMap[interval]
	if !ok {
		return "", errors.Wrap(ErrInvalidInterval, interval)
	}
	return res, nil
}

// ValidInterval reports whether the interval is supported.
func ValidInterval(interval string) bool {
	_, ok := resolutionMap[interval]
	return ok
}

// window returns how far back to request. Compact targets roughly 100 bars
// per interval (150 calendar days covers ~100 trading days); full is 20
// years regardless.
func window(interval, outputsize string) time.Duration {
	if outputsize != "compact" {
		return 20 * 365 * 24 * time.Hour
	}
	switch interval {
	case "daily":
		return 150 * 24 * time.Hour
	case "weekly":
		return 100 * 7 * 24 * time.Hour
	case "monthly":
		return 100 * 30 * 24 * time.Hour
	case "1min":
		return 100 * time.Minute
	case "5min":
		return 500 * time.Minute
	case "15min":
		return 1500 * time.Minute
	case "30min":
		return 3000 * time.Minute
	case "60min":
		return 100 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// dateLayout picks the candle date format: intraday intervals carry a time
// component, daily and coarser do not.
func dateLayout(interval string) string {
	if isIntraday(interval) {
		return "2006-01-02 15:04:05"
	}
	return "2006-01-02"
}

func isIntraday(interval string) bool {
	switch interval {
	case "1min", "5min", "15min", "30min", "60min":
		return true
	}
	return false
}
