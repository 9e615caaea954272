package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TTLs per payload class. Candles move slowly, computed indicators a bit
// faster, scan results are near-real-time.
const (
	TTLStockData  = time.Hour
	TTLIndicator  = 30 * time.Minute
	TTLScanResult = 5 * time.Minute
)

// StockKey addresses one symbol's candle payload for an interval and window
// size.
func StockKey(symbol, interval, size string) string {
	return fmt.Sprintf("stock:%s:%s:%s", symbol, interval, size)
}

// IndicatorKey addresses a computed indicator series.
func IndicatorKey(symbol, name, interval string, period int, seriesType string) string {
	return fmt.Sprintf("indicator:%s:%s:%s:%d:%s", symbol, name, interval, period, seriesType)
}

// ScanKey hashes the full scan request so identical requests share a cached
// result. Symbols are sorted so order does not split the cache.
func ScanKey(symbols []string, filtersJSON []byte, logic string) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	payload, _ := json.Marshal(map[string]any{
		"symbols": sorted,
		"filters": json.RawMessage(filtersJSON),
		"logic":   logic,
	})
	sum := sha1.Sum(payload)
	return "scan:" + hex.EncodeToString(sum[:])
}
