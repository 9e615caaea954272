package screener

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stock-screener/internal/cache"
	"stock-screener/internal/marketdata"
	"stock-screener/internal/models"
)

// UniverseFetcher resolves the full tradable symbol list when a scan is
// requested without an explicit universe.
type UniverseFetcher interface {
	Universe(ctx context.Context, exchange string) ([]map[string]any, error)
}

// Scanner runs filters across a symbol universe with a bounded worker pool.
// Individual symbol failures are isolated into the failed list; only a
// malformed request fails the scan itself.
type Scanner struct {
	provider marketdata.Provider
	universe UniverseFetcher
	store    cache.Store
	eval     *Evaluator
	workers  int
	logger   *zap.Logger
}

func NewScanner(provider marketdata.Provider, universe UniverseFetcher, store cache.Store, workers int, logger *zap.Logger) *Scanner {
	if workers <= 0 {
		workers = 8
	}
	return &Scanner{
		provider: provider,
		universe: universe,
		store:    store,
		eval:     NewEvaluator(provider, logger),
		workers:  workers,
		logger:   logger,
	}
}

// requiredTimeframes collects every timeframe the filters touch. Daily is
// always present: enrichment and the matched-stock summary read it.
func requiredTimeframes(filters []*models.Filter) []string {
	set := map[string]struct{}{"daily": {}}
	for _, f := range filters {
		set[f.EffectiveTimeframe()] = struct{}{}
		if f.CompareToTimeframe != "" {
			set[f.CompareToTimeframe] = struct{}{}
		}
		if f.Value != nil && f.Value.Measure != nil && f.Value.Measure.Timeframe != "" {
			set[f.Value.Measure.Timeframe] = struct{}{}
		}
		if f.Expression != nil {
			f.Expression.Timeframes(set)
		}
	}
	out := make([]string, 0, len(set))
	for tf := range set {
		out = append(out, tf)
	}
	return out
}

// Scan evaluates the filters against every symbol. An empty symbol list
// scans the whole universe. Results are cached briefly so repeated identical
// requests do not refetch and recompute.
func (s *Scanner) Scan(ctx context.Context, symbols []string, filters []*models.Filter, filterLogic string) (*models.ScanResult, error) {
	if filterLogic != "OR" && filterLogic != "or" {
		filterLogic = "AND"
	} else {
		filterLogic = "OR"
	}

	if len(symbols) == 0 {
		s.logger.Info("no symbols provided, fetching full universe")
		universe, err := s.universe.Universe(ctx, "")
		if err != nil {
			return nil, err
		}
		for _, entry := range universe {
			if ticker, ok := entry["ticker"].(string); ok && ticker != "" {
				symbols = append(symbols, ticker)
			}
		}
		s.logger.Info("fetched universe", zap.Int("symbols", len(symbols)))
	}

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, err
	}
	scanKey := cache.ScanKey(symbols, filtersJSON, filterLogic)
	var cached models.ScanResult
	if s.store.Get(ctx, scanKey, &cached) {
		return &cached, nil
	}

	s.logger.Info("starting scan",
		zap.Int("symbols", len(symbols)),
		zap.Int("filters", len(filters)),
		zap.String("logic", filterLogic))

	timeframes := requiredTimeframes(filters)

	type slot struct {
		matched *models.MatchedStock
		failed  *models.FailedStock
	}
	slots := make([]slot, len(symbols))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for i, symbol := range symbols {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("panic scanning symbol",
						zap.String("symbol", symbol), zap.Any("panic", r))
					slots[i].failed = &models.FailedStock{
						Symbol: symbol,
						Error:  fmt.Sprintf("panic: %v", r),
					}
				}
			}()
			slots[i].matched, slots[i].failed = s.scanSymbol(ctx, symbol, timeframes, filters, filterLogic)
		}(i, symbol)
	}
	wg.Wait()

	result := &models.ScanResult{
		MatchedStocks:  []models.MatchedStock{},
		FailedStocks:   []models.FailedStock{},
		TotalScanned:   len(symbols),
		FilterLogic:    filterLogic,
		FiltersApplied: filters,
		ScanTime:       time.Now().Format(time.RFC3339),
	}
	for _, sl := range slots {
		if sl.matched != nil {
			result.MatchedStocks = append(result.MatchedStocks, *sl.matched)
		}
		if sl.failed != nil {
			result.FailedStocks = append(result.FailedStocks, *sl.failed)
		}
	}
	result.TotalMatched = len(result.MatchedStocks)

	s.logger.Info("scan complete",
		zap.Int("matched", result.TotalMatched),
		zap.Int("scanned", result.TotalScanned),
		zap.Int("failed", len(result.FailedStocks)))

	s.store.Set(ctx, scanKey, result, cache.TTLScanResult)
	return result, nil
}

// scanSymbol fetches the symbol's frames, enriches the daily one, and runs
// every filter. It returns a match, a failure, or neither when the symbol
// simply did not pass.
func (s *Scanner) scanSymbol(ctx context.Context, symbol string, timeframes []string, filters []*models.Filter, filterLogic string) (*models.MatchedStock, *models.FailedStock) {
	frames := make(map[string]*models.Frame, len(timeframes))
	for _, tf := range timeframes {
		data, err := s.provider.StockData(ctx, symbol, tf, "compact")
		if err != nil || data.Empty() {
			if tf == "daily" {
				msg := "No daily data"
				if err != nil {
					msg = err.Error()
				}
				return nil, &models.FailedStock{Symbol: symbol, Error: msg}
			}
			// Secondary timeframes may be missing; their filters fail
			// on their own.
			continue
		}
		frames[tf] = data.Frame()
	}
	daily := frames["daily"]
	if daily == nil {
		return nil, &models.FailedStock{Symbol: symbol, Error: "No daily data"}
	}

	enrichFrame(ctx, s.provider, daily, filters, s.logger)

	matchedCount := 0
	details := make([]models.FilterDetail, 0, len(filters))
	for _, f := range filters {
		passed, detail := s.eval.Evaluate(ctx, symbol, frames, f)
		if passed {
			matchedCount++
		}
		details = append(details, detail)
	}

	var passed bool
	if filterLogic == "OR" {
		passed = matchedCount > 0
	} else {
		passed = matchedCount == len(filters)
	}
	if !passed {
		return nil, nil
	}

	latest, _ := daily.Latest()
	return &models.MatchedStock{
		Symbol:         symbol,
		Close:          latest.Close,
		Volume:         latest.Volume,
		Date:           latest.Date,
		MatchedFilters: matchedCount,
		TotalFilters:   len(filters),
		FilterDetails:  details,
	}, nil
}
