package screener

import (
	"context"

	"go.uber.org/zap"

	"stock-screener/internal/marketdata"
	"stock-screener/internal/models"
)

// enrichmentAliases maps scanner field names to the metric keys the
// fundamentals feed uses, so filters can say pe_ratio instead of
// peBasicExclExtraTTM.
var enrichmentAliases = map[string]string{
	"marketCap":           "marketCapitalization",
	"market_cap":          "marketCapitalization",
	"pe_ratio":            "peBasicExclExtraTTM",
	"peRatio":             "peBasicExclExtraTTM",
	"pb_ratio":            "pbQuarterly",
	"eps":                 "epsExclExtraTTM",
	"dividend_yield":      "dividendYieldIndicatedAnnual",
	"beta":                "beta",
	"current_ratio":       "currentRatioQuarterly",
	"debt_to_equity":      "totalDebtToEquityQuarterly",
	"roe":                 "roeTTM",
	"net_sales":           "revenueTTM",
	"net_profit":          "netIncomeTTM",
	"operating_cash_flow": "operatingCashFlowTTM",
	"book_value":          "bookValuePerShareAnnual",
	"bookValue":           "bookValuePerShareAnnual",
}

// enrichFrame broadcasts fundamental metrics onto the daily frame for any
// filter field the candle data cannot satisfy. Enrichment failures are
// non-fatal: the field stays missing and its filter fails on its own.
func enrichFrame(ctx context.Context, provider marketdata.Provider, frame *models.Frame, filters []*models.Filter, logger *zap.Logger) {
	var missing []string
	for _, f := range filters {
		if f.Field == "" || frame.HasField(f.Field) {
			continue
		}
		missing = append(missing, f.Field)
	}
	if len(missing) == 0 {
		return
	}

	metrics, err := provider.Metrics(ctx, frame.Symbol)
	if err != nil {
		logger.Debug("metric enrichment failed",
			zap.String("symbol", frame.Symbol), zap.Error(err))
		return
	}

	// Alias the feed's keys onto scanner names before resolving.
	for userField, apiField := range enrichmentAliases {
		if v, ok := metrics[apiField]; ok {
			if _, exists := metrics[userField]; !exists {
				metrics[userField] = v
			}
		}
	}
	for _, field := range missing {
		if v, ok := metrics[field]; ok {
			frame.SetScalar(field, v)
		}
	}
}
