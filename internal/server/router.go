package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the tool surface: every tool is POST /api/tools/:name with
// a JSON body, plus a plain GET /health for probes.
func NewRouter(svc *Service, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Health(c.Request.Context()))
	})
	router.POST("/api/tools/:name", toolHandler(svc))

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	}
}

type toolRequest struct {
	Symbol       string          `json:"symbol"`
	Symbols      []string        `json:"symbols"`
	Interval     string          `json:"interval"`
	OutputSize   string          `json:"outputsize"`
	Indicator    string          `json:"indicator"`
	TimePeriod   int             `json:"time_period"`
	SeriesType   string          `json:"series_type"`
	Filters      json.RawMessage `json:"filters"`
	FilterLogic  string          `json:"filter_logic"`
	PresetName   string          `json:"preset_name"`
	CustomParams map[string]any  `json:"custom_params"`
	Exchange     string          `json:"exchange"`
	Query        string          `json:"query"`

	// Watchlist / saved-scan payload fields.
	Name        string `json:"name"`
	Description string `json:"description"`
	Identifier  string `json:"identifier"`
	WatchlistID string `json:"watchlist_id"`
}

func toolHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req toolRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
				return
			}
		}

		ctx := c.Request.Context()
		var (
			result any
			err    error
		)

		switch c.Param("name") {
		case "fetch_stock_data":
			result, err = svc.FetchStockData(ctx, req.Symbol, req.Interval, req.OutputSize)
		case "get_technical_indicator":
			result, err = svc.TechnicalIndicator(ctx, req.Symbol, req.Indicator, req.Interval, req.TimePeriod, req.SeriesType)
		case "scan_stocks":
			result, err = svc.ScanStocks(ctx, req.Symbols, req.Filters, req.FilterLogic, req.WatchlistID)
		case "run_preset_scan":
			result, err = svc.RunPresetScan(ctx, req.PresetName, req.Symbols, req.CustomParams)
		case "fetch_stock_universe":
			result, err = svc.FetchStockUniverse(ctx, req.Exchange)
		case "parse_natural_language_query":
			result = svc.ParseNaturalLanguageQuery(req.Query)
		case "health_check":
			result = svc.Health(ctx)

		case "create_watchlist":
			result, err = svc.client.CreateWatchlist(ctx, req.Name, req.Symbols, req.Description)
		case "list_watchlists":
			result, err = svc.client.ListWatchlists(ctx)
		case "update_watchlist_symbols":
			result, err = svc.client.UpdateWatchlistSymbols(ctx, req.Identifier, req.Symbols)
		case "delete_watchlist":
			result, err = svc.client.DeleteWatchlist(ctx, req.Identifier)
		case "get_watchlist_scan_results":
			result, err = svc.client.WatchlistScan(ctx, req.Identifier, req.Filters, defaultLogic(req.FilterLogic))
		case "create_saved_scan":
			result, err = svc.client.CreateSavedScan(ctx, req.Name, req.Filters, defaultLogic(req.FilterLogic), req.Symbols, req.Description)
		case "list_saved_scans":
			result, err = svc.client.ListSavedScans(ctx)
		case "run_saved_scan":
			result, err = svc.client.RunSavedScan(ctx, req.Identifier)
		case "delete_saved_scan":
			result, err = svc.client.DeleteSavedScan(ctx, req.Identifier)

		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool: " + c.Param("name")})
			return
		}

		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func defaultLogic(logic string) string {
	if logic == "" {
		return "AND"
	}
	return logic
}
