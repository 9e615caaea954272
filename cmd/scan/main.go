// Command scan runs a one-shot stock scan from the terminal: a preset or an
// inline filter list against a set of symbols.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"stock-screener/config"
	"stock-screener/internal/cache"
	"stock-screener/internal/marketdata"
	"stock-screener/internal/models"
	"stock-screener/internal/screener"
	"stock-screener/pkg/logger"
)

var (
	flagSymbols []string
	flagPreset  string
	flagFilters string
	flagLogic   string
)

func main() {
	root := &cobra.Command{
		Use:   "scan",
		Short: "Scan stocks against technical and fundamental filters",
		RunE:  run,
	}
	root.Flags().StringSliceVarP(&flagSymbols, "symbols", "s", nil, "symbols to scan (default: full universe)")
	root.Flags().StringVarP(&flagPreset, "preset", "p", "", "preset scan name")
	root.Flags().StringVarP(&flagFilters, "filters", "f", "", "filter configurations as a JSON array")
	root.Flags().StringVarP(&flagLogic, "logic", "l", "AND", "filter logic: AND or OR")

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New("warn")
	defer log.Sync()

	store := cache.NewMemory(log)
	client := marketdata.NewClient(cfg.API.BaseURL, cfg.API.UseLocalCandles, log)
	mock := marketdata.NewMock(log)
	provider := marketdata.NewFallbackProvider(client, mock, store, log)
	scanner := screener.NewScanner(provider, client, store, cfg.Scan.Workers, log)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	symbols := marketdata.NormalizeSymbols(flagSymbols)

	var (
		result *models.ScanResult
		err    error
	)
	switch {
	case flagPreset != "":
		result, err = scanner.RunPreset(ctx, flagPreset, symbols, nil)
	case flagFilters != "":
		filters, perr := models.ParseFilters([]byte(flagFilters))
		if perr != nil {
			return perr
		}
		result, err = scanner.Scan(ctx, symbols, filters, flagLogic)
	default:
		return fmt.Errorf("either --preset or --filters is required (presets: %v)", screener.PresetNames())
	}
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result *models.ScanResult) {
	if result.PresetName != "" {
		color.Cyan("Preset: %s — %s", result.PresetName, result.PresetDescription)
	}
	color.Green("Matched %d of %d symbols (%s)",
		result.TotalMatched, result.TotalScanned, result.FilterLogic)

	if len(result.MatchedStocks) > 0 {
		table := tablewriter.NewTable(os.Stdout)
		table.Header("Symbol", "Close", "Volume", "Date", "Filters")
		for _, stock := range result.MatchedStocks {
			table.Append([]string{
				stock.Symbol,
				strconv.FormatFloat(stock.Close, 'f', 2, 64),
				strconv.FormatInt(stock.Volume, 10),
				stock.Date,
				fmt.Sprintf("%d/%d", stock.MatchedFilters, stock.TotalFilters),
			})
		}
		table.Render()
	}

	if len(result.FailedStocks) > 0 {
		color.Yellow("%d symbols failed:", len(result.FailedStocks))
		for _, failed := range result.FailedStocks {
			color.Yellow("  %s: %s", failed.Symbol, failed.Error)
		}
	}
	if result.Note != "" {
		color.Magenta("note: %s", result.Note)
	}
}
