package models

// FilterDetail is the diagnostic record one filter evaluation produces. It
// is schemaless on purpose: each filter kind reports its own breadcrumbs
// (current_value, thresholds, pattern ratios, notes, errors).
type FilterDetail map[string]any

// MatchedStock is one symbol that passed the combined filter logic.
type MatchedStock struct {
	Symbol         string         `json:"symbol"`
	Close          float64        `json:"close"`
	Volume         int64          `json:"volume"`
	Date           string         `json:"date"`
	MatchedFilters int            `json:"matched_filters"`
	TotalFilters   int            `json:"total_filters"`
	FilterDetails  []FilterDetail `json:"filter_details"`
}

// FailedStock is a symbol whose per-symbol pipeline failed outright (as
// opposed to simply not matching).
type FailedStock struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// ScanResult is the scan envelope. A scan always returns one of these; only
// malformed requests error out before scanning starts.
type ScanResult struct {
	MatchedStocks  []MatchedStock `json:"matched_stocks"`
	TotalMatched   int            `json:"total_matched"`
	TotalScanned   int            `json:"total_scanned"`
	FailedStocks   []FailedStock  `json:"failed_stocks"`
	FilterLogic    string         `json:"filter_logic"`
	FiltersApplied []*Filter      `json:"filters_applied"`
	ScanTime       string         `json:"scan_time"`

	PresetName        string `json:"preset_name,omitempty"`
	PresetDescription string `json:"preset_description,omitempty"`
	Note              string `json:"note,omitempty"`
}
