package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// NormalizeSymbols returns sorted unique uppercase symbols, discarding
// blanks.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range symbols {
		v := strings.ToUpper(strings.TrimSpace(s))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Watchlist and saved-scan persistence lives on the platform API; these
// calls pass payloads through and return the API's JSON untouched.

// CreateWatchlist persists a new watchlist.
func (c *Client) CreateWatchlist(ctx context.Context, name string, symbols []string, description string) (json.RawMessage, error) {
	payload := map[string]any{
		"name":        name,
		"symbols":     NormalizeSymbols(symbols),
		"description": description,
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/api/watchlists", nil, payload, &out)
	return out, err
}

// ListWatchlists returns every saved watchlist.
func (c *Client) ListWatchlists(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/api/watchlists", nil, nil, &out)
	return out, err
}

// UpdateWatchlistSymbols replaces the symbol set of a watchlist. The API
// accepts an id or a name as the identifier.
func (c *Client) UpdateWatchlistSymbols(ctx context.Context, identifier string, symbols []string) (json.RawMessage, error) {
	payload := map[string]any{"symbols": NormalizeSymbols(symbols)}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPatch, "/api/watchlists/"+identifier+"/symbols", nil, payload, &out)
	return out, err
}

// DeleteWatchlist removes a watchlist by id or name.
func (c *Client) DeleteWatchlist(ctx context.Context, identifier string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodDelete, "/api/watchlists/"+identifier, nil, nil, &out)
	return out, err
}

// WatchlistScan runs a filter scan against a watchlist's symbols on the
// platform side.
func (c *Client) WatchlistScan(ctx context.Context, identifier string, filters json.RawMessage, filterLogic string) (json.RawMessage, error) {
	payload := map[string]any{
		"filters":     filters,
		"filterLogic": filterLogic,
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/api/watchlists/"+identifier+"/scan", nil, payload, &out)
	return out, err
}

// WatchlistSymbols resolves a watchlist identifier (id or name) to its
// symbols by listing all watchlists.
func (c *Client) WatchlistSymbols(ctx context.Context, identifier string) ([]string, error) {
	var resp struct {
		Watchlists map[string]struct {
			Name    string   `json:"name"`
			Symbols []string `json:"symbols"`
		} `json:"watchlists"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/watchlists", nil, nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "resolving watchlist %q", identifier)
	}
	if wl, ok := resp.Watchlists[identifier]; ok {
		return wl.Symbols, nil
	}
	for _, wl := range resp.Watchlists {
		if wl.Name == identifier {
			return wl.Symbols, nil
		}
	}
	return nil, errors.Errorf("watchlist %q not found", identifier)
}

// CreateSavedScan persists a reusable scan definition.
func (c *Client) CreateSavedScan(ctx context.Context, name string, filters json.RawMessage, filterLogic string, symbols []string, description string) (json.RawMessage, error) {
	normalized := []string{}
	if len(symbols) > 0 {
		normalized = NormalizeSymbols(symbols)
	}
	payload := map[string]any{
		"name":        name,
		"filters":     filters,
		"filterLogic": filterLogic,
		"symbols":     normalized,
		"description": description,
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/api/saved-scans", nil, payload, &out)
	return out, err
}

// ListSavedScans returns every saved scan definition.
func (c *Client) ListSavedScans(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/api/saved-scans", nil, nil, &out)
	return out, err
}

// RunSavedScan executes a saved scan by id or name.
func (c *Client) RunSavedScan(ctx context.Context, identifier string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/api/saved-scans/"+identifier+"/run", nil, nil, &out)
	return out, err
}

// DeleteSavedScan removes a saved scan definition by id or name.
func (c *Client) DeleteSavedScan(ctx context.Context, identifier string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodDelete, "/api/saved-scans/"+identifier, nil, nil, &out)
	return out, err
}
