package api

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// GetSystemStatus fetches the exchange status.
func (c *Client) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	var resp SystemStatus
	if err := c.get(ctx, "/0/public/SystemStatus", nil, &resp); err != nil {
		return nil, fmt.Errorf("get system status: %w", err)
	}
	return &resp, nil
}

// GetAssetPairs fetches the pair catalogue keyed by the REST pair name.
// With no arguments every pair is returned.
func (c *Client) GetAssetPairs(ctx context.Context, pairs ...string) (map[string]AssetPair, error) {
	var query url.Values
	if len(pairs) > 0 {
		query = url.Values{"pair": {strings.Join(pairs, ",")}}
	}

	var resp map[string]AssetPair
	if err := c.get(ctx, "/0/public/AssetPairs", query, &resp); err != nil {
		return nil, fmt.Errorf("get asset pairs: %w", err)
	}
	return resp, nil
}

// UnknownPairs returns the websocket pair names (e.g. "XBT/USD") that are
// not in the catalogue, sorted.
func (c *Client) UnknownPairs(ctx context.Context, wsNames []string) ([]string, error) {
	catalogue, err := c.GetAssetPairs(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(catalogue))
	for _, p := range catalogue {
		if p.WSName != "" {
			known[p.WSName] = true
		}
	}

	var unknown []string
	for _, name := range wsNames {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}
