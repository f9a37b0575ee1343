package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/krakenbook/internal/api"
	"github.com/rickgao/krakenbook/internal/config"
)

// preflight checks the exchange status and rejects pairs the exchange does
// not list. A non-online status is logged but not fatal: the manager keeps
// retrying until the feed comes back.
func preflight(ctx context.Context, client *api.Client, subs []config.SubscriptionConfig, logger *slog.Logger) error {
	status, err := client.GetSystemStatus(ctx)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	if status.Online() {
		logger.Info("exchange status", "status", status.Status, "timestamp", status.Timestamp)
	} else {
		logger.Warn("exchange not online", "status", status.Status, "timestamp", status.Timestamp)
	}

	var pairs []string
	for _, sub := range subs {
		pairs = append(pairs, sub.Pairs...)
	}
	unknown, err := client.UnknownPairs(ctx, pairs)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	if len(unknown) > 0 {
		return fmt.Errorf("preflight: pairs not listed by the exchange: %v", unknown)
	}
	logger.Info("preflight passed", "pairs", len(pairs))
	return nil
}
