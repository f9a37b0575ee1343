package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/krakenbook/internal/config"
	"github.com/rickgao/krakenbook/internal/logging"
)

func reloadConfig(level string) *config.Config {
	return &config.Config{
		Instance:      config.InstanceConfig{ID: "reload"},
		Subscriptions: []config.SubscriptionConfig{{Name: "book", Depth: 10, Pairs: []string{"XBT/USD"}}},
		Logging:       config.LoggingConfig{Level: level, Format: "json"},
	}
}

func TestApplyReload_LevelOnly(t *testing.T) {
	var buf bytes.Buffer
	lg, err := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	applyReload(lg, reloadConfig("info"), reloadConfig("debug"))
	require.NoError(t, lg.Sync())

	assert.Equal(t, "debug", lg.Level())
	out := buf.String()
	assert.Contains(t, out, "log level changed")
	assert.NotContains(t, out, "restart to apply")
}

func TestApplyReload_OtherFieldsNeedRestart(t *testing.T) {
	var buf bytes.Buffer
	lg, err := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	next := reloadConfig("info")
	next.Subscriptions[0].Pairs = []string{"ETH/USD"}
	applyReload(lg, reloadConfig("info"), next)
	require.NoError(t, lg.Sync())

	assert.Equal(t, "info", lg.Level())
	assert.Equal(t, 1, strings.Count(buf.String(), "restart to apply"))
}
