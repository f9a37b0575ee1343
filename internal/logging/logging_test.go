package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/krakenbook/internal/config"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry), sc.Text())
		out = append(out, entry)
	}
	return out
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Debug("hidden")
	l.With("identity", "book_XBT/USD").Warn("connection lost, reconnecting",
		"retries", 3,
		"error", errors.New("connection reset"),
	)
	require.NoError(t, l.Sync())

	entries := lines(t, &buf)
	require.Len(t, entries, 1, "debug filtered at info level")

	e := entries[0]
	assert.Equal(t, "warn", e["level"])
	assert.Equal(t, "connection lost, reconnecting", e["msg"])
	assert.Equal(t, "book_XBT/USD", e["identity"])
	assert.EqualValues(t, 3, e["retries"])
	assert.Equal(t, "connection reset", e["error"])
}

func TestNewWithWriter_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Debug("state change", "from", "connecting", "to", "connected")
	assert.Len(t, lines(t, &buf), 1)
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{Level: "info", Format: "console"}, &buf)
	require.NoError(t, err)

	l.Info("subscribed", "url", "wss://ws.kraken.com")
	out := buf.String()
	assert.True(t, strings.Contains(out, "subscribed"), out)
	assert.True(t, strings.Contains(out, "wss://ws.kraken.com"), out)
}

func TestNewWithWriter_Invalid(t *testing.T) {
	_, err := NewWithWriter(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = NewWithWriter(config.LoggingConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.EqualError(t, err, `invalid log format "xml"`)
}

func TestNewWithWriter_Defaults(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{}, &buf)
	require.NoError(t, err)
	require.NotNil(t, l.Zap())

	l.Info("hello")
	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	child := l.With("identity", "book_XBT/USD")

	child.Info("before")
	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, "debug", l.Level())
	child.Debug("after")
	require.NoError(t, l.Sync())

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "after", entries[0]["msg"])

	assert.Error(t, l.SetLevel("loud"))
	assert.Equal(t, "debug", l.Level(), "invalid level leaves the current one")
}
