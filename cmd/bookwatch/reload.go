package main

import (
	"reflect"

	"github.com/rickgao/krakenbook/internal/config"
	"github.com/rickgao/krakenbook/internal/logging"
)

// applyReload applies the parts of a changed config that take effect
// live. Only logging.level does; anything else is reported and ignored
// until the next restart.
func applyReload(lg *logging.Logger, running, next *config.Config) {
	if next.Logging.Level != lg.Level() {
		from := lg.Level()
		if err := lg.SetLevel(next.Logging.Level); err != nil {
			lg.Warn("log level unchanged", "error", err)
		} else {
			lg.Info("log level changed", "from", from, "to", lg.Level())
		}
	}

	a, b := *running, *next
	a.Logging.Level, b.Logging.Level = "", ""
	if !reflect.DeepEqual(a, b) {
		lg.Warn("config changed outside logging.level, restart to apply")
	}
}
