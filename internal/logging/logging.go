// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// logger fields
const (
	RunID   = "run_id"
	Account = "account"
	TxnID   = "txn_id"
	Page    = "page"
	Scope   = "scope"
	Status  = "status"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New returns a timestamped logger writing to w at level ("debug", "info",
// "warn", "error"). With console set, output is human readable instead of
// JSON.
func New(w io.Writer, level string, console bool) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parsing log level %q: %w", level, err)
		}
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
