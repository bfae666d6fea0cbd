// Package corelog builds the structured logger shared by every rem component.
package corelog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger. When pretty is true it writes human-readable console
// output (local dev); otherwise it writes one JSON object per line, suited
// to being piped into a log collector.
func New(pretty bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the owning component, so
// log lines can be filtered by subsystem without grepping call sites.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
