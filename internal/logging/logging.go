// Package logging provides structured logging setup for listing-tracker.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Setup initializes the default slog logger on w.
// Dev mode uses human-readable text; prod uses JSON.
func Setup(w io.Writer, devMode bool) {
	slog.SetDefault(New(w, devMode))
}

// New returns a logger writing to w in the same formats Setup uses.
func New(w io.Writer, devMode bool) *slog.Logger {
	var handler slog.Handler
	if devMode {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return slog.New(handler)
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// For returns the default logger tagged with a component name.
func For(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
