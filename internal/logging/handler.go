package logging

import (
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// NewHandler returns a colourised handler on stderr when stdout is a
// terminal, and a JSON handler on stdout otherwise.
func NewHandler(level slog.Leveler) slog.Handler {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return newHandler(colorable.NewColorable(os.Stderr), true, level)
	}
	return newHandler(os.Stdout, false, level)
}

func newHandler(w io.Writer, tty bool, level slog.Leveler) slog.Handler {
	if tty {
		return tint.NewHandler(w, &tint.Options{Level: level})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// levelOff is above every level anything logs at.
const levelOff = slog.Level(math.MaxInt32)

var discard = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelOff}))

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return discard
}

// OrDiscard returns logger, or a discarding logger if it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}
