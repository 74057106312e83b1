package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/config"
	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// newLogger builds the process logger from the log settings. verbose forces
// debug level. The auto format writes text to terminals and JSON elsewhere.
func newLogger(c *config.Config, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := c.LogLevel()
	if err != nil {
		return nil, noteserrors.ErrConfigInvalid("log.level", err.Error())
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	format := c.Log.Format
	if format == config.LogFormatAuto {
		format = config.LogFormatJSON
		if isTerminal(w) {
			format = config.LogFormatText
		}
	}

	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
