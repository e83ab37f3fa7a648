package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/jstrand/chatctl/internal/config"
)

// New builds the process logger from config. Format "auto" picks a tint
// handler when the output is a terminal and JSON otherwise; "text" and
// "json" force the choice. The returned closer is non-nil only for file
// output and must be closed on shutdown.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var (
		out    io.Writer
		closer io.Closer
		tty    bool
	)

	switch cfg.Output {
	case "stdout":
		out = os.Stdout
		tty = isatty.IsTerminal(os.Stdout.Fd())
	case "stderr":
		out = os.Stderr
		tty = isatty.IsTerminal(os.Stderr.Fd())
	default:
		rw, err := NewRotatingWriter(cfg.Output, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		if err != nil {
			return nil, nil, err
		}
		out = rw
		closer = rw
	}

	level := parseLevel(cfg.Level)

	var handler slog.Handler
	useText := cfg.Format == "text" || (cfg.Format == "auto" && tty)
	if useText {
		handler = tint.NewHandler(out, &tint.Options{Level: level})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), closer, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
