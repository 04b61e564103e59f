package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

type Config struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Output receives console logs; stderr when nil so stdout stays free for
	// command results.
	Output io.Writer
}

// Init installs the default slog logger and routes the standard log package
// through it. The returned writer is nil unless a log file is configured.
func Init(cfg Config) (*RotatingWriter, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}

	var rotating *RotatingWriter
	out := console
	if strings.TrimSpace(cfg.File) != "" {
		rotating, err = NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(console, rotating)
	}

	handler, err := newHandler(cfg.Format, out, level)
	if err != nil {
		if rotating != nil {
			_ = rotating.Close()
		}
		return nil, err
	}
	slog.SetDefault(slog.New(handler))

	stdLogger := slog.NewLogLogger(handler, level)
	log.SetFlags(0)
	log.SetOutput(stdLogger.Writer())

	return rotating, nil
}

func newHandler(format string, w io.Writer, level slog.Level) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	case FormatPretty:
		return tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen}), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}
