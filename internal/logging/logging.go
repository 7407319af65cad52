// Package logging provides structured JSON logging for the indexer and
// search core: a rotating file writer feeding a log/slog JSON handler,
// optionally tee'd to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how structured logs are written.
type Config struct {
	Level         string
	FilePath      string
	MaxSizeMB     int
	MaxFiles      int
	WriteToStderr bool
}

// DefaultConfig returns sensible defaults for file-backed logging.
func DefaultConfig(logPath string) Config {
	return Config{
		Level:         "info",
		FilePath:      logPath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// Setup builds a *slog.Logger writing JSON lines to a rotating file (and
// optionally stderr), returning a cleanup closure that flushes and closes
// the file. One line per indexed file and one summary block per sweep
// go through the returned logger.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = writer
	if cfg.WriteToStderr {
		out = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	logger := slog.New(handler)

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}

	return logger, cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
