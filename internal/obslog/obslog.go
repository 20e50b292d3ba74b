// Package obslog provides opt-in, rotating, structured file logging for
// long-running hosts embedding the engine (a watch process rebuilding
// packs, a server answering queries). Setup returns a standard *slog.Logger;
// calling slog.SetDefault on it routes the warnings pkg/vpack, modelregistry,
// and pipelineconfig emit on their own I/O paths into the rotating file
// instead of stderr.
package obslog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls Setup.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the rotating log file's path. Empty disables file logging;
	// Setup then logs to stderr, whatever WriteToStderr says.
	FilePath string
	// MaxSizeMB is the file size that triggers rotation. DefaultConfig sets
	// 10; zero is not replaced by a default and rotates before every write.
	MaxSizeMB int
	// MaxFiles caps the number of rotated files kept. DefaultConfig sets 5.
	MaxFiles int
	// WriteToStderr additionally writes every record to stderr when
	// FilePath is set.
	WriteToStderr bool
}

// DefaultConfig returns info-level logging to FilePath plus stderr.
func DefaultConfig(filePath string) Config {
	return Config{
		Level:         "info",
		FilePath:      filePath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// Setup builds a JSON-handler *slog.Logger per cfg and returns a cleanup
// function the caller must run (typically via defer) to flush and close
// the underlying file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var (
		output  io.Writer = os.Stderr
		cleanup           = func() {}
	)

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		if cfg.WriteToStderr {
			output = io.MultiWriter(writer, os.Stderr)
		} else {
			output = writer
		}
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	return slog.New(handler), cleanup, nil
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
