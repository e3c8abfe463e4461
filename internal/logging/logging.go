// Package logging builds the engine's diagnostic logger: structured JSON
// lines written to a rotating file, via the standard library's log/slog
// fronting a lumberjack-managed writer.
package logging

import (
	"log/slog"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = ".codexfi.log"

// New builds a slog.Logger that appends JSON lines to DATA_DIR/.codexfi.log,
// rotated by lumberjack once the file exceeds a few megabytes.
func New(dataDir string, level slog.Level) *slog.Logger {
	writer := &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, logFileName),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
