package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesJSONLinesToLogFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(dir, slog.LevelDebug)
	logger.Info("hello", "key", "value")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty after a log call")
	}
}
