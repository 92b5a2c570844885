package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubflow/internal/logging"
	"dubflow/internal/services"
)

func TestNewWritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", LogDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", logging.String("k", "v"))

	data, err := os.ReadFile(filepath.Join(dir, "dubflow.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("expected message in log output, got %q", string(data))
	}
	if !strings.Contains(string(data), `"k":"v"`) {
		t.Fatalf("expected attribute in log output, got %q", string(data))
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithTaskID(context.Background(), "t1")
	ctx = services.WithStep(ctx, "pack")

	fields := logging.ContextFields(ctx)
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		keys[f.Key] = true
	}
	if !keys[logging.FieldTaskID] || !keys[logging.FieldStep] {
		t.Fatalf("expected task and step fields, got %v", keys)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Info("should not panic")
	if logger.Enabled(context.Background(), 0) {
		t.Fatal("nop logger should not be enabled")
	}
}
