package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adforge/internal/config"
	"adforge/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("hello", logging.String("k", "v"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "adforge.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("expected json log line, got %q", string(data))
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := logging.WithProject(context.Background(), "p-1")
	ctx = logging.WithStage(ctx, "video_generating")

	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 context fields, got %d", len(fields))
	}
	keys := map[string]bool{}
	for _, f := range fields {
		keys[f.Key] = true
	}
	if !keys[logging.FieldProjectID] || !keys[logging.FieldStage] {
		t.Fatalf("missing expected keys: %#v", keys)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("should not panic", logging.Error(nil))
}
