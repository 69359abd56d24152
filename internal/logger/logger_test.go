package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_Development(t *testing.T) {
	log, err := New(Options{Development: true})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}

	// Should not panic
	log.Info("test message")
}

func TestNew_Production(t *testing.T) {
	log, err := New(Options{Level: "warn"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestMust(t *testing.T) {
	// Should not panic
	log := Must(Options{Development: true})
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	log, closeFn, err := WithFile(zap.NewNop(), path)
	if err != nil {
		t.Fatalf("WithFile() error: %v", err)
	}
	log.Info("run started", zap.String("run_id", "abc"))
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"run_id":"abc"`) {
		t.Errorf("log file missing entry: %s", data)
	}
}
