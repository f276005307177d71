package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_NoFileUsesStderrOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(FormatJSON, slog.LevelInfo, &buf, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if closer != nil {
		t.Error("expected no closer when no file configured")
	}
	logger.Info("hello", "k", "v")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["k"] != "v" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestNew_TeesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "tmplfoundry.log")

	var buf bytes.Buffer
	logger, closer, err := New(FormatJSON, slog.LevelDebug, &buf, logPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if closer == nil {
		t.Fatal("expected closer for file-backed logger")
	}
	defer closer.Close()

	logger.Debug("build starting", "pipeline_id", "p-1")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "build starting") {
		t.Errorf("log file missing message: %q", data)
	}
	if !strings.Contains(buf.String(), "build starting") {
		t.Errorf("stderr buffer missing message: %q", buf.String())
	}
}

func TestNewForTest_Silent(t *testing.T) {
	logger := NewForTest()
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("noop")
}

func TestWithHelpers(t *testing.T) {
	logger := NewForTest()
	logger = WithPipeline(logger, "p-1")
	logger = WithConfig(logger, "default")
	logger = WithPhase(logger, "build")
	if logger == nil {
		t.Fatal("expected chained logger to remain non-nil")
	}
}
