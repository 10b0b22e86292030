package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestAllCategoriesLog tests that every category reaches the file log when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(tempDir, Options{Level: "debug", DebugMode: true}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	categories := []Category{
		CategoryBoot,
		CategoryStore,
		CategoryBridge,
		CategoryLoop,
		CategoryStartup,
		CategoryBrowser,
		CategoryNotify,
		CategoryProbe,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
	}

	Boot("Convenience boot log")
	Store("Convenience store log")
	BootWarn("Convenience boot warning")

	logsPath := LogsDir()
	if logsPath != filepath.Join(tempDir, "logs") {
		t.Fatalf("unexpected logs dir %q", logsPath)
	}

	CloseAll()

	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one log file, got %d", len(entries))
	}

	content, err := os.ReadFile(filepath.Join(logsPath, entries[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	for _, cat := range categories {
		if !strings.Contains(string(content), `"logger":"`+string(cat)+`"`) {
			t.Errorf("No entries found for category: %s", cat)
		}
	}
	if !strings.Contains(string(content), "Convenience boot log") {
		t.Error("convenience function output missing")
	}
}

// TestDebugModeDisabled tests that no log files are created when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(tempDir, Options{Level: "info"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	Boot("console only")
	CloseAll()

	if LogsDir() != "" {
		t.Errorf("expected no logs dir, got %q", LogsDir())
	}
	if _, err := os.Stat(filepath.Join(tempDir, "logs")); !os.IsNotExist(err) {
		t.Errorf("logs directory should not exist, stat err=%v", err)
	}
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	t.Cleanup(CloseAll)
	if err := Initialize(t.TempDir(), Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestCategoryFilter(t *testing.T) {
	t.Cleanup(CloseAll)
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))

	mu.Lock()
	opts.Categories = map[string]bool{"probe": false}
	mu.Unlock()

	Get(CategoryProbe).Info("hidden")
	Get(CategoryLoop).Info("visible %d", 1)

	if IsCategoryEnabled(CategoryProbe) {
		t.Error("probe category should be disabled")
	}
	if logs.FilterMessage("hidden").Len() != 0 {
		t.Error("disabled category produced output")
	}
	entries := logs.FilterMessage("visible 1").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "loop" {
		t.Errorf("expected logger name loop, got %q", entries[0].LoggerName)
	}
}

func TestWithContext(t *testing.T) {
	t.Cleanup(CloseAll)
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))

	Get(CategoryBridge).WithContext(map[string]interface{}{"kind": "notify"}).Warn("dropped")

	entries := logs.FilterMessage("dropped").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["kind"]; got != "notify" {
		t.Errorf("expected kind=notify, got %v", got)
	}
}

func TestRootCarriesStructuredFields(t *testing.T) {
	t.Cleanup(CloseAll)
	core, logs := observer.New(zapcore.InfoLevel)
	Use(zap.New(core))

	Root().Info("exited", zap.String("state", "terminated"))

	entries := logs.FilterMessage("exited").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["state"]; got != "terminated" {
		t.Errorf("expected state=terminated, got %v", got)
	}
}
