// Package logging provides config-driven categorized logging for webshell.
// Every category shares one zap core: console output at the configured level,
// plus a JSON file under <data dir>/logs/ when debug_mode is enabled.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Boot/initialization
	CategoryStore   Category = "store"   // Key/value store load and save
	CategoryBridge  Category = "bridge"  // Page -> host message ingress
	CategoryLoop    Category = "loop"    // Control loop dispatch
	CategoryStartup Category = "startup" // Run-at-login registration
	CategoryBrowser Category = "browser" // Browser surface, CDP events
	CategoryNotify  Category = "notify"  // Desktop notifications
	CategoryProbe   Category = "probe"   // Connectivity probe
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string
	DebugMode  bool
	JSONFormat bool
	Categories map[string]bool
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*Logger)
	logFile *os.File
	logsDir string
)

// Initialize builds the shared zap core. It may be called again to reconfigure;
// previously returned loggers keep their old core.
func Initialize(dataDir string, o Options) error {
	level := zapcore.InfoLevel
	if o.Level != "" {
		parsed, err := zapcore.ParseLevel(o.Level)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", o.Level, err)
		}
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEnc zapcore.Encoder
	if o.JSONFormat {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	var file *os.File
	var dir string
	if o.DebugMode {
		if dataDir == "" {
			return fmt.Errorf("data directory required for debug logging")
		}
		dir = filepath.Join(dataDir, "logs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create logs directory: %w", err)
		}
		name := fmt.Sprintf("%s_webshell.log", time.Now().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel))
	}

	install(zap.New(zapcore.NewTee(cores...), zap.AddCaller()), o, file, dir)

	boot := Get(CategoryBoot)
	boot.Debug("logging initialized level=%s debug_mode=%v", level, o.DebugMode)
	if dir != "" {
		boot.Debug("logs directory: %s", dir)
	}
	return nil
}

// Use installs an existing zap logger, typically a zaptest or observer
// logger in tests. Every category is enabled.
func Use(l *zap.Logger) {
	install(l, Options{}, nil, "")
}

func install(l *zap.Logger, o Options, file *os.File, dir string) {
	mu.Lock()
	defer mu.Unlock()
	_ = root.Sync()
	if logFile != nil {
		_ = logFile.Close()
	}
	root = l
	opts = o
	logFile = file
	logsDir = dir
	loggers = make(map[Category]*Logger)
}

// Root returns the underlying zap logger for callers that log structured fields.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// LogsDir returns the file log directory, or "" when file logging is off.
func LogsDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return logsDir
}

// IsCategoryEnabled reports whether a category produces output.
// Categories not listed in the config are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if opts.Categories == nil {
		return true
	}
	enabled, ok := opts.Categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		sugar:    root.Named(string(category)).WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// WithContext returns a logger that attaches the given key/value pairs to
// every entry.
func (l *Logger) WithContext(ctx map[string]interface{}) *Logger {
	kv := make([]interface{}, 0, len(ctx)*2)
	for k, v := range ctx {
		kv = append(kv, k, v)
	}
	return &Logger{category: l.category, sugar: l.sugar.With(kv...)}
}

// CloseAll flushes the shared core and closes the log file (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	_ = root.Sync()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	root = zap.NewNop()
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootWarn logs a warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}
