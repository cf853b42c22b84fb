// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rfpintel/agentflow/internal/config"
)

// fallbackLogPath receives logs when every configured output is disabled.
const fallbackLogPath = "./logs/agentflow-fallback.log"

// Manager manages multiple loggers for different packages
type Manager struct {
	config         *config.LogConfig
	globalLogger   zerolog.Logger
	packageLoggers map[string]zerolog.Logger
	mu             sync.RWMutex
	closers        []io.Closer
}

// NewManager creates a new logger manager
func NewManager(cfg *config.LogConfig) (*Manager, error) {
	m := &Manager{
		config:         cfg,
		packageLoggers: make(map[string]zerolog.Logger),
	}

	globalLevel := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(globalLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	writers, err := m.createWriters(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create log writers: %w", err)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		// Keep logs somewhere rather than dropping them silently
		file, err := m.openFile(fallbackLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback log file: %w", err)
		}
		out = file
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	m.globalLogger = m.createLogger(out, globalLevel)

	// The zerolog default logger is left alone; packages get theirs via GetLogger().
	return m, nil
}

// createWriters creates all configured output writers
func (m *Manager) createWriters(cfg *config.LogConfig) ([]io.Writer, error) {
	var writers []io.Writer

	for _, output := range cfg.Output {
		if !output.Enabled {
			continue
		}

		switch output.Type {
		case "console":
			if cfg.Format == "console" {
				writers = append(writers, consoleWriter(os.Stderr, "15:04:05.000"))
			} else {
				writers = append(writers, os.Stderr)
			}

		case "file":
			w, err := m.fileWriter(output)
			if err != nil {
				return nil, err
			}
			if cfg.Format == "console" {
				w = consoleWriter(w, "2006-01-02 15:04:05.000")
			}
			writers = append(writers, w)

		default:
			return nil, fmt.Errorf("unsupported output type: %s", output.Type)
		}
	}

	return writers, nil
}

// fileWriter returns a rotating writer when rotation is configured, a plain file otherwise.
func (m *Manager) fileWriter(output config.LogOutputConfig) (io.Writer, error) {
	if output.Rotate.MaxSizeMB <= 0 {
		return m.openFile(output.Path)
	}

	if err := os.MkdirAll(filepath.Dir(output.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	w := &lumberjack.Logger{
		Filename:   output.Path,
		MaxSize:    output.Rotate.MaxSizeMB,
		MaxBackups: output.Rotate.MaxBackups,
		MaxAge:     output.Rotate.MaxAgeDays,
		Compress:   output.Rotate.Compress,
	}
	m.closers = append(m.closers, w)
	return w, nil
}

func (m *Manager) openFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	m.closers = append(m.closers, file)
	return file, nil
}

func consoleWriter(out io.Writer, timeFormat string) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: timeFormat,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s:", i)
		},
	}
}

// createLogger creates a configured zerolog logger
func (m *Manager) createLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	l := zerolog.New(w).Level(level)

	if m.config.Context.IncludeTimestamp {
		l = l.With().Timestamp().Logger()
	}
	if m.config.Context.IncludeCaller {
		l = l.With().Caller().Logger()
	}
	if m.config.Context.IncludeStackTrace != "" {
		l = l.With().Stack().Logger()
	}

	if m.config.Sampling.Enabled {
		l = l.Sample(&zerolog.BurstSampler{
			Burst:       m.config.Sampling.Initial,
			Period:      m.config.Sampling.Tick,
			NextSampler: &zerolog.BasicSampler{N: m.config.Sampling.Thereafter},
		})
	}

	return l
}

// GetLogger returns a logger for a specific package
func (m *Manager) GetLogger(pkg string) zerolog.Logger {
	m.mu.RLock()
	if logger, exists := m.packageLoggers[pkg]; exists {
		m.mu.RUnlock()
		return logger
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check again in case it was created while waiting for lock
	if logger, exists := m.packageLoggers[pkg]; exists {
		return logger
	}

	level := parseLevel(m.config.Level)
	if pkgLevel, exists := m.config.Levels[pkg]; exists {
		level = parseLevel(pkgLevel)
	}

	logger := m.globalLogger.With().Str("pkg", pkg).Logger().Level(level)
	m.packageLoggers[pkg] = logger

	return logger
}

// SetPackageLevel dynamically sets the log level for a package
func (m *Manager) SetPackageLevel(pkg string, level string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.Levels == nil {
		m.config.Levels = make(map[string]string)
	}
	m.config.Levels[pkg] = level

	if logger, exists := m.packageLoggers[pkg]; exists {
		m.packageLoggers[pkg] = logger.Level(parseLevel(level))
	}
}

// Close closes all file writers
func (m *Manager) Close() error {
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "PANIC":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

var (
	globalManager *Manager
	once          sync.Once
)

// Initialize initializes the global logger manager
func Initialize(cfg *config.LogConfig) error {
	var err error
	once.Do(func() {
		globalManager, err = NewManager(cfg)
	})
	return err
}

// GetLogger returns a logger for the specified package
func GetLogger(pkg string) zerolog.Logger {
	if globalManager == nil {
		// Discard when not initialized so library use and tests stay quiet
		return zerolog.New(io.Discard).With().Timestamp().Logger()
	}
	return globalManager.GetLogger(pkg)
}

// CloseGlobal closes the global logger manager
func CloseGlobal() error {
	if globalManager != nil {
		return globalManager.Close()
	}
	return nil
}
