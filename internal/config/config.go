// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// DatabaseConfig holds all database configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level    string            `mapstructure:"level"`
	Format   string            `mapstructure:"format"`
	Output   []LogOutputConfig `mapstructure:"output"`
	Levels   map[string]string `mapstructure:"levels"`
	Context  LogContextConfig  `mapstructure:"context"`
	Sampling LogSamplingConfig `mapstructure:"sampling"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp"`
	IncludeLevel      bool   `mapstructure:"include_level"`
	IncludeStackTrace string `mapstructure:"include_stack_trace"` // Level at which to include stack trace
}

// LogSamplingConfig defines log sampling settings
type LogSamplingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Initial    uint32        `mapstructure:"initial"`
	Thereafter uint32        `mapstructure:"thereafter"`
	Tick       time.Duration `mapstructure:"tick"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // Empty = allow all (development); set for production
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`  // Largest accepted request body
}

// SimulationConfig holds the timing and catalog of the progress simulator.
type SimulationConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	StepSize     float64       `mapstructure:"step_size"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	DoneLabel    string        `mapstructure:"done_label"`
	CatalogFile  string        `mapstructure:"catalog_file"` // Empty means the built-in RFP catalog
}

// AnalysisConfig holds settings for the remote analysis service.
type AnalysisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Delay      time.Duration `mapstructure:"delay"` // Wait after activation before the request is issued
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint          `mapstructure:"max_retries"` // Retries on transport errors and 5xx responses
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"` // "none", "stdout" or "otlp-http"
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/agentflow/")
		v.AddConfigPath("$HOME/.agentflow")
	}

	v.SetEnvPrefix("AGENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal over the defaults so only keys present in the file or env override them.
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{
			Enabled:  true,
			Driver:   "sqlite",
			Database: "agentflow.db",
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Output: []LogOutputConfig{
				{
					Type:    "file",
					Enabled: true,
					Path:    "./logs/agentflow.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
				{
					Type:    "console",
					Enabled: false, // Disabled by default for TUI
				},
			},
			Levels: map[string]string{
				"pipeline":  "INFO",
				"tui":       "WARN",
				"api":       "INFO",
				"analysis":  "INFO",
				"database":  "INFO",
				"telemetry": "WARN",
			},
			Context: LogContextConfig{
				IncludeCaller:     true,
				IncludeTimestamp:  true,
				IncludeLevel:      true,
				IncludeStackTrace: "ERROR",
			},
			Sampling: LogSamplingConfig{
				Enabled:    false,
				Initial:    100,
				Thereafter: 100,
				Tick:       time.Second,
			},
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			MaxBodyBytes: 64 << 10,
		},
		Simulation: SimulationConfig{
			TickInterval: 400 * time.Millisecond,
			StepSize:     5,
			SettleDelay:  500 * time.Millisecond,
			DoneLabel:    "Analysis complete",
		},
		Analysis: AnalysisConfig{
			Enabled:    false,
			Endpoint:   "http://127.0.0.1:5000/api/analyze",
			Delay:      18 * time.Second,
			Timeout:    2 * time.Minute,
			MaxRetries: 3,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Exporter:    "none",
			Endpoint:    "localhost:4318",
			Insecure:    true,
			ServiceName: "agentflow",
			SampleRate:  1.0,
		},
	}
}

// expandPaths expands ~ and environment variables in path configuration values
func (c *AppConfig) expandPaths() {
	if c.Simulation.CatalogFile != "" {
		c.Simulation.CatalogFile = expandPath(c.Simulation.CatalogFile)
	}
	for i := range c.Log.Output {
		if c.Log.Output[i].Path != "" {
			c.Log.Output[i].Path = expandPath(c.Log.Output[i].Path)
		}
	}
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	if c.Database.Enabled && c.Database.Driver == "" {
		return errors.New("database driver is required")
	}

	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got: %d", c.Server.MaxBodyBytes)
	}

	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be positive, got: %s", c.Simulation.TickInterval)
	}
	if c.Simulation.StepSize <= 0 || c.Simulation.StepSize > 100 {
		return fmt.Errorf("simulation.step_size must be in (0, 100], got: %v", c.Simulation.StepSize)
	}
	if c.Simulation.SettleDelay < 0 {
		return fmt.Errorf("simulation.settle_delay must not be negative, got: %s", c.Simulation.SettleDelay)
	}

	if c.Analysis.Enabled && c.Analysis.Endpoint == "" {
		return errors.New("analysis.endpoint is required when analysis is enabled")
	}

	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp-http":
	default:
		if c.Telemetry.Enabled {
			return fmt.Errorf("telemetry.exporter must be 'none', 'stdout' or 'otlp-http', got: %s", c.Telemetry.Exporter)
		}
	}

	return nil
}

// GetDSN returns the database connection string.
func (dc *DatabaseConfig) GetDSN() string {
	switch dc.Driver {
	case "sqlite":
		dsn := dc.Database
		if dsn == ":memory:" {
			dsn = "file::memory:?cache=shared"
		}
		return dsn
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			dc.Host, dc.Port, dc.Username, dc.Password, dc.Database, dc.SSLMode)
	default:
		return dc.Database
	}
}
