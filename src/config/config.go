package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"serialpha/src/export"
	"serialpha/src/framing"
	"serialpha/src/models"
	"serialpha/src/sampling"
	"serialpha/src/utils"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty in the YAML file
const (
	DefaultName          = "serialpha"
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8000
	DefaultGrpcPort      = 50051
	DefaultDBType        = "sqlite"
	DefaultDBPath        = "serialpha.db"
	DefaultReadTimeoutMs = 200
	DefaultIntervalValue = "2"
	DefaultIntervalUnit  = "s"
	DefaultFallbackDir   = "exports"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}
	return Parse(data)
}

// LoadOrCreate loads configPath, writing a default configuration there first
// when the file does not exist. created reports whether it was written.
func LoadOrCreate(configPath string) (config *Config, created bool, err error) {
	config, err = NewConfig(configPath)
	if !errors.Is(err, os.ErrNotExist) {
		return config, false, err
	}
	if config, err = Parse(nil); err != nil {
		return nil, false, err
	}
	if err := config.Save(configPath); err != nil {
		return nil, false, err
	}
	return config, true, nil
}

// Parse decodes, completes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills every optional field left at its zero value.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	c.LogLevel = strings.ToUpper(c.LogLevel)
	if c.GrpcPort == 0 {
		c.GrpcPort = DefaultGrpcPort
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = DefaultDBType
	}
	if c.Storage.DBPath == "" && c.Storage.DBType != "postgres" {
		c.Storage.DBPath = DefaultDBPath
	}
	if c.Storage.RetentionRows == 0 {
		c.Storage.RetentionRows = utils.DefaultRetentionRows
	}

	if c.Transport.ReadTimeoutMs == 0 {
		c.Transport.ReadTimeoutMs = DefaultReadTimeoutMs
	}
	if c.Transport.MaxBufferBytes == 0 {
		c.Transport.MaxBufferBytes = framing.DefaultMaxBuffer
	}

	if c.Sampling.IntervalValue == "" {
		c.Sampling.IntervalValue = DefaultIntervalValue
	}
	if c.Sampling.IntervalUnit == "" {
		c.Sampling.IntervalUnit = DefaultIntervalUnit
	}
	if c.Sampling.MaxPoints == 0 {
		c.Sampling.MaxPoints = utils.DefaultMaxPoints
	}

	if c.Export.FallbackDir == "" {
		c.Export.FallbackDir = DefaultFallbackDir
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL", "FATAL":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort < 0 || c.GrpcPort > 65535 {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}
	if c.GrpcPort == c.Port && (c.GrpcHost == "" || c.GrpcHost == c.Host) {
		return fmt.Errorf("grpc port %d collides with the http port", c.GrpcPort)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite", "bolt":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for %s", c.Storage.DBType)
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unknown database type %q (sqlite, postgres, bolt)", c.Storage.DBType)
	}
	if c.Storage.RetentionRows < 0 {
		return fmt.Errorf("retention rows cannot be negative")
	}

	// Transport
	if c.Transport.ReadTimeoutMs < 0 {
		return fmt.Errorf("read timeout cannot be negative")
	}
	if c.Transport.MaxBufferBytes < 0 {
		return fmt.Errorf("max buffer bytes cannot be negative")
	}
	if c.Transport.ReplayChunk < 0 || c.Transport.ReplayDelayMs < 0 {
		return fmt.Errorf("replay chunk and delay cannot be negative")
	}
	if c.Transport.ReplayFile != "" {
		if _, err := os.Stat(c.Transport.ReplayFile); err != nil {
			return fmt.Errorf("replay file: %w", err)
		}
	}

	// Sampling
	if _, err := sampling.ToMilliseconds(c.Sampling.IntervalValue, c.Sampling.IntervalUnit); err != nil {
		return fmt.Errorf("default sampling interval: %w", err)
	}
	if c.Sampling.MaxPoints < 0 {
		return fmt.Errorf("max points cannot be negative")
	}

	// Export
	if c.Export.AutoExportCron != "" {
		if err := export.ValidateSchedule(c.Export.AutoExportCron); err != nil {
			return err
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory for '%s': %w", configPath, err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
