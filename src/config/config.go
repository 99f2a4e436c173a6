package config

import (
	"fmt"
	"os"
	"strings"

	"daq-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// NewConfigFromModel wraps an already-built MConfig (used from tests)
func NewConfigFromModel(mc *models.MConfig) (*Config, error) {
	config := &Config{MConfig: mc}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills in values the YAML file may omit
func (c *Config) applyDefaults() {
	if c.Acquisition.ReadTimeoutMs == 0 {
		c.Acquisition.ReadTimeoutMs = 1000
	}
	if c.Acquisition.MaxRetries == 0 {
		c.Acquisition.MaxRetries = 3
	}
	if c.Acquisition.RetentionSeconds == 0 {
		c.Acquisition.RetentionSeconds = 5
	}
	if c.Acquisition.ModeThresholdHz == 0 {
		c.Acquisition.ModeThresholdHz = 10000
	}
	if c.Processing.CadenceMs == 0 {
		c.Processing.CadenceMs = 100
	}
	if c.Processing.FFTLength == 0 {
		c.Processing.FFTLength = 1024
	}
	if c.Processing.WindowType == "" {
		c.Processing.WindowType = "hann"
	}
	if c.Processing.FilterOrder == 0 {
		c.Processing.FilterOrder = 4
	}
	if c.Processing.TraceWindowMs == 0 {
		c.Processing.TraceWindowMs = 1000
	}
	if c.Processing.MaxPlotPoints == 0 {
		c.Processing.MaxPlotPoints = 2000
	}
	if c.Display.RefreshHz == 0 {
		c.Display.RefreshHz = 30
	}
	if c.Monitor.IntervalMs == 0 {
		c.Monitor.IntervalMs = 1000
	}
	if c.Monitor.RateAccuracyWarn == 0 {
		c.Monitor.RateAccuracyWarn = 95
	}
	if c.Monitor.RateAccuracyCrit == 0 {
		c.Monitor.RateAccuracyCrit = 80
	}
	if c.Monitor.OccupancyHighPct == 0 {
		c.Monitor.OccupancyHighPct = 80
	}
	if c.Pool.MaxIdleBlocks == 0 {
		c.Pool.MaxIdleBlocks = 64
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 7
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server configuration (only checked when a display server is wanted)
	if c.Port != 0 && (c.Port <= 1024 || c.Port > 65535) {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Acquisition configuration
	if len(c.Acquisition.Channels) == 0 {
		return fmt.Errorf("at least one acquisition channel must be configured")
	}
	if c.Acquisition.SampleRateHz <= 0 {
		return fmt.Errorf("sample rate must be greater than 0")
	}
	if c.Acquisition.BlockSize < 0 {
		return fmt.Errorf("block size cannot be negative")
	}
	if c.Acquisition.RetentionSeconds <= 0 {
		return fmt.Errorf("retention seconds must be greater than 0")
	}

	// Processing configuration
	if c.Processing.FFTLength&(c.Processing.FFTLength-1) != 0 {
		return fmt.Errorf("fft_length must be a power of two, got %d", c.Processing.FFTLength)
	}
	switch strings.ToLower(c.Processing.WindowType) {
	case "hann", "hanning", "hamming", "blackman", "rectangular":
	default:
		return fmt.Errorf("unknown window type '%s'", c.Processing.WindowType)
	}
	if c.Processing.FilterEnabled {
		switch strings.ToLower(c.Processing.FilterType) {
		case "low_pass", "high_pass", "band_pass", "band_stop", "notch_50hz", "notch_60hz":
		default:
			return fmt.Errorf("unknown filter type '%s'", c.Processing.FilterType)
		}
	}

	// Storage configuration
	if c.Storage.Enabled {
		if c.Storage.DBType == "" {
			return fmt.Errorf("database type cannot be empty")
		}
		if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
		if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
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

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
