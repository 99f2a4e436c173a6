package models

// MConfig Structure
type MConfig struct {
	Name        string             `yaml:"name"`
	Host        string             `yaml:"host"`
	Port        int                `yaml:"port"`
	LogLevel    string             `yaml:"log_level"`
	Acquisition MAcquisitionConfig `yaml:"acquisition"`
	Processing  MProcessingConfig  `yaml:"processing"`
	Display     MDisplayConfig     `yaml:"display"`
	Monitor     MMonitorConfig     `yaml:"monitor"`
	Pool        MPoolConfig        `yaml:"pool"`
	Storage     MStorageConfig     `yaml:"storage"`
}

type MAcquisitionConfig struct {
	DeviceName       string   `yaml:"device_name"`
	Channels         []string `yaml:"channels"`
	SampleRateHz     float64  `yaml:"sample_rate_hz"`
	BlockSize        int      `yaml:"block_size"` // samples per read, 0 = derived from rate
	ReadTimeoutMs    int      `yaml:"read_timeout_ms"`
	MaxRetries       int      `yaml:"max_retries"`
	AverageMs        float64  `yaml:"average_ms"` // 0 disables block averaging
	RetentionSeconds float64  `yaml:"retention_seconds"`
	ModeThresholdHz  float64  `yaml:"mode_threshold_hz"`
}

type MProcessingConfig struct {
	CadenceMs       int     `yaml:"cadence_ms"`
	FilterEnabled   bool    `yaml:"filter_enabled"`
	FilterType      string  `yaml:"filter_type"` // low_pass, high_pass, band_pass, band_stop, notch_50hz, notch_60hz
	FilterCutoff1   float64 `yaml:"filter_cutoff1"`
	FilterCutoff2   float64 `yaml:"filter_cutoff2"`
	FilterOrder     int     `yaml:"filter_order"`
	SpectrumEnabled bool    `yaml:"spectrum_enabled"`
	FFTLength       int     `yaml:"fft_length"`
	WindowType      string  `yaml:"window_type"` // hann, hamming, blackman, rectangular
	MaxFrequencyHz  float64 `yaml:"max_frequency_hz"`
	TraceWindowMs   float64 `yaml:"trace_window_ms"`
	MaxPlotPoints   int     `yaml:"max_plot_points"`
}

type MDisplayConfig struct {
	RefreshHz float64 `yaml:"refresh_hz"`
}

type MMonitorConfig struct {
	IntervalMs        int     `yaml:"interval_ms"`
	RateAccuracyWarn  float64 `yaml:"rate_accuracy_warn"`  // percent
	RateAccuracyCrit  float64 `yaml:"rate_accuracy_crit"`  // percent
	OccupancyHighPct  float64 `yaml:"occupancy_high_pct"`  // percent
	AlertHistoryLimit int     `yaml:"alert_history_limit"` // 0 = default
}

type MPoolConfig struct {
	MaxIdleBlocks int `yaml:"max_idle_blocks"`
	MaxIdleMB     int `yaml:"max_idle_mb"` // 0 = derived from system memory
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}
