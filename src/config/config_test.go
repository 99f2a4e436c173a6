package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------

const validYAML = `
name: "DAQObserver"
host: "127.0.0.1"
port: 8000
log_level: "INFO"

acquisition:
  device_name: "SimDev1"
  channels: ["ai0", "ai1"]
  sample_rate_hz: 50000
  retention_seconds: 5

processing:
  cadence_ms: 100
  spectrum_enabled: true
  fft_length: 1024
  window_type: "hann"

display:
  refresh_hz: 30
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfig(t *testing.T) {
	t.Run("loads and fills defaults", func(t *testing.T) {
		cfg, err := NewConfig(writeTempConfig(t, validYAML))
		require.NoError(t, err)

		assert.Equal(t, "DAQObserver", cfg.Name)
		assert.Equal(t, 50000.0, cfg.Acquisition.SampleRateHz)
		assert.Equal(t, []string{"ai0", "ai1"}, cfg.Acquisition.Channels)

		// Omitted values picked up defaults
		assert.Equal(t, 1000, cfg.Acquisition.ReadTimeoutMs)
		assert.Equal(t, 3, cfg.Acquisition.MaxRetries)
		assert.Equal(t, 10000.0, cfg.Acquisition.ModeThresholdHz)
		assert.Equal(t, 2000, cfg.Processing.MaxPlotPoints)
		assert.Equal(t, 95.0, cfg.Monitor.RateAccuracyWarn)
		assert.Equal(t, 64, cfg.Pool.MaxIdleBlocks)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewConfig("/nonexistent/config.yaml")
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := NewConfig(writeTempConfig(t, "name: [unclosed"))
		assert.Error(t, err)
	})
}

// -----------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	base := func() *models.MConfig {
		return &models.MConfig{
			Name: "test",
			Port: 8000,
			Acquisition: models.MAcquisitionConfig{
				Channels:     []string{"ai0"},
				SampleRateHz: 10000,
			},
		}
	}

	t.Run("valid baseline", func(t *testing.T) {
		_, err := NewConfigFromModel(base())
		assert.NoError(t, err)
	})

	t.Run("rejects bad port", func(t *testing.T) {
		mc := base()
		mc.Port = 80
		_, err := NewConfigFromModel(mc)
		assert.Error(t, err)
	})

	t.Run("rejects empty channel list", func(t *testing.T) {
		mc := base()
		mc.Acquisition.Channels = nil
		_, err := NewConfigFromModel(mc)
		assert.Error(t, err)
	})

	t.Run("rejects zero sample rate", func(t *testing.T) {
		mc := base()
		mc.Acquisition.SampleRateHz = 0
		_, err := NewConfigFromModel(mc)
		assert.Error(t, err)
	})

	t.Run("rejects non power of two fft length", func(t *testing.T) {
		mc := base()
		mc.Processing.FFTLength = 1000
		_, err := NewConfigFromModel(mc)
		assert.Error(t, err)
	})

	t.Run("rejects unknown window", func(t *testing.T) {
		mc := base()
		mc.Processing.WindowType = "kaiser"
		_, err := NewConfigFromModel(mc)
		assert.Error(t, err)
	})

	t.Run("filter type only checked when enabled", func(t *testing.T) {
		mc := base()
		mc.Processing.FilterType = "comb"
		_, err := NewConfigFromModel(mc)
		assert.NoError(t, err)

		mc.Processing.FilterEnabled = true
		_, err = NewConfigFromModel(mc)
		assert.Error(t, err)
	})

	t.Run("storage checked only when enabled", func(t *testing.T) {
		mc := base()
		mc.Storage.Enabled = true
		mc.Storage.DBType = "sqlite"
		_, err := NewConfigFromModel(mc)
		assert.Error(t, err) // sqlite without a path

		mc.Storage.DBPath = "test.db"
		_, err = NewConfigFromModel(mc)
		assert.NoError(t, err)
	})
}

// -----------------------------------------------------------------------------

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeTempConfig(t, validYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	reloaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.MConfig, reloaded.MConfig)
}
