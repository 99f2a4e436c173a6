package processing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-observer/src/buffer"
)

// -----------------------------------------------------------------------------

func sineSignal(n int, freqHz, rateHz, amplitude float64) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/rateHz)
	}
	return data
}

// -----------------------------------------------------------------------------

func TestNewSpectrumAnalyzer(t *testing.T) {
	t.Run("rejects non power of two lengths", func(t *testing.T) {
		_, err := NewSpectrumAnalyzer(1000, "hann", 0)
		assert.Error(t, err)
		_, err = NewSpectrumAnalyzer(0, "hann", 0)
		assert.Error(t, err)
	})

	t.Run("rejects unknown windows", func(t *testing.T) {
		_, err := NewSpectrumAnalyzer(1024, "kaiser", 0)
		assert.Error(t, err)
	})

	t.Run("accepts supported windows", func(t *testing.T) {
		for _, w := range []string{"hann", "hamming", "blackman", "rectangular"} {
			_, err := NewSpectrumAnalyzer(1024, w, 0)
			assert.NoError(t, err, w)
		}
	})
}

// -----------------------------------------------------------------------------

func TestSpectrumCompute(t *testing.T) {
	pool := buffer.NewBlockPool(8, 16)

	t.Run("defers until a full window is available", func(t *testing.T) {
		sa, err := NewSpectrumAnalyzer(1024, "hann", 0)
		require.NoError(t, err)

		_, err = sa.Compute(0, sineSignal(1023, 100, 10000, 1), 10000, pool)
		assert.ErrorIs(t, err, ErrNotReady)
	})

	t.Run("peak lands on the signal frequency", func(t *testing.T) {
		const rate = 10000.0
		sa, err := NewSpectrumAnalyzer(1024, "hann", 0)
		require.NoError(t, err)

		// Bin-centered tone: bin 100 is 100*rate/1024 Hz
		freq := 100 * rate / 1024
		spec, err := sa.Compute(0, sineSignal(4096, freq, rate, 1), rate, pool)
		require.NoError(t, err)

		peak := 0
		for i := range spec.PowerDB {
			if spec.PowerDB[i] > spec.PowerDB[peak] {
				peak = i
			}
		}
		assert.InDelta(t, freq, spec.Frequencies[peak], rate/1024)
	})

	t.Run("frequency axis is capped at max frequency", func(t *testing.T) {
		sa, err := NewSpectrumAnalyzer(1024, "hann", 1000)
		require.NoError(t, err)

		spec, err := sa.Compute(0, sineSignal(1024, 100, 10000, 1), 10000, pool)
		require.NoError(t, err)

		last := spec.Frequencies[len(spec.Frequencies)-1]
		assert.LessOrEqual(t, last, 1000.0)
		assert.Less(t, len(spec.Frequencies), 513)
	})

	t.Run("cap beyond Nyquist falls back to Nyquist", func(t *testing.T) {
		sa, err := NewSpectrumAnalyzer(256, "hann", 1e9)
		require.NoError(t, err)

		spec, err := sa.Compute(0, sineSignal(256, 100, 10000, 1), 10000, pool)
		require.NoError(t, err)
		assert.Equal(t, 129, len(spec.Frequencies))
	})

	t.Run("silence sits on the power floor", func(t *testing.T) {
		sa, err := NewSpectrumAnalyzer(256, "rectangular", 0)
		require.NoError(t, err)

		spec, err := sa.Compute(0, make([]float64, 256), 1000, pool)
		require.NoError(t, err)
		for _, p := range spec.PowerDB {
			assert.InDelta(t, -120.0, p, 1e-6)
		}
	})

	t.Run("metadata is carried through", func(t *testing.T) {
		sa, err := NewSpectrumAnalyzer(512, "hamming", 0)
		require.NoError(t, err)

		spec, err := sa.Compute(2, sineSignal(512, 60, 2000, 1), 2000, pool)
		require.NoError(t, err)
		assert.Equal(t, 2, spec.Channel)
		assert.Equal(t, 512, spec.FFTLength)
		assert.Equal(t, "hamming", spec.WindowType)
	})
}
