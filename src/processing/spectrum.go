package processing

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"daq-observer/src/buffer"
	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// Windowed power spectrum. The window function is applied to exactly the most
// recent fft_length samples; with fewer samples available the request is
// deferred (ErrNotReady) rather than zero-padded silently.
// -----------------------------------------------------------------------------

// ErrNotReady is returned when fewer than fft_length samples are available.
var ErrNotReady = errors.New("not enough samples for spectrum")

const powerFloor = 1e-12 // avoids log(0) in the dB conversion

type SpectrumAnalyzer struct {
	fftLen  int
	winType string
	maxFreq float64 // Hz cap on the reported band, 0 = Nyquist

	fft     *fourier.FFT
	win     []float64
	winSum2 float64

	coeffs []complex128 // reused across cycles; single-goroutine use only
}

// -----------------------------------------------------------------------------

// NewSpectrumAnalyzer precomputes the FFT plan and window coefficients.
func NewSpectrumAnalyzer(fftLen int, winType string, maxFreqHz float64) (*SpectrumAnalyzer, error) {
	if fftLen <= 0 || fftLen&(fftLen-1) != 0 {
		return nil, fmt.Errorf("fft length must be a positive power of two, got %d", fftLen)
	}

	win := make([]float64, fftLen)
	for i := range win {
		win[i] = 1.0
	}

	switch strings.ToLower(winType) {
	case "hann", "hanning":
		window.Hann(win)
	case "hamming":
		window.Hamming(win)
	case "blackman":
		window.Blackman(win)
	case "rectangular", "":
		// coefficients stay 1
	default:
		return nil, fmt.Errorf("unknown window type '%s'", winType)
	}

	winSum2 := 0.0
	for _, w := range win {
		winSum2 += w * w
	}

	return &SpectrumAnalyzer{
		fftLen:  fftLen,
		winType: strings.ToLower(winType),
		maxFreq: maxFreqHz,
		fft:     fourier.NewFFT(fftLen),
		win:     win,
		winSum2: winSum2,
		coeffs:  make([]complex128, fftLen/2+1),
	}, nil
}

// -----------------------------------------------------------------------------

// FFTLength returns the configured transform length.
func (sa *SpectrumAnalyzer) FFTLength() int {
	return sa.fftLen
}

// -----------------------------------------------------------------------------

// Compute returns the power spectrum in dB over the most recent fft_length
// samples of data. Scratch memory comes from the pool.
func (sa *SpectrumAnalyzer) Compute(channel int, data []float64, rateHz float64, pool *buffer.BlockPool) (*models.MSpectrum, error) {
	if len(data) < sa.fftLen {
		return nil, ErrNotReady
	}
	if rateHz <= 0 {
		return nil, fmt.Errorf("invalid sample rate %f", rateHz)
	}

	scratch := pool.Acquire(sa.fftLen)
	defer pool.Release(scratch)

	sig := scratch.Data[:sa.fftLen]
	copy(sig, data[len(data)-sa.fftLen:])
	for i := range sig {
		sig[i] *= sa.win[i]
	}

	sa.coeffs = sa.fft.Coefficients(sa.coeffs, sig)

	nyquist := rateHz / 2.0
	maxFreq := sa.maxFreq
	if maxFreq <= 0 || maxFreq > nyquist {
		maxFreq = nyquist
	}

	binWidth := rateHz / float64(sa.fftLen)
	bins := int(maxFreq/binWidth) + 1
	if bins > len(sa.coeffs) {
		bins = len(sa.coeffs)
	}

	spec := &models.MSpectrum{
		Channel:     channel,
		Frequencies: make([]float64, bins),
		PowerDB:     make([]float64, bins),
		FFTLength:   sa.fftLen,
		WindowType:  sa.winType,
	}

	norm := rateHz * sa.winSum2
	for i := 0; i < bins; i++ {
		spec.Frequencies[i] = float64(i) * binWidth
		mag := cmplx.Abs(sa.coeffs[i])
		power := mag * mag / norm
		spec.PowerDB[i] = 10 * math.Log10(power+powerFloor)
	}

	return spec, nil
}
