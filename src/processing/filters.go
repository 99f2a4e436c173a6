package processing

import (
	"fmt"
	"math"
	"strings"

	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// Digital Butterworth filters for real-time signal conditioning. Filters are
// designed as cascaded second-order sections and applied causally, one pass,
// per channel.
//
// Supported: low_pass, high_pass, band_pass (high then low cascade),
// band_stop (cascaded notch sections), notch_50hz, notch_60hz.
// -----------------------------------------------------------------------------

const minFilterSamples = 10

// FilterSettings selects and parameterizes one filter.
type FilterSettings struct {
	Type    string
	Cutoff1 float64 // Hz; low cutoff for band filters
	Cutoff2 float64 // Hz; high cutoff for band filters
	Order   int
}

// -----------------------------------------------------------------------------

// FilterFromConfig builds settings from the processing configuration.
func FilterFromConfig(cfg models.MProcessingConfig) FilterSettings {
	return FilterSettings{
		Type:    strings.ToLower(cfg.FilterType),
		Cutoff1: cfg.FilterCutoff1,
		Cutoff2: cfg.FilterCutoff2,
		Order:   cfg.FilterOrder,
	}
}

// -----------------------------------------------------------------------------

// biquad is one second-order IIR section in direct form II transposed.
type biquad struct {
	b0, b1, b2, a1, a2 float64
}

func (s *biquad) process(dst, src []float64) {
	var z1, z2 float64
	for i, x := range src {
		y := s.b0*x + z1
		z1 = s.b1*x - s.a1*y + z2
		z2 = s.b2*x - s.a2*y
		dst[i] = y
	}
}

// -----------------------------------------------------------------------------
// Section design (bilinear transform, Butterworth Q ladder)
// -----------------------------------------------------------------------------

// butterworthQs returns the Q value of each cascaded section for the given
// even order.
func butterworthQs(order int) []float64 {
	n := order / 2
	qs := make([]float64, n)
	for k := 0; k < n; k++ {
		qs[k] = 1.0 / (2.0 * math.Cos(math.Pi*float64(2*k+1)/float64(2*order)))
	}
	return qs
}

func lowPassSection(fc, fs, q float64) biquad {
	w0 := 2 * math.Pi * fc / fs
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)
	a0 := 1 + alpha

	return biquad{
		b0: (1 - cosW0) / 2 / a0,
		b1: (1 - cosW0) / a0,
		b2: (1 - cosW0) / 2 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func highPassSection(fc, fs, q float64) biquad {
	w0 := 2 * math.Pi * fc / fs
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)
	a0 := 1 + alpha

	return biquad{
		b0: (1 + cosW0) / 2 / a0,
		b1: -(1 + cosW0) / a0,
		b2: (1 + cosW0) / 2 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func notchSection(f0, fs, q float64) biquad {
	w0 := 2 * math.Pi * f0 / fs
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)
	a0 := 1 + alpha

	return biquad{
		b0: 1 / a0,
		b1: -2 * cosW0 / a0,
		b2: 1 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

// -----------------------------------------------------------------------------

// validate checks the settings against the sampling rate.
func (f FilterSettings) validate(fs float64, nSamples int) error {
	if nSamples < minFilterSamples {
		return fmt.Errorf("need at least %d samples for filtering, got %d", minFilterSamples, nSamples)
	}
	if fs <= 0 {
		return fmt.Errorf("invalid sampling rate %f", fs)
	}

	nyquist := fs / 2.0
	checkCutoff := func(fc float64, name string) error {
		if fc <= 0 {
			return fmt.Errorf("%s frequency must be positive", name)
		}
		if fc >= nyquist {
			return fmt.Errorf("%s frequency (%.1f Hz) must be less than Nyquist frequency (%.1f Hz)", name, fc, nyquist)
		}
		return nil
	}

	switch f.Type {
	case "low_pass", "high_pass":
		return checkCutoff(f.Cutoff1, "cutoff")
	case "band_pass", "band_stop":
		if err := checkCutoff(f.Cutoff1, "low cutoff"); err != nil {
			return err
		}
		if err := checkCutoff(f.Cutoff2, "high cutoff"); err != nil {
			return err
		}
		if f.Cutoff1 >= f.Cutoff2 {
			return fmt.Errorf("low cutoff (%.1f Hz) must be below high cutoff (%.1f Hz)", f.Cutoff1, f.Cutoff2)
		}
		return nil
	case "notch_50hz":
		return checkCutoff(50, "notch")
	case "notch_60hz":
		return checkCutoff(60, "notch")
	default:
		return fmt.Errorf("unknown filter type '%s'", f.Type)
	}
}

// -----------------------------------------------------------------------------

// sections builds the cascade for the settings. Odd orders are rounded up to
// the next even order.
func (f FilterSettings) sections(fs float64) []biquad {
	order := f.Order
	if order < 2 {
		order = 2
	}
	if order%2 != 0 {
		order++
	}
	qs := butterworthQs(order)

	var cascade []biquad
	switch f.Type {
	case "low_pass":
		for _, q := range qs {
			cascade = append(cascade, lowPassSection(f.Cutoff1, fs, q))
		}
	case "high_pass":
		for _, q := range qs {
			cascade = append(cascade, highPassSection(f.Cutoff1, fs, q))
		}
	case "band_pass":
		for _, q := range qs {
			cascade = append(cascade, highPassSection(f.Cutoff1, fs, q))
			cascade = append(cascade, lowPassSection(f.Cutoff2, fs, q))
		}
	case "band_stop":
		center := math.Sqrt(f.Cutoff1 * f.Cutoff2)
		q := center / (f.Cutoff2 - f.Cutoff1)
		for i := 0; i < order/2; i++ {
			cascade = append(cascade, notchSection(center, fs, q))
		}
	case "notch_50hz":
		for i := 0; i < order/2; i++ {
			cascade = append(cascade, notchSection(50, fs, 25))
		}
	case "notch_60hz":
		for i := 0; i < order/2; i++ {
			cascade = append(cascade, notchSection(60, fs, 30))
		}
	}
	return cascade
}

// -----------------------------------------------------------------------------

// Apply filters one channel of data at the given sampling rate and returns
// the filtered signal. The input slice is not modified.
func (f FilterSettings) Apply(data []float64, fs float64) ([]float64, error) {
	if err := f.validate(fs, len(data)); err != nil {
		return nil, err
	}

	out := make([]float64, len(data))
	copy(out, data)
	for _, sec := range f.sections(fs) {
		sec.process(out, out)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// SampleRateFromTimestamps derives the sampling frequency in Hz from a
// millisecond timestamp array (mean time step).
func SampleRateFromTimestamps(t []float64) float64 {
	if len(t) < 2 {
		return 0
	}
	dtMs := (t[len(t)-1] - t[0]) / float64(len(t)-1)
	if dtMs <= 0 {
		return 0
	}
	return 1000.0 / dtMs
}
