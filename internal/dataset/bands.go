package dataset

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Band is a named frequency range in Hz.
type Band struct {
	Name string
	Low  float64
	High float64
}

// Bands lists the canonical EEG rhythms in order.
var Bands = []Band{
	{Name: "Delta", Low: 0, High: 4},
	{Name: "Theta", Low: 4, High: 8},
	{Name: "Alpha", Low: 8, High: 12},
	{Name: "Beta", Low: 12, High: 40},
}

// LookupBand returns the canonical band called name.
func LookupBand(name string) (Band, bool) {
	for _, b := range Bands {
		if b.Name == name {
			return b, true
		}
	}
	return Band{}, false
}

// SplitByFrequencyBand returns one band-pass filtered copy of ep per
// canonical band, keyed by band name.
func SplitByFrequencyBand(ep *Epochs) map[string]*Epochs {
	out := make(map[string]*Epochs, len(Bands))
	var fft *fourier.FFT
	if n := ep.Samples(); n > 0 {
		fft = fourier.NewFFT(n)
	}
	for _, b := range Bands {
		filtered := ep.Copy()
		if fft == nil {
			out[b.Name] = filtered
			continue
		}
		for _, w := range filtered.Data {
			for c := range w {
				w[c] = bandPass(fft, w[c], ep.SFreq, b.Low, b.High)
			}
		}
		out[b.Name] = filtered
	}
	return out
}

// BandPass returns signal with every frequency component outside [low, high]
// Hz removed. The filter has zero phase.
func BandPass(signal []float64, sfreq, low, high float64) []float64 {
	if len(signal) == 0 {
		return nil
	}
	return bandPass(fourier.NewFFT(len(signal)), signal, sfreq, low, high)
}

func bandPass(fft *fourier.FFT, signal []float64, sfreq, low, high float64) []float64 {
	coeff := fft.Coefficients(nil, signal)
	for i := range coeff {
		f := fft.Freq(i) * sfreq
		if f < low || f > high {
			coeff[i] = 0
		}
	}
	out := fft.Sequence(nil, coeff)
	floats.Scale(1/float64(len(signal)), out)
	return out
}
