package features

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// silenceThreshold is the magnitude below which a value counts as zero.
const silenceThreshold = 1e-10

// SpectralAnalyzer computes short-time features over a signal using fixed
// framing parameters.
type SpectralAnalyzer struct {
	sampleRate  int
	frameLength int
	hopLength   int
	window      []float64
	freqs       []float64
}

// NewSpectralAnalyzer creates an analyzer with a periodic Hann window of
// frameLength samples.
func NewSpectralAnalyzer(sampleRate, frameLength, hopLength int) *SpectralAnalyzer {
	// A periodic window of length L is the symmetric window of length L+1
	// without its last point.
	hann := window.Hann(frameLength + 1)[:frameLength]

	bins := frameLength/2 + 1
	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * float64(sampleRate) / float64(frameLength)
	}

	return &SpectralAnalyzer{
		sampleRate:  sampleRate,
		frameLength: frameLength,
		hopLength:   hopLength,
		window:      hann,
		freqs:       freqs,
	}
}

// FrequencyBins returns the centre frequency of every STFT bin, from 0 to
// the Nyquist frequency.
func (sa *SpectralAnalyzer) FrequencyBins() []float64 {
	return sa.freqs
}

// RMS returns the root-mean-square amplitude of every centred frame.
func (sa *SpectralAnalyzer) RMS(signal []float64) []float64 {
	frames := frameSignal(padConstant(signal, sa.frameLength/2), sa.frameLength, sa.hopLength)
	out := make([]float64, len(frames))
	for i, frame := range frames {
		sum := 0.0
		for _, s := range frame {
			sum += s * s
		}
		out[i] = math.Sqrt(sum / float64(len(frame)))
	}
	return out
}

// ZeroCrossingRate returns the fraction of sign changes in every centred
// frame. The signal is edge padded and zero counts as positive.
func (sa *SpectralAnalyzer) ZeroCrossingRate(signal []float64) []float64 {
	frames := frameSignal(padEdge(signal, sa.frameLength/2), sa.frameLength, sa.hopLength)
	out := make([]float64, len(frames))
	for i, frame := range frames {
		crossings := 0
		for j := 1; j < len(frame); j++ {
			if isNegative(frame[j-1]) != isNegative(frame[j]) {
				crossings++
			}
		}
		out[i] = float64(crossings) / float64(len(frame))
	}
	return out
}

// Magnitude computes the magnitude STFT of the signal, one row per frame
// holding frameLength/2+1 bins.
func (sa *SpectralAnalyzer) Magnitude(signal []float64) [][]float64 {
	frames := frameSignal(padConstant(signal, sa.frameLength/2), sa.frameLength, sa.hopLength)
	bins := len(sa.freqs)
	windowed := make([]float64, sa.frameLength)

	out := make([][]float64, len(frames))
	for t, frame := range frames {
		for i, s := range frame {
			windowed[i] = s * sa.window[i]
		}
		spectrum := fft.FFTReal(windowed)

		mag := make([]float64, bins)
		for f := 0; f < bins; f++ {
			mag[f] = cmplx.Abs(spectrum[f])
		}
		out[t] = mag
	}
	return out
}

// SpectralCentroid returns the magnitude-weighted mean frequency of a
// spectrum frame, or 0 for a silent frame.
func (sa *SpectralAnalyzer) SpectralCentroid(magnitude []float64) float64 {
	total := sum(magnitude)
	if total < silenceThreshold {
		return 0
	}

	weighted := 0.0
	for i, m := range magnitude {
		weighted += sa.freqs[i] * m
	}
	return weighted / total
}

// SpectralBandwidth returns the spread of a spectrum frame around its
// centroid (second order), or 0 for a silent frame.
func (sa *SpectralAnalyzer) SpectralBandwidth(magnitude []float64, centroid float64) float64 {
	total := sum(magnitude)
	if total < silenceThreshold {
		return 0
	}

	variance := 0.0
	for i, m := range magnitude {
		diff := sa.freqs[i] - centroid
		variance += (m / total) * diff * diff
	}
	return math.Sqrt(variance)
}

func isNegative(x float64) bool {
	return x < -silenceThreshold
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// frameSignal slices x into frames of frameLength samples spaced hopLength
// apart. Frames share memory with x.
func frameSignal(x []float64, frameLength, hopLength int) [][]float64 {
	if len(x) < frameLength {
		return nil
	}
	count := 1 + (len(x)-frameLength)/hopLength
	frames := make([][]float64, count)
	for i := range frames {
		start := i * hopLength
		frames[i] = x[start : start+frameLength]
	}
	return frames
}

func padConstant(x []float64, pad int) []float64 {
	out := make([]float64, len(x)+2*pad)
	copy(out[pad:], x)
	return out
}

func padEdge(x []float64, pad int) []float64 {
	out := padConstant(x, pad)
	if len(x) == 0 {
		return out
	}
	first, last := x[0], x[len(x)-1]
	for i := 0; i < pad; i++ {
		out[i] = first
		out[len(out)-1-i] = last
	}
	return out
}
