// Package features splits a waveform into fixed segments and computes
// short-time signal features for each one.
package features

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"audio-analyzer/pkg/models"
)

// Default short-time analysis parameters.
const (
	DefaultFrameLength = 2048
	DefaultHopLength   = 512

	// durationStart is the first value of the synthetic duration column.
	durationStart = 0.5
)

// InsufficientDataError reports a waveform too small to form the segments.
type InsufficientDataError struct {
	Samples  int
	Required int
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return "insufficient audio data: " + e.Reason
	}
	return fmt.Sprintf("insufficient audio data: got %d samples, need at least %d", e.Samples, e.Required)
}

// Config controls the short-time analysis windows.
type Config struct {
	FrameLength int
	HopLength   int
}

func DefaultConfig() Config {
	return Config{
		FrameLength: DefaultFrameLength,
		HopLength:   DefaultHopLength,
	}
}

func (c Config) Validate() error {
	if c.FrameLength < 2 {
		return fmt.Errorf("frame length must be at least 2, got %d", c.FrameLength)
	}
	if c.HopLength <= 0 || c.HopLength > c.FrameLength {
		return fmt.Errorf("hop length must be in [1, %d], got %d", c.FrameLength, c.HopLength)
	}
	return nil
}

// Extractor builds the per-segment feature table of a waveform.
type Extractor struct {
	config  Config
	labeler Labeler
	logger  *logrus.Entry
}

type Option func(*Extractor)

// WithLabeler replaces the default random labeler.
func WithLabeler(l Labeler) Option {
	return func(e *Extractor) {
		e.labeler = l
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor returns an extractor. An invalid config falls back to the
// defaults; callers that load config from users should Validate it first.
func NewExtractor(cfg Config, opts ...Option) *Extractor {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	e := &Extractor{
		config:  cfg,
		labeler: NewRandomLabeler(),
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithField("component", "feature_extractor")
	return e
}

// Extract splits the waveform into models.NumSegments segments and returns
// one row per segment, in order.
func (e *Extractor) Extract(w *models.Waveform) (*models.ResultTable, error) {
	if w == nil {
		return nil, &InsufficientDataError{Required: models.NumSegments, Reason: "no waveform"}
	}
	if w.SampleRate <= 0 {
		return nil, &InsufficientDataError{
			Samples:  len(w.Samples),
			Required: models.NumSegments,
			Reason:   fmt.Sprintf("invalid sample rate %d", w.SampleRate),
		}
	}

	segments, segmentLength, err := Segments(w.Samples)
	if err != nil {
		return nil, err
	}
	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	totalDuration := w.Duration()
	durations := Linspace(durationStart, totalDuration, models.NumSegments)
	analyzer := NewSpectralAnalyzer(w.SampleRate, e.config.FrameLength, e.config.HopLength)

	logger := e.logger.WithFields(logrus.Fields{
		"samples":        len(w.Samples),
		"sample_rate":    w.SampleRate,
		"segment_length": segmentLength,
		"dropped":        len(w.Samples) - segmentLength*models.NumSegments,
	})
	logger.Debug("Extracting segment features")

	rows := make([]models.FeatureRow, len(segments))
	for i, segment := range segments {
		row := analyzeSegment(analyzer, segment)
		row.SegmentDuration = durations[i]
		row.Speaker, row.Sentiment = e.labeler.Label(i, segment)
		rows[i] = row
	}

	logger.WithField("total_duration", totalDuration).Debug("Segment features extracted")

	return &models.ResultTable{
		Rows:          rows,
		SampleRate:    w.SampleRate,
		TotalDuration: totalDuration,
		SegmentLength: segmentLength,
	}, nil
}

func analyzeSegment(sa *SpectralAnalyzer, segment []float64) models.FeatureRow {
	spectra := sa.Magnitude(segment)
	centroids := make([]float64, len(spectra))
	bandwidths := make([]float64, len(spectra))
	for t, mag := range spectra {
		centroids[t] = sa.SpectralCentroid(mag)
		bandwidths[t] = sa.SpectralBandwidth(mag, centroids[t])
	}

	return models.FeatureRow{
		RMSEnergy:         mean(sa.RMS(segment)),
		ZeroCrossingRate:  mean(sa.ZeroCrossingRate(segment)),
		SpectralCentroid:  mean(centroids),
		SpectralBandwidth: mean(bandwidths),
	}
}

// Segments partitions samples into models.NumSegments contiguous slices of
// floor(len/NumSegments) samples. Samples past NumSegments*length are not
// part of any segment.
func Segments(samples []float64) ([][]float64, int, error) {
	if len(samples) < models.NumSegments {
		return nil, 0, &InsufficientDataError{
			Samples:  len(samples),
			Required: models.NumSegments,
		}
	}

	length := len(samples) / models.NumSegments
	segments := make([][]float64, models.NumSegments)
	for i := range segments {
		segments[i] = samples[i*length : (i+1)*length]
	}
	return segments, length, nil
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
