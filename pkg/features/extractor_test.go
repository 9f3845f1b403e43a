package features_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-analyzer/pkg/audio/audiotest"
	"audio-analyzer/pkg/features"
	"audio-analyzer/pkg/models"
)

func noise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

func numericColumns(t *models.ResultTable) [][]float64 {
	cols := make([][]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		cols = append(cols, []float64{r.SegmentDuration, r.RMSEnergy, r.ZeroCrossingRate, r.SpectralCentroid, r.SpectralBandwidth})
	}
	return cols
}

func TestExtractTenSecondClip(t *testing.T) {
	w := &models.Waveform{Samples: audiotest.Sine(440, 16000, 160000, 0.5), SampleRate: 16000}
	ex := features.NewExtractor(features.DefaultConfig())

	table, err := ex.Extract(w)
	require.NoError(t, err)

	require.Len(t, table.Rows, 10)
	assert.Equal(t, 16000, table.SegmentLength)
	assert.Equal(t, 16000, table.SampleRate)
	assert.InDelta(t, 10.0, table.TotalDuration, 1e-9)

	assert.InDelta(t, 0.5, table.Rows[0].SegmentDuration, 1e-9)
	assert.InDelta(t, 1.5556, table.Rows[1].SegmentDuration, 1e-3)
	assert.InDelta(t, 2.6111, table.Rows[2].SegmentDuration, 1e-3)
	assert.Equal(t, 10.0, table.Rows[9].SegmentDuration)

	for i, row := range table.Rows {
		assert.Contains(t, models.Speakers, row.Speaker, "row %d", i)
		assert.Contains(t, models.Sentiments, row.Sentiment, "row %d", i)
		if i > 0 {
			assert.Greater(t, row.SegmentDuration, table.Rows[i-1].SegmentDuration)
		}
	}
}

func TestExtractShortClipDurationsDescend(t *testing.T) {
	// 0.3 s is shorter than the 0.5 s the sequence starts at
	w := &models.Waveform{Samples: noise(4800, 3), SampleRate: 16000}

	table, err := features.NewExtractor(features.DefaultConfig()).Extract(w)
	require.NoError(t, err)

	require.Len(t, table.Rows, 10)
	assert.InDelta(t, 0.3, table.TotalDuration, 1e-9)
	assert.InDelta(t, 0.5, table.Rows[0].SegmentDuration, 1e-9)
	assert.InDelta(t, 0.47778, table.Rows[1].SegmentDuration, 1e-4)
	assert.InDelta(t, 0.3, table.Rows[9].SegmentDuration, 1e-9)
	for i := 1; i < len(table.Rows); i++ {
		assert.Less(t, table.Rows[i].SegmentDuration, table.Rows[i-1].SegmentDuration, "row %d", i)
	}
}

func TestExtractSineFeatures(t *testing.T) {
	const sr = 16000
	w := &models.Waveform{Samples: audiotest.Sine(1000, sr, 160000, 0.5), SampleRate: sr}

	table, err := features.NewExtractor(features.DefaultConfig()).Extract(w)
	require.NoError(t, err)

	for i, row := range table.Rows {
		assert.InDelta(t, 0.3536, row.RMSEnergy, 0.02, "rms row %d", i)
		assert.InDelta(t, 0.125, row.ZeroCrossingRate, 0.02, "zcr row %d", i)
		assert.InDelta(t, 1000, row.SpectralCentroid, 100, "centroid row %d", i)
		assert.Less(t, row.SpectralBandwidth, 1000.0, "bandwidth row %d", i)
	}
}

func TestExtractBounds(t *testing.T) {
	const sr = 22050
	w := &models.Waveform{Samples: noise(3*sr+7, 42), SampleRate: sr}

	table, err := features.NewExtractor(features.DefaultConfig()).Extract(w)
	require.NoError(t, err)
	require.Len(t, table.Rows, 10)

	nyquist := float64(sr) / 2
	for i, row := range table.Rows {
		assert.GreaterOrEqual(t, row.RMSEnergy, 0.0, "row %d", i)
		assert.GreaterOrEqual(t, row.ZeroCrossingRate, 0.0, "row %d", i)
		assert.LessOrEqual(t, row.ZeroCrossingRate, 1.0, "row %d", i)
		assert.GreaterOrEqual(t, row.SpectralCentroid, 0.0, "row %d", i)
		assert.LessOrEqual(t, row.SpectralCentroid, nyquist, "row %d", i)
		assert.GreaterOrEqual(t, row.SpectralBandwidth, 0.0, "row %d", i)
		assert.LessOrEqual(t, row.SpectralBandwidth, nyquist, "row %d", i)
	}
}

func TestExtractDeterministicNumericColumns(t *testing.T) {
	w := &models.Waveform{Samples: noise(48000, 7), SampleRate: 48000}
	ex := features.NewExtractor(features.DefaultConfig())

	first, err := ex.Extract(w)
	require.NoError(t, err)
	second, err := ex.Extract(w)
	require.NoError(t, err)

	assert.Equal(t, numericColumns(first), numericColumns(second))
}

func TestExtractIgnoresTrailingSamples(t *testing.T) {
	base := noise(10*4096, 3)
	withTail := append(append([]float64{}, base...), 1, 1, 1, 1, 1, 1, 1, 1, 1)

	ex := features.NewExtractor(features.DefaultConfig(), features.WithLabeler(features.FixedLabeler{Speaker: "Agent", Sentiment: "Neutral"}))

	a, err := ex.Extract(&models.Waveform{Samples: base, SampleRate: 8000})
	require.NoError(t, err)
	b, err := ex.Extract(&models.Waveform{Samples: withTail, SampleRate: 8000})
	require.NoError(t, err)

	assert.Equal(t, a.SegmentLength, b.SegmentLength)
	for i := range a.Rows {
		assert.Equal(t, a.Rows[i].RMSEnergy, b.Rows[i].RMSEnergy)
		assert.Equal(t, a.Rows[i].ZeroCrossingRate, b.Rows[i].ZeroCrossingRate)
		assert.Equal(t, a.Rows[i].SpectralCentroid, b.Rows[i].SpectralCentroid)
		assert.Equal(t, a.Rows[i].SpectralBandwidth, b.Rows[i].SpectralBandwidth)
	}
}

func TestExtractSilence(t *testing.T) {
	w := &models.Waveform{Samples: audiotest.Silence(8000), SampleRate: 8000}

	table, err := features.NewExtractor(features.DefaultConfig()).Extract(w)
	require.NoError(t, err)

	for _, row := range table.Rows {
		assert.Zero(t, row.RMSEnergy)
		assert.Zero(t, row.ZeroCrossingRate)
		assert.Zero(t, row.SpectralCentroid)
		assert.Zero(t, row.SpectralBandwidth)
	}
}

func TestExtractMinimumSamples(t *testing.T) {
	w := &models.Waveform{Samples: noise(10, 1), SampleRate: 16000}

	table, err := features.NewExtractor(features.DefaultConfig()).Extract(w)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 10)
	assert.Equal(t, 1, table.SegmentLength)
}

func TestExtractInsufficientData(t *testing.T) {
	ex := features.NewExtractor(features.DefaultConfig())

	_, err := ex.Extract(&models.Waveform{Samples: noise(5, 1), SampleRate: 16000})
	var insufficient *features.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 5, insufficient.Samples)
	assert.Equal(t, 10, insufficient.Required)

	_, err = ex.Extract(&models.Waveform{Samples: noise(100, 1), SampleRate: 0})
	require.True(t, errors.As(err, &insufficient))

	_, err = ex.Extract(nil)
	require.True(t, errors.As(err, &insufficient))
}

func TestSegments(t *testing.T) {
	samples := make([]float64, 105)
	for i := range samples {
		samples[i] = float64(i)
	}

	segments, length, err := features.Segments(samples)
	require.NoError(t, err)

	assert.Equal(t, 10, length)
	require.Len(t, segments, 10)
	for i, seg := range segments {
		require.Len(t, seg, 10)
		assert.Equal(t, float64(i*10), seg[0])
	}
	assert.Equal(t, 99.0, segments[9][9])
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, features.Linspace(0, 1, 5))
	assert.Equal(t, []float64{2}, features.Linspace(2, 3, 1))
	assert.Nil(t, features.Linspace(0, 1, 0))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, features.DefaultConfig().Validate())
	assert.Error(t, features.Config{FrameLength: 1, HopLength: 1}.Validate())
	assert.Error(t, features.Config{FrameLength: 1024, HopLength: 0}.Validate())
	assert.Error(t, features.Config{FrameLength: 1024, HopLength: 2048}.Validate())
}

func TestLabelers(t *testing.T) {
	seen := map[string]bool{}
	l := features.NewSeededLabeler(1)
	for i := 0; i < 500; i++ {
		speaker, sentiment := l.Label(i, nil)
		seen[speaker] = true
		seen[sentiment] = true
	}
	for _, v := range append(append([]string{}, models.Speakers...), models.Sentiments...) {
		assert.True(t, seen[v], "label %q never drawn", v)
	}

	a := features.NewSeededLabeler(9)
	b := features.NewSeededLabeler(9)
	for i := 0; i < 20; i++ {
		s1, m1 := a.Label(i, nil)
		s2, m2 := b.Label(i, nil)
		assert.Equal(t, s1, s2)
		assert.Equal(t, m1, m2)
	}

	speaker, sentiment := features.NewRandomLabeler().Label(0, nil)
	assert.Contains(t, models.Speakers, speaker)
	assert.Contains(t, models.Sentiments, sentiment)
}
