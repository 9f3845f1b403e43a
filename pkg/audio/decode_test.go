package audio_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-analyzer/pkg/audio"
	"audio-analyzer/pkg/audio/audiotest"
	"audio-analyzer/pkg/features"
)

func TestDetect(t *testing.T) {
	wavData := audiotest.MustWAV(t, audiotest.Silence(16), 8000, 1)

	assert.Equal(t, audio.FormatWAV, audio.Detect(wavData))
	assert.Equal(t, audio.FormatMP3, audio.Detect([]byte("ID3\x04\x00\x00")))
	assert.Equal(t, audio.FormatMP3, audio.Detect([]byte{0xFF, 0xFB, 0x90, 0x00}))
	assert.Equal(t, audio.FormatUnknown, audio.Detect([]byte("hello, world")))
	assert.Equal(t, audio.FormatUnknown, audio.Detect(nil))
}

func TestDecodeWAVMono(t *testing.T) {
	samples := audiotest.Sine(440, 16000, 16000, 0.5)
	data := audiotest.MustWAV(t, samples, 16000, 1)

	w, err := audio.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 16000, w.SampleRate)
	require.Len(t, w.Samples, len(samples))
	assert.InDelta(t, 1.0, w.Duration(), 1e-9)
	for i := 0; i < len(samples); i += 997 {
		assert.InDelta(t, samples[i], w.Samples[i], 1e-4, "sample %d", i)
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	// left = 0.5, right = -0.25 -> mono 0.125
	interleaved := make([]float64, 2*100)
	for i := 0; i < 100; i++ {
		interleaved[2*i] = 0.5
		interleaved[2*i+1] = -0.25
	}
	data := audiotest.MustWAV(t, interleaved, 22050, 2)

	w, err := audio.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 22050, w.SampleRate)
	require.Len(t, w.Samples, 100)
	for _, s := range w.Samples {
		assert.InDelta(t, 0.125, s, 1e-4)
	}
}

func TestDecodeFloatWAV(t *testing.T) {
	samples := audiotest.Sine(220, 16000, 8000, 0.75)

	for _, bitDepth := range []int{32, 64} {
		data, err := audiotest.EncodeFloatWAV(samples, 16000, 1, bitDepth)
		require.NoError(t, err)

		w, err := audio.Decode(data)
		require.NoError(t, err, "bit depth %d", bitDepth)

		assert.Equal(t, 16000, w.SampleRate)
		require.Len(t, w.Samples, len(samples))
		for i := 0; i < len(samples); i += 499 {
			assert.InDelta(t, samples[i], w.Samples[i], 1e-6, "bit depth %d sample %d", bitDepth, i)
		}
	}
}

func TestDecodeFloatWAVStereoDownmix(t *testing.T) {
	interleaved := make([]float64, 2*50)
	for i := 0; i < 50; i++ {
		interleaved[2*i] = 0.5
		interleaved[2*i+1] = -0.25
	}
	data, err := audiotest.EncodeFloatWAV(interleaved, 8000, 2, 32)
	require.NoError(t, err)

	w, err := audio.Decode(data)
	require.NoError(t, err)

	require.Len(t, w.Samples, 50)
	for _, s := range w.Samples {
		assert.InDelta(t, 0.125, s, 1e-7)
	}
}

func TestDecodeWAVUnsupportedEncoding(t *testing.T) {
	tests := []struct {
		name     string
		format   int
		bitDepth int
	}{
		{"a-law", 6, 8},
		{"float24", 3, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, 8000*tt.bitDepth/8)
			data := audiotest.RawWAV(tt.format, tt.bitDepth, 8000, 1, payload)

			_, err := audio.Decode(data)

			var decErr *audio.DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, audio.FormatWAV, decErr.Format)
			assert.Equal(t, audio.ErrCodeUnsupportedEncoding, decErr.Code)
		})
	}
}

func TestDecodeMP3(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "sine.mp3"))
	require.NoError(t, err)
	require.Equal(t, audio.FormatMP3, audio.Detect(data))

	w, err := audio.DecodeFile("sine.mp3", data)
	require.NoError(t, err)

	assert.Equal(t, 44100, w.SampleRate)
	assert.Greater(t, len(w.Samples), 20000)
	for _, s := range w.Samples {
		require.LessOrEqual(t, s, 1.0)
		require.GreaterOrEqual(t, s, -1.0)
	}

	table, err := features.NewExtractor(features.DefaultConfig()).Extract(w)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 10)
	assert.Equal(t, 44100, table.SampleRate)
}

func TestDecodeCorruptMP3Fails(t *testing.T) {
	// ID3v2 header with an empty tag, then no MPEG frames at all
	data := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte("not an mpeg frame "), 64)...)
	require.Equal(t, audio.FormatMP3, audio.Detect(data))

	_, err := audio.Decode(data)

	var decErr *audio.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, audio.FormatMP3, decErr.Format)
	assert.Equal(t, audio.ErrCodeInvalidFormat, decErr.Code)
}

func TestDecodeTextFails(t *testing.T) {
	_, err := audio.Decode([]byte("this is a plain text file, not audio\n"))
	require.Error(t, err)

	var decErr *audio.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, audio.ErrCodeUnsupportedFormat, decErr.Code)
}

func TestDecodeEmptyFails(t *testing.T) {
	_, err := audio.Decode(nil)

	var decErr *audio.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, audio.ErrCodeEmptyAudio, decErr.Code)
}

func TestDecodeTruncatedWAVFails(t *testing.T) {
	data := audiotest.MustWAV(t, audiotest.Silence(64), 8000, 1)

	_, err := audio.Decode(data[:12])

	var decErr *audio.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, audio.FormatWAV, decErr.Format)
}

func TestDecodeFileExtension(t *testing.T) {
	data := audiotest.MustWAV(t, audiotest.Silence(32), 8000, 1)

	_, err := audio.DecodeFile("clip.WAV", data)
	assert.NoError(t, err)

	_, err = audio.DecodeFile("notes.txt", data)
	var decErr *audio.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, audio.ErrCodeUnsupportedFormat, decErr.Code)

	_, err = audio.DecodeFile("", data)
	assert.NoError(t, err)
}

func TestIsSupportedFile(t *testing.T) {
	assert.True(t, audio.IsSupportedFile("a.wav"))
	assert.True(t, audio.IsSupportedFile("b.MP3"))
	assert.False(t, audio.IsSupportedFile("c.flac"))
	assert.False(t, audio.IsSupportedFile("wav"))
}
