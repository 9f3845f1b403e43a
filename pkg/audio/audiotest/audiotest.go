// Package audiotest builds synthetic audio fixtures for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sine returns n samples of a sine wave in [-amplitude, amplitude].
func Sine(freq float64, sampleRate, n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Silence returns n zero samples.
func Silence(n int) []float64 {
	return make([]float64, n)
}

// EncodeWAV encodes interleaved samples in [-1, 1] as 16-bit PCM WAV.
func EncodeWAV(samples []float64, sampleRate, channels int) ([]byte, error) {
	f, err := os.CreateTemp("", "audiotest_*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, s)) * 32767))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}
	return os.ReadFile(f.Name())
}

// EncodeFloatWAV encodes interleaved samples as IEEE float WAV with 32 or
// 64-bit samples.
func EncodeFloatWAV(samples []float64, sampleRate, channels, bitDepth int) ([]byte, error) {
	if bitDepth != 32 && bitDepth != 64 {
		return nil, fmt.Errorf("unsupported float bit depth %d", bitDepth)
	}
	payload := make([]byte, 0, len(samples)*bitDepth/8)
	for _, s := range samples {
		if bitDepth == 32 {
			payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(float32(s)))
		} else {
			payload = binary.LittleEndian.AppendUint64(payload, math.Float64bits(s))
		}
	}
	return RawWAV(3, bitDepth, sampleRate, channels, payload), nil
}

// RawWAV wraps payload in a RIFF header declaring the given format tag.
func RawWAV(format, bitDepth, sampleRate, channels int, payload []byte) []byte {
	blockAlign := channels * bitDepth / 8
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+8+16+8+len(payload)))
	buf.WriteString("WAVEfmt ")
	for _, v := range []any{
		uint32(16),
		uint16(format),
		uint16(channels),
		uint32(sampleRate),
		uint32(sampleRate * blockAlign),
		uint16(blockAlign),
		uint16(bitDepth),
	} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// MustWAV is EncodeWAV for tests.
func MustWAV(tb testing.TB, samples []float64, sampleRate, channels int) []byte {
	tb.Helper()
	data, err := EncodeWAV(samples, sampleRate, channels)
	if err != nil {
		tb.Fatalf("encode wav: %v", err)
	}
	return data
}
