// Package audio decodes uploaded WAV and MP3 files into mono waveforms at
// their native sample rate.
package audio

import (
	"bytes"
	"path/filepath"
	"strings"

	"audio-analyzer/pkg/models"
)

// SupportedExtensions lists the file extensions accepted by DecodeFile.
var SupportedExtensions = []string{".wav", ".mp3"}

// Detect sniffs the container format from the leading bytes.
func Detect(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Decode turns raw WAV or MP3 bytes into a mono waveform.
func Decode(data []byte) (*models.Waveform, error) {
	if len(data) == 0 {
		return nil, newDecodeError(FormatUnknown, ErrCodeEmptyAudio, "no audio data", nil)
	}

	var (
		w   *models.Waveform
		err error
	)
	format := Detect(data)
	switch format {
	case FormatWAV:
		w, err = decodeWAV(data)
	case FormatMP3:
		w, err = decodeMP3(data)
	default:
		return nil, newDecodeError(format, ErrCodeUnsupportedFormat, "input is not a WAV or MP3 stream", nil)
	}
	if err != nil {
		return nil, err
	}

	if len(w.Samples) == 0 {
		return nil, newDecodeError(format, ErrCodeEmptyAudio, "stream contains no samples", nil)
	}
	return w, nil
}

// DecodeFile checks the file extension before decoding. An empty name skips
// the extension check.
func DecodeFile(name string, data []byte) (*models.Waveform, error) {
	if name != "" && !IsSupportedFile(name) {
		return nil, newDecodeError(FormatUnknown, ErrCodeUnsupportedFormat,
			"unsupported file extension "+filepath.Ext(name), nil)
	}
	return Decode(data)
}

// IsSupportedFile reports whether name has a .wav or .mp3 extension.
func IsSupportedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// downmix averages interleaved frames into a single channel.
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
