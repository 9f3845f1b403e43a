package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"

	"audio-analyzer/pkg/models"
)

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

func decodeWAV(data []byte) (*models.Waveform, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, newDecodeError(FormatWAV, ErrCodeInvalidFormat, "invalid wav header", d.Err())
	}
	switch d.WavAudioFormat {
	case wavFormatPCM, wavFormatExtensible:
		return decodeIntWAV(d)
	case wavFormatIEEEFloat:
		return decodeFloatWAV(d)
	default:
		return nil, newDecodeError(FormatWAV, ErrCodeUnsupportedEncoding,
			fmt.Sprintf("wav audio format %d is not supported", d.WavAudioFormat), nil)
	}
}

func decodeIntWAV(d *wav.Decoder) (*models.Waveform, error) {
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, newDecodeError(FormatWAV, ErrCodeDecoding, "failed to read PCM data", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, newDecodeError(FormatWAV, ErrCodeInvalidFormat, "missing channel count or sample rate", nil)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(d.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, newDecodeError(FormatWAV, ErrCodeUnsupportedEncoding,
			fmt.Sprintf("unsupported bit depth %d", bitDepth), nil)
	}

	interleaved := make([]float64, len(buf.Data))
	scale := float64(int64(1) << (bitDepth - 1))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		interleaved[i] = float64(v) / scale
	}

	return &models.Waveform{
		Samples:    downmix(interleaved, buf.Format.NumChannels),
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// decodeFloatWAV reads 32 or 64-bit IEEE float samples straight from the
// data chunk; go-audio only converts integer PCM.
func decodeFloatWAV(d *wav.Decoder) (*models.Waveform, error) {
	width := int(d.BitDepth) / 8
	if d.BitDepth != 32 && d.BitDepth != 64 {
		return nil, newDecodeError(FormatWAV, ErrCodeUnsupportedEncoding,
			fmt.Sprintf("unsupported float bit depth %d", d.BitDepth), nil)
	}
	channels, sampleRate := int(d.NumChans), int(d.SampleRate)
	if channels <= 0 || sampleRate <= 0 {
		return nil, newDecodeError(FormatWAV, ErrCodeInvalidFormat, "missing channel count or sample rate", nil)
	}

	if err := d.FwdToPCM(); err != nil {
		return nil, newDecodeError(FormatWAV, ErrCodeDecoding, "failed to locate PCM data", err)
	}
	if d.PCMChunk == nil {
		return nil, newDecodeError(FormatWAV, ErrCodeDecoding, "failed to locate PCM data", d.Err())
	}

	raw := make([]byte, d.PCMChunk.Size)
	n, err := io.ReadFull(d.PCMChunk, raw)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, newDecodeError(FormatWAV, ErrCodeDecoding, "failed to read PCM data", err)
	}
	// a truncated data chunk keeps its whole frames
	frame := width * channels
	raw = raw[:n-n%frame]

	interleaved := make([]float64, len(raw)/width)
	for i := range interleaved {
		b := raw[i*width : (i+1)*width]
		if width == 4 {
			interleaved[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		} else {
			interleaved[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	}

	return &models.Waveform{
		Samples:    downmix(interleaved, channels),
		SampleRate: sampleRate,
	}, nil
}
