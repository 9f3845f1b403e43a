package audio

import (
	"bytes"
	"io"

	"github.com/gopxl/beep/mp3"

	"audio-analyzer/pkg/models"
)

const mp3ChunkFrames = 4096

func decodeMP3(data []byte) (*models.Waveform, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, newDecodeError(FormatMP3, ErrCodeInvalidFormat, "invalid mp3 stream", err)
	}
	defer streamer.Close()

	if format.SampleRate <= 0 {
		return nil, newDecodeError(FormatMP3, ErrCodeInvalidFormat, "missing sample rate", nil)
	}

	// beep always yields stereo frames; mono sources carry the same value on both sides.
	samples := make([]float64, 0, max(streamer.Len(), 0))
	buf := make([][2]float64, mp3ChunkFrames)
	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			if format.NumChannels == 1 {
				samples = append(samples, buf[i][0])
			} else {
				samples = append(samples, (buf[i][0]+buf[i][1])/2)
			}
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, newDecodeError(FormatMP3, ErrCodeDecoding, "failed to decode mp3 frames", err)
	}

	return &models.Waveform{
		Samples:    samples,
		SampleRate: int(format.SampleRate),
	}, nil
}
