package audio

import "fmt"

// Format identifies an audio container.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatUnknown Format = "unknown"
)

// Decode error codes
const (
	ErrCodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	ErrCodeUnsupportedEncoding = "UNSUPPORTED_ENCODING"
	ErrCodeInvalidFormat       = "INVALID_FORMAT"
	ErrCodeDecoding            = "DECODING_FAILED"
	ErrCodeEmptyAudio          = "EMPTY_AUDIO"
)

// DecodeError reports input bytes that cannot be turned into a waveform.
type DecodeError struct {
	Format  Format `json:"format"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s: %s", e.Format, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func newDecodeError(format Format, code, message string, cause error) *DecodeError {
	return &DecodeError{
		Format:  format,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
