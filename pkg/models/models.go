package models

import (
	"time"

	"github.com/google/uuid"
)

// NumSegments is the fixed number of segments a waveform is split into.
const NumSegments = 10

// Waveform is decoded mono audio at its native sample rate.
type Waveform struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
}

// Duration returns the clip length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Placeholder labels. They carry no information from the audio.
const (
	SpeakerAgent    = "Agent"
	SpeakerCustomer = "Customer"

	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

var (
	Speakers   = []string{SpeakerAgent, SpeakerCustomer}
	Sentiments = []string{SentimentPositive, SentimentNeutral, SentimentNegative}
)

// Columns is the header of the result table, in display and export order.
var Columns = []string{
	"Speaker",
	"Segment Duration",
	"RMS Energy",
	"Zero Crossing Rate",
	"Spectral Centroid",
	"Spectral Bandwidth",
	"Sentiment Analysis",
}

// FeatureRow holds the features of one segment.
//
// SegmentDuration is taken from an evenly spaced sequence between 0.5 and the
// clip duration. It is not the elapsed time of the segment.
type FeatureRow struct {
	Speaker           string  `json:"speaker" yaml:"speaker"`
	SegmentDuration   float64 `json:"segment_duration" yaml:"segment_duration"`
	RMSEnergy         float64 `json:"rms_energy" yaml:"rms_energy"`
	ZeroCrossingRate  float64 `json:"zero_crossing_rate" yaml:"zero_crossing_rate"`
	SpectralCentroid  float64 `json:"spectral_centroid" yaml:"spectral_centroid"`
	SpectralBandwidth float64 `json:"spectral_bandwidth" yaml:"spectral_bandwidth"`
	Sentiment         string  `json:"sentiment_analysis" yaml:"sentiment_analysis"`
}

// Values returns the row cells ordered like Columns.
func (r FeatureRow) Values() []any {
	return []any{
		r.Speaker,
		r.SegmentDuration,
		r.RMSEnergy,
		r.ZeroCrossingRate,
		r.SpectralCentroid,
		r.SpectralBandwidth,
		r.Sentiment,
	}
}

// ResultTable is the ordered set of rows, one per segment.
type ResultTable struct {
	Rows          []FeatureRow `json:"rows" yaml:"rows"`
	SampleRate    int          `json:"sample_rate" yaml:"sample_rate"`
	TotalDuration float64      `json:"total_duration" yaml:"total_duration"`
	SegmentLength int          `json:"segment_length" yaml:"segment_length"`
}

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusValidating ProcessingStatus = "validating"
	StatusDecoding   ProcessingStatus = "decoding"
	StatusExtracting ProcessingStatus = "extracting"
	StatusStoring    ProcessingStatus = "storing"
	StatusExporting  ProcessingStatus = "exporting"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Upload is a file received from a client, before any processing.
type Upload struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type,omitempty"`
	Data        []byte    `json:"-"`
	Timestamp   time.Time `json:"timestamp"`
	Size        int       `json:"size"`
}

// Analysis is the processing record of one upload.
type Analysis struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	Timestamp   time.Time        `json:"timestamp"`
	Size        int              `json:"size"`
	Checksum    string           `json:"checksum"`
	Duration    float64          `json:"duration,omitempty"`
	SampleRate  int              `json:"sample_rate,omitempty"`
	Table       *ResultTable     `json:"table,omitempty"`
	ExportPath  string           `json:"export_path,omitempty"`
	ProcessedAt time.Time        `json:"processed_at"`
	Status      ProcessingStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
}

// PipelineMessage travels through the pipeline stages.
type PipelineMessage struct {
	Upload   *Upload
	Analysis *Analysis
	Waveform *Waveform
	Error    error
	Stage    string
}

func NewUpload(filename, contentType string, data []byte) *Upload {
	return &Upload{
		ID:          uuid.New().String(),
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		Timestamp:   time.Now(),
		Size:        len(data),
	}
}

func NewAnalysis(upload *Upload) *Analysis {
	return &Analysis{
		ID:        upload.ID,
		Filename:  upload.Filename,
		Timestamp: upload.Timestamp,
		Size:      upload.Size,
		Status:    StatusPending,
	}
}
