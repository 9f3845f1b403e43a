package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"audio-analyzer/pkg/export"
	"audio-analyzer/pkg/models"
	"audio-analyzer/pkg/storage"
)

func (m *Manager) validateUpload(_ context.Context, msg *models.PipelineMessage) error {
	if len(msg.Upload.Data) == 0 {
		return ValidationError("empty audio data")
	}

	if m.maxUploadBytes > 0 && int64(len(msg.Upload.Data)) > m.maxUploadBytes {
		return ValidationError(fmt.Sprintf("audio file too large: %d bytes exceeds limit of %d", len(msg.Upload.Data), m.maxUploadBytes))
	}

	hasher := sha256.New()
	hasher.Write(msg.Upload.Data)
	msg.Analysis.Checksum = fmt.Sprintf("%x", hasher.Sum(nil))
	return nil
}

func (m *Manager) decodeAudio(_ context.Context, msg *models.PipelineMessage) error {
	w, err := m.decode(msg.Upload.Filename, msg.Upload.Data)
	if err != nil {
		return err
	}

	msg.Waveform = w
	msg.Analysis.Duration = w.Duration()
	msg.Analysis.SampleRate = w.SampleRate
	return nil
}

func (m *Manager) extractFeatures(_ context.Context, msg *models.PipelineMessage) error {
	table, err := m.extractor.Extract(msg.Waveform)
	if err != nil {
		return err
	}

	msg.Analysis.Table = table
	// the samples are not needed past this point
	msg.Waveform = nil
	return nil
}

func (m *Manager) exportTable(ctx context.Context, msg *models.PipelineMessage) error {
	if m.files == nil {
		return nil
	}

	name := export.FileName(msg.Analysis.ID)
	w, err := m.files.Write(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to open export %s: %w", name, err)
	}
	if err := export.WriteXLSX(w, msg.Analysis.Table); err != nil {
		if abortErr := storage.Abort(w, err); abortErr != nil {
			m.logger.WithError(abortErr).WithField("export", name).Warn("Failed to discard partial export")
		}
		return fmt.Errorf("failed to write export %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to save export %s: %w", name, err)
	}

	msg.Analysis.ExportPath = m.files.Location(name)
	return nil
}

func (m *Manager) storeAnalysis(_ context.Context, msg *models.PipelineMessage) error {
	msg.Analysis.Status = models.StatusCompleted
	msg.Analysis.ProcessedAt = time.Now()

	if err := m.memStore.StoreAnalysis(msg.Analysis); err != nil {
		return fmt.Errorf("failed to store in memory: %w", err)
	}

	if m.diskStore != nil {
		if err := m.diskStore.StoreAnalysis(msg.Analysis); err != nil {
			return fmt.Errorf("failed to store on disk: %w", err)
		}
	}
	return nil
}
