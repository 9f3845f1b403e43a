package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"audio-analyzer/pkg/config"
	"audio-analyzer/pkg/export"
	"audio-analyzer/pkg/features"
	"audio-analyzer/pkg/logging"
	"audio-analyzer/pkg/models"
	"audio-analyzer/pkg/storage"
)

var (
	ErrQueueFull    = errors.New("pipeline queue is full")
	ErrShuttingDown = errors.New("pipeline is shutting down")
)

// ValidationError reports an upload rejected before decoding.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

// DecodeFunc turns an uploaded file into a waveform.
type DecodeFunc func(filename string, data []byte) (*models.Waveform, error)

type job struct {
	ctx  context.Context
	msg  *models.PipelineMessage
	done chan struct{}
}

type stage struct {
	name   string
	status models.ProcessingStatus
	run    func(context.Context, *models.PipelineMessage) error
}

// Manager runs uploads through decode, extraction, export and storage on a
// bounded worker pool. Each upload is processed start to finish by a single
// worker.
type Manager struct {
	config         config.PipelineConfig
	maxUploadBytes int64

	decode    DecodeFunc
	extractor *features.Extractor
	memStore  storage.MemoryStore
	diskStore storage.DiskStore
	files     storage.FileStore
	logger    *logrus.Entry

	stages []stage
	pool   *WorkerPool

	mu      sync.RWMutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Deps are the collaborators of a Manager. DiskStore and Files may be nil.
type Deps struct {
	Decode    DecodeFunc
	Extractor *features.Extractor
	MemStore  storage.MemoryStore
	DiskStore storage.DiskStore
	Files     storage.FileStore
	Logger    *logrus.Logger
}

func NewManager(cfg config.PipelineConfig, maxUploadBytes int64, deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		config:         cfg,
		maxUploadBytes: maxUploadBytes,
		decode:         deps.Decode,
		extractor:      deps.Extractor,
		memStore:       deps.MemStore,
		diskStore:      deps.DiskStore,
		files:          deps.Files,
		logger:         logging.Component(logger, "pipeline"),
	}
	m.stages = []stage{
		{"validation", models.StatusValidating, m.validateUpload},
		{"decoding", models.StatusDecoding, m.decodeAudio},
		{"extraction", models.StatusExtracting, m.extractFeatures},
		{"export", models.StatusExporting, m.exportTable},
		{"storage", models.StatusStoring, m.storeAnalysis},
	}
	return m
}

func (m *Manager) Start(ctx context.Context) error {
	if m.decode == nil || m.extractor == nil || m.memStore == nil {
		return errors.New("pipeline: decoder, extractor and memory store are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		return errors.New("pipeline: already started")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.pool = NewWorkerPool(m.config.Workers, m.config.QueueSize, m.process)
	m.pool.Start(m.ctx)

	m.logger.WithFields(logrus.Fields{
		"workers":    m.config.Workers,
		"queue_size": m.config.QueueSize,
	}).Info("Pipeline started")
	return nil
}

func (m *Manager) Stop() {
	m.mu.Lock()
	if m.pool == nil || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.cancel()
	m.mu.Unlock()

	m.pool.Stop()
	m.logger.Info("Pipeline stopped")
}

// Analyze processes the upload and waits for the result. The analysis can be
// looked up from the moment it is queued, with its status following the
// stages. On failure the returned error is the one raised by the failing
// stage and the analysis is recorded with StatusFailed.
func (m *Manager) Analyze(ctx context.Context, upload *models.Upload) (*models.Analysis, error) {
	msg := &models.PipelineMessage{
		Upload:   upload,
		Analysis: models.NewAnalysis(upload),
		Stage:    "ingestion",
	}
	j := &job{ctx: ctx, msg: msg, done: make(chan struct{})}

	if err := m.submit(j); err != nil {
		m.logger.WithFields(logrus.Fields{
			"analysis_id": upload.ID,
			"filename":    upload.Filename,
		}).WithError(err).Warn("Upload rejected")
		return nil, err
	}

	select {
	case <-j.done:
		return msg.Analysis, msg.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.ctx.Done():
		return nil, ErrShuttingDown
	}
}

func (m *Manager) submit(j *job) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pool == nil || m.stopped {
		return ErrShuttingDown
	}
	// recorded before queueing so a worker never updates a missing record
	if err := m.memStore.StoreAnalysis(j.msg.Analysis); err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	if !m.pool.TrySubmit(j) {
		if err := m.memStore.DeleteAnalysis(j.msg.Analysis.ID); err != nil {
			m.logger.WithError(err).WithField("analysis_id", j.msg.Analysis.ID).Warn("Failed to drop rejected analysis")
		}
		return ErrQueueFull
	}
	return nil
}

// Lookup returns a recorded analysis from memory, falling back to disk.
func (m *Manager) Lookup(id string) (*models.Analysis, error) {
	analysis, err := m.memStore.GetAnalysis(id)
	if err == nil || !errors.Is(err, storage.ErrAnalysisNotFound) || m.diskStore == nil {
		return analysis, err
	}
	return m.diskStore.GetAnalysis(id)
}

// List returns recorded analyses, newest first.
func (m *Manager) List(limit int) ([]*models.Analysis, error) {
	if m.diskStore != nil {
		return m.diskStore.ListAnalyses(limit)
	}
	return m.memStore.ListAnalyses(limit)
}

// OpenExport opens the stored spreadsheet of a completed analysis. When no
// stored file exists it is rebuilt from the table.
func (m *Manager) OpenExport(ctx context.Context, analysis *models.Analysis) (io.ReadCloser, error) {
	if analysis.Table == nil {
		return nil, fmt.Errorf("analysis %s has no result table", analysis.ID)
	}

	if m.files != nil && analysis.ExportPath != "" {
		rc, err := m.files.Read(ctx, export.FileName(analysis.ID))
		if err == nil {
			return rc, nil
		}
		m.logger.WithField("analysis_id", analysis.ID).WithError(err).Warn("Stored export unavailable, rebuilding")
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(export.WriteXLSX(pw, analysis.Table))
	}()
	return pr, nil
}

func (m *Manager) process(_ context.Context, j *job) {
	defer close(j.done)

	msg := j.msg
	logger := m.logger.WithFields(logrus.Fields{
		"analysis_id": msg.Upload.ID,
		"filename":    msg.Upload.Filename,
		"size":        msg.Upload.Size,
	})

	ctx := j.ctx
	if m.config.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ProcessingTimeout)
		defer cancel()
	}

	start := time.Now()
	logger.Info("Processing started")

	for _, st := range m.stages {
		if err := ctx.Err(); err != nil {
			m.fail(msg, st.name, err)
			logger.WithError(err).WithField("stage", st.name).Warn("Processing cancelled")
			return
		}

		msg.Analysis.Status = st.status
		if err := m.memStore.UpdateStatus(msg.Analysis.ID, st.status); err != nil {
			logger.WithError(err).WithField("stage", st.name).Warn("Failed to update status")
		}
		if err := st.run(ctx, msg); err != nil {
			m.fail(msg, st.name, err)
			logger.WithError(err).WithField("stage", st.name).Warn("Processing failed")
			return
		}
		msg.Stage = st.name
	}

	logger.WithFields(logrus.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"export":      msg.Analysis.ExportPath,
	}).Info("Processing completed")
}

// fail records the failed analysis so it can still be looked up.
func (m *Manager) fail(msg *models.PipelineMessage, stageName string, err error) {
	msg.Error = err
	msg.Stage = stageName
	msg.Analysis.Status = models.StatusFailed
	msg.Analysis.Error = err.Error()
	msg.Analysis.Table = nil
	msg.Analysis.ProcessedAt = time.Now()

	if serr := m.memStore.StoreAnalysis(msg.Analysis); serr != nil {
		m.logger.WithError(serr).Error("Failed to record failed analysis in memory")
	}
	if m.diskStore != nil {
		if serr := m.diskStore.StoreAnalysis(msg.Analysis); serr != nil {
			m.logger.WithError(serr).Error("Failed to record failed analysis on disk")
		}
	}
}
