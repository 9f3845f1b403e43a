package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"audio-analyzer/pkg/audio"
	"audio-analyzer/pkg/export"
	"audio-analyzer/pkg/features"
	"audio-analyzer/pkg/logging"
	"audio-analyzer/pkg/models"
	"audio-analyzer/pkg/pipeline"
	"audio-analyzer/pkg/storage"
)

const (
	defaultListLimit = 50
	maxMemoryBytes   = 32 << 20
	// multipart framing allowance on top of the upload limit
	formOverheadBytes = 1 << 20
)

// Analyzer is the part of the pipeline the handlers depend on.
type Analyzer interface {
	Analyze(ctx context.Context, upload *models.Upload) (*models.Analysis, error)
	Lookup(id string) (*models.Analysis, error)
	List(limit int) ([]*models.Analysis, error)
	OpenExport(ctx context.Context, analysis *models.Analysis) (io.ReadCloser, error)
}

// Options configure the handlers. Logo holds raw image bytes and may be empty.
type Options struct {
	Brand          string
	Logo           []byte
	MaxUploadBytes int64
	Logger         *logrus.Logger
}

type Handlers struct {
	pipeline       Analyzer
	brand          string
	logo           template.URL
	maxUploadBytes int64
	logger         *logrus.Entry
}

func NewHandlers(analyzer Analyzer, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handlers{
		pipeline:       analyzer,
		brand:          opts.Brand,
		logo:           dataURL(opts.Logo),
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logging.Component(logger, "api"),
	}
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", h.IndexHandler).Methods(http.MethodGet)
	router.HandleFunc("/analyze", h.AnalyzeHandler).Methods(http.MethodPost)
	router.HandleFunc("/analyses", h.ListAnalysesHandler).Methods(http.MethodGet)
	router.HandleFunc("/analyses/{id}", h.GetAnalysisHandler).Methods(http.MethodGet)
	router.HandleFunc("/analyses/{id}/export.xlsx", h.ExportHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws", h.WebSocketHandler)
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	return router
}

func (h *Handlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, h.newPage())
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func (h *Handlers) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	asJSON := wantsJSON(r)

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverheadBytes)
	}
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.respondError(w, asJSON, status, fmt.Errorf("failed to parse form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		h.respondError(w, asJSON, http.StatusBadRequest, errors.New("audio file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.respondError(w, asJSON, http.StatusInternalServerError, fmt.Errorf("failed to read audio file: %w", err))
		return
	}

	upload := models.NewUpload(header.Filename, header.Header.Get("Content-Type"), data)
	h.logger.WithFields(logrus.Fields{
		"analysis_id": upload.ID,
		"filename":    upload.Filename,
		"size":        upload.Size,
	}).Info("Upload received")

	analysis, err := h.pipeline.Analyze(r.Context(), upload)
	if err != nil {
		h.respondError(w, asJSON, statusFor(err), err)
		return
	}

	if asJSON {
		writeJSON(w, http.StatusOK, analysis)
		return
	}
	page := h.newPage()
	page.Analysis = analysis
	page.Audio = dataURL(data)
	h.renderPage(w, http.StatusOK, page)
}

func (h *Handlers) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	analyses, err := h.pipeline.List(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list analyses")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

func (h *Handlers) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	analysis, ok := h.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *Handlers) ExportHandler(w http.ResponseWriter, r *http.Request) {
	analysis, ok := h.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if analysis.Status != models.StatusCompleted || analysis.Table == nil {
		http.Error(w, "analysis has no results to export", http.StatusConflict)
		return
	}

	rc, err := h.pipeline.OpenExport(r.Context(), analysis)
	if err != nil {
		h.logger.WithError(err).WithField("analysis_id", analysis.ID).Error("Failed to open export")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.DownloadName)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WithError(err).WithField("analysis_id", analysis.ID).Warn("Export download interrupted")
	}
}

func (h *Handlers) lookup(w http.ResponseWriter, id string) (*models.Analysis, bool) {
	analysis, err := h.pipeline.Lookup(id)
	if err != nil {
		if errors.Is(err, storage.ErrAnalysisNotFound) {
			http.Error(w, "analysis not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.WithError(err).WithField("analysis_id", id).Error("Failed to load analysis")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return analysis, true
}

func (h *Handlers) respondError(w http.ResponseWriter, asJSON bool, status int, err error) {
	entry := h.logger.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	if asJSON {
		body := map[string]any{"error": err.Error()}
		var decodeErr *audio.DecodeError
		if errors.As(err, &decodeErr) {
			body["code"] = decodeErr.Code
		}
		writeJSON(w, status, body)
		return
	}
	page := h.newPage()
	page.Error = err.Error()
	h.renderPage(w, status, page)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		decodeErr    *audio.DecodeError
		insufficient *features.InsufficientDataError
		validation   pipeline.ValidationError
	)
	switch {
	case errors.As(err, &decodeErr), errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
