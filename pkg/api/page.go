package api

import (
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"
	"strings"

	"audio-analyzer/pkg/audio"
	"audio-analyzer/pkg/export"
	"audio-analyzer/pkg/models"
)

//go:embed templates/*
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type pageData struct {
	Brand        string
	Logo         template.URL
	Accept       string
	Columns      []string
	DownloadName string

	Analysis *models.Analysis
	Audio    template.URL
	Error    string
}

func (h *Handlers) newPage() *pageData {
	return &pageData{
		Brand:        h.brand,
		Logo:         h.logo,
		Accept:       strings.Join(audio.SupportedExtensions, ","),
		Columns:      models.Columns,
		DownloadName: export.DownloadName,
	}
}

func (h *Handlers) renderPage(w http.ResponseWriter, status int, page *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTmpl.Execute(w, page); err != nil {
		h.logger.WithError(err).Error("Failed to render page")
	}
}

// dataURL inlines content for use in src attributes.
func dataURL(data []byte) template.URL {
	if len(data) == 0 {
		return ""
	}
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "application/octet-stream") && audio.Detect(data) == audio.FormatMP3 {
		mime = "audio/mpeg"
	}
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
}
