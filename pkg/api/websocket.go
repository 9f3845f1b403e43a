package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"audio-analyzer/pkg/audio"
	"audio-analyzer/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocket message types
const (
	MessageAnalyze          = "analyze"
	MessagePing             = "ping"
	MessagePong             = "pong"
	MessageError            = "error"
	MessageAnalysisReceived = "analysis_received"
	MessageAnalysisComplete = "analysis_complete"
	MessageAnalysisFailed   = "analysis_failed"
)

// WebSocketMessage is both the request and the response envelope. Data is
// base64 in JSON.
type WebSocketMessage struct {
	Type       string           `json:"type"`
	Filename   string           `json:"filename,omitempty"`
	Data       []byte           `json:"data,omitempty"`
	AnalysisID string           `json:"analysis_id,omitempty"`
	Status     string           `json:"status,omitempty"`
	Analysis   *models.Analysis `json:"analysis,omitempty"`
	Code       string           `json:"code,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg WebSocketMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	if h.maxUploadBytes > 0 {
		// base64 grows payloads by a third
		conn.SetReadLimit(h.maxUploadBytes*4/3 + formOverheadBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws := &wsConn{conn: conn}
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WithError(err).Debug("WebSocket read ended")
			}
			// stop in-flight analyses before waiting for them
			cancel()
			return
		}

		switch msg.Type {
		case MessageAnalyze:
			upload := models.NewUpload(msg.Filename, "", msg.Data)
			h.logger.WithFields(logrus.Fields{
				"analysis_id": upload.ID,
				"filename":    upload.Filename,
				"size":        upload.Size,
			}).Info("WebSocket upload received")

			h.reply(ws, WebSocketMessage{
				Type:       MessageAnalysisReceived,
				AnalysisID: upload.ID,
				Status:     string(models.StatusPending),
			})

			inflight.Add(1)
			go func() {
				defer inflight.Done()
				h.handleAnalyze(ctx, ws, upload)
			}()
		case MessagePing:
			h.reply(ws, WebSocketMessage{Type: MessagePong})
		default:
			h.reply(ws, WebSocketMessage{
				Type:  MessageError,
				Error: "Unknown message type",
			})
		}
	}
}

func (h *Handlers) handleAnalyze(ctx context.Context, ws *wsConn, upload *models.Upload) {
	analysis, err := h.pipeline.Analyze(ctx, upload)
	if err != nil {
		msg := WebSocketMessage{
			Type:       MessageAnalysisFailed,
			AnalysisID: upload.ID,
			Status:     string(models.StatusFailed),
			Error:      err.Error(),
		}
		var decodeErr *audio.DecodeError
		if errors.As(err, &decodeErr) {
			msg.Code = decodeErr.Code
		}
		h.reply(ws, msg)
		return
	}

	h.reply(ws, WebSocketMessage{
		Type:       MessageAnalysisComplete,
		AnalysisID: analysis.ID,
		Status:     string(analysis.Status),
		Analysis:   analysis,
	})
}

func (h *Handlers) reply(ws *wsConn, msg WebSocketMessage) {
	if err := ws.send(msg); err != nil {
		h.logger.WithError(err).WithField("type", msg.Type).Debug("WebSocket write failed")
	}
}
