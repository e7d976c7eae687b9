package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/manager"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const progressPushInterval = 2 * time.Second

// ProgressHandler serves GET /api/v1/crawls/{id}/ws, a read-only progress
// stream, grounded on the teacher's WebSocketHandler upgrade pattern
// (internal/handlers/websocket.go) but with one connection per crawl
// instead of a broadcast fan-out.
type ProgressHandler struct {
	service *manager.Service
	logger  arbor.ILogger
}

// NewProgressHandler builds a ProgressHandler over service.
func NewProgressHandler(service *manager.Service, logger arbor.ILogger) *ProgressHandler {
	return &ProgressHandler{service: service, logger: logger}
}

// Stream upgrades the connection and pushes the full progress object every
// progressPushInterval until the crawl reaches a terminal status or the
// client disconnects.
func (h *ProgressHandler) Stream(w http.ResponseWriter, r *http.Request, crawlID string) {
	if _, err := h.service.GetProgress(r.Context(), crawlID); err != nil {
		if errors.Is(err, common.ErrCrawlNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(progressPushInterval)
	defer ticker.Stop()

	for {
		progress, err := h.service.GetProgress(r.Context(), crawlID)
		if err != nil {
			h.logger.Warn().Err(err).Str("crawl_id", crawlID).Msg("progress lookup failed mid-stream")
			return
		}

		if err := conn.WriteJSON(progress); err != nil {
			return
		}

		if progress.Status == "completed" || progress.Status == "cancelled" {
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
