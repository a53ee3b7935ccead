package http

import (
	"log/slog"
	"net/http"

	"assessment-monitor-service/internal/app"
	"github.com/gorilla/websocket"
)

// MonitorHandler streams live stats to an instructor dashboard. The monitor lives as long as
// at least one dashboard socket for the assessment is connected.
type MonitorHandler struct {
	monitors *app.MonitorService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewMonitorHandler(monitors *app.MonitorService, logger *slog.Logger) *MonitorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitorHandler{monitors: monitors, logger: logger, upgrader: newUpgrader()}
}

func (h *MonitorHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	assessmentID, ok := queryID(r, "assessmentId")
	if !ok {
		http.Error(w, "missing or invalid assessmentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if _, err := h.monitors.Open(r.Context(), assessmentID); err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer h.monitors.Close(assessmentID)

	updates, cancel, err := h.monitors.Subscribe(r.Context(), assessmentID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	// the reader only detects disconnects; dashboards send nothing
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case stats, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "stats", Payload: stats}); err != nil {
				h.logger.Warn("ws write error", "assessment_id", assessmentID, "error", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}
