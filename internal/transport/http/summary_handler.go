package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"assessment-monitor-service/internal/app"
	"assessment-monitor-service/internal/domain"
)

// SummaryHandler exposes attempt statistics and live snapshots as JSON.
type SummaryHandler struct {
	summaries *app.SummaryService
	monitors  *app.MonitorService
	logger    *slog.Logger
}

type summaryResponse struct {
	HasData bool                     `json:"hasData"`
	Summary domain.AssessmentSummary `json:"summary"`
}

func NewSummaryHandler(summaries *app.SummaryService, monitors *app.MonitorService, logger *slog.Logger) *SummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryHandler{summaries: summaries, monitors: monitors, logger: logger}
}

// Register mounts the handler's routes on mux.
func (h *SummaryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /assessments/{id}/summary", h.assessmentSummary)
	mux.HandleFunc("GET /courses/{id}/summary", h.courseSummary)
	mux.HandleFunc("GET /assessments/{id}/students/{studentId}/attempts", h.studentAttempts)
	mux.HandleFunc("GET /assessments/{id}/live", h.liveStats)
}

func (h *SummaryHandler) assessmentSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summary, hasData, err := h.summaries.AssessmentSummary(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{HasData: hasData, Summary: summary})
}

func (h *SummaryHandler) courseSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summary, hasData, err := h.summaries.CourseSummary(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{HasData: hasData, Summary: summary})
}

func (h *SummaryHandler) studentAttempts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(w, r, "studentId")
	if !ok {
		return
	}
	attempts, err := h.summaries.StudentAttempts(r.Context(), id, studentID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *SummaryHandler) liveStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stats, err := h.monitors.Snapshot(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *SummaryHandler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAssessmentNotFound),
		errors.Is(err, domain.ErrStudentNotFound),
		errors.Is(err, domain.ErrMonitorNotFound):
		status = http.StatusNotFound
	default:
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
