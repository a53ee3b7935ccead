package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"assessment-monitor-service/internal/app"
	"github.com/gorilla/websocket"
)

// QuizHandler serves the student quiz-taking socket.
type QuizHandler struct {
	service  *app.SubmissionService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewQuizHandler(service *app.SubmissionService, logger *slog.Logger) *QuizHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizHandler{service: service, logger: logger, upgrader: newUpgrader()}
}

// ServeWS upgrades HTTP requests to websockets and wires start/answer/submit messages into the
// submission use cases.
func (h *QuizHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	assessmentID, okA := queryID(r, "assessmentId")
	studentID, okS := queryID(r, "studentId")
	if !okA || !okS {
		http.Error(w, "missing or invalid assessmentId or studentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "error", err)
				// keep draining so the reader never blocks on a dead connection
				for range send {
				}
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if err := h.service.Start(ctx, assessmentID, studentID); err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "started", Payload: startedPayload{AssessmentID: assessmentID}}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			correct, err := h.service.RecordAnswer(ctx, app.AnswerRequest{
				AssessmentID:     assessmentID,
				StudentID:        studentID,
				QuestionIndex:    payload.QuestionIndex,
				AnswerText:       payload.AnswerText,
				TimeTakenSeconds: payload.TimeTakenSeconds,
			})
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: answerResult{
				QuestionIndex: payload.QuestionIndex,
				Correct:       correct,
			}}
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}}
				continue
			}
			attempt, err := h.service.Submit(ctx, app.SubmitRequest{
				AssessmentID:     assessmentID,
				StudentID:        studentID,
				Answers:          payload.Answers,
				TimeTakenSeconds: payload.TimeTakenSeconds,
			})
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "attempt", Payload: attempt}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}
