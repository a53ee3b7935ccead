package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"assessment-monitor-service/internal/domain"
	"github.com/gorilla/websocket"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type answerPayload struct {
	QuestionIndex    int    `json:"questionIndex"`
	AnswerText       string `json:"answerText"`
	TimeTakenSeconds int    `json:"timeTakenSeconds"`
}

type answerResult struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
}

type submitPayload struct {
	Answers          []domain.SubmittedAnswer `json:"answers"`
	TimeTakenSeconds *int                     `json:"timeTakenSeconds"`
}

type startedPayload struct {
	AssessmentID int64 `json:"assessmentId"`
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

func queryID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return id, err == nil && id > 0
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
