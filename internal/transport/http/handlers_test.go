package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assessment-monitor-service/internal/app"
	"assessment-monitor-service/internal/domain"
	"assessment-monitor-service/internal/events"
	"assessment-monitor-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

type testServer struct {
	server     *httptest.Server
	recorder   *events.Recorder
	attempts   *memory.AttemptRepository
	monitors   *app.MonitorService
	submission *app.SubmissionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assessments := memory.NewAssessmentRepository(memory.NewStaticAssessmentLoader(map[int64]domain.Assessment{
		1: sampleAssessment(),
	}), time.Minute)
	directory := memory.NewDirectory(map[int64][]domain.Student{100: {
		{ID: 1, Name: "Alice"},
		{ID: 2, Name: "Bob"},
	}})
	attempts := memory.NewAttemptRepository()
	recorder := events.NewRecorder()

	submission := app.NewSubmissionService(assessments, directory, attempts, recorder, logger)
	monitors := app.NewMonitorService(memory.NewMonitorStore(), assessments, directory, nil, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/quiz", NewQuizHandler(submission, logger).ServeWS)
	mux.HandleFunc("/ws/monitor", NewMonitorHandler(monitors, logger).ServeWS)
	NewSummaryHandler(app.NewSummaryService(attempts), monitors, logger).Register(mux)

	ts := &testServer{
		server:     httptest.NewServer(mux),
		recorder:   recorder,
		attempts:   attempts,
		monitors:   monitors,
		submission: submission,
	}
	t.Cleanup(func() {
		ts.server.Close()
		monitors.Shutdown()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + ts.server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestQuizSocketFlow(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/quiz?assessmentId=1&studentId=1")

	send(t, conn, map[string]any{"type": "start"})
	if typ, _ := readNext(conn, t); typ != "started" {
		t.Fatalf("expected started, got %s", typ)
	}

	send(t, conn, map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionIndex": 0, "answerText": "B", "timeTakenSeconds": 3},
	})
	typ, payload := readNext(conn, t)
	if typ != "answerResult" || payload["correct"] != true {
		t.Fatalf("expected correct answerResult, got %s %v", typ, payload)
	}

	send(t, conn, map[string]any{
		"type": "submit",
		"payload": map[string]any{
			"answers": []map[string]any{
				{"questionId": 1, "answerText": "B"},
				{"questionId": 2, "answerText": "C"},
			},
			"timeTakenSeconds": 30,
		},
	})
	typ, payload = readNext(conn, t)
	if typ != "attempt" {
		t.Fatalf("expected attempt, got %s %v", typ, payload)
	}
	if payload["score"] != float64(2) || payload["maxScore"] != float64(5) {
		t.Fatalf("unexpected attempt payload %v", payload)
	}

	published := ts.recorder.Events()
	if len(published) != 3 {
		t.Fatalf("expected 3 lifecycle events, got %d", len(published))
	}
	want := []domain.EventType{domain.EventQuizStarted, domain.EventQuizAnswered, domain.EventQuizSubmitted}
	for i, event := range published {
		if event.Type() != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], event.Type())
		}
	}
}

func TestQuizSocketReportsErrors(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/quiz?assessmentId=1&studentId=99")

	send(t, conn, map[string]any{"type": "submit", "payload": map[string]any{"answers": []any{}}})
	if typ, payload := readNext(conn, t); typ != "error" || payload["message"] == "" {
		t.Fatalf("expected error for unknown student, got %s %v", typ, payload)
	}
	send(t, conn, map[string]any{"type": "dance"})
	if typ, _ := readNext(conn, t); typ != "error" {
		t.Fatalf("expected error for unknown message, got %s", typ)
	}
}

func TestSocketsRequireIDs(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/ws/quiz?assessmentId=1", "/ws/monitor?assessmentId=abc"} {
		resp, err := http.Get(ts.server.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, resp.StatusCode)
		}
	}
}

func TestMonitorSocketStreamsStats(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/monitor?assessmentId=1")

	typ, payload := readNext(conn, t)
	if typ != "stats" || payload["enrolled"] != float64(2) {
		t.Fatalf("expected initial stats with 2 enrolled, got %s %v", typ, payload)
	}

	if err := ts.submission.Start(context.Background(), 1, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, event := range ts.recorder.Events() {
		ts.monitors.Dispatch(event)
	}

	typ, payload = readNext(conn, t)
	if typ != "stats" || payload["participationRate"] != float64(50) {
		t.Fatalf("expected 50%% participation, got %s %v", typ, payload)
	}
}

func TestMonitorClosesWithLastDashboard(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/monitor?assessmentId=1")
	readNext(conn, t)

	if _, err := ts.monitors.Snapshot(1); err != nil {
		t.Fatalf("expected open monitor: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := ts.monitors.Snapshot(1); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected monitor to close after the dashboard disconnected")
}

func TestMonitorSocketUnknownAssessment(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/monitor?assessmentId=42")
	if typ, _ := readNext(conn, t); typ != "error" {
		t.Fatalf("expected error, got %s", typ)
	}
}

func TestSummaryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	var empty summaryResponse
	getJSON(t, ts.server.URL+"/assessments/1/summary", http.StatusOK, &empty)
	if empty.HasData {
		t.Fatalf("expected no data before any attempt")
	}

	for _, answer := range []string{"B", "C"} {
		if _, err := ts.submission.Submit(ctx, app.SubmitRequest{
			AssessmentID: 1,
			StudentID:    1,
			Answers:      []domain.SubmittedAnswer{{QuestionID: 1, AnswerText: answer}},
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	var summary summaryResponse
	getJSON(t, ts.server.URL+"/assessments/1/summary", http.StatusOK, &summary)
	if !summary.HasData || summary.Summary.TotalAttempts != 2 || summary.Summary.HighestScore != 2 || summary.Summary.LowestScore != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	var course summaryResponse
	getJSON(t, ts.server.URL+"/courses/100/summary", http.StatusOK, &course)
	if course.Summary.CourseID != 100 || course.Summary.TotalAttempts != 2 {
		t.Fatalf("unexpected course summary %+v", course)
	}

	var history []domain.Attempt
	getJSON(t, ts.server.URL+"/assessments/1/students/1/attempts", http.StatusOK, &history)
	if len(history) != 2 || history[0].Score != 2 {
		t.Fatalf("unexpected history %+v", history)
	}

	getJSON(t, ts.server.URL+"/assessments/1/live", http.StatusNotFound, nil)
	getJSON(t, ts.server.URL+"/assessments/0/summary", http.StatusBadRequest, nil)

	if _, err := ts.monitors.Open(ctx, 1); err != nil {
		t.Fatalf("open monitor: %v", err)
	}
	var live domain.LiveStats
	getJSON(t, ts.server.URL+"/assessments/1/live", http.StatusOK, &live)
	if live.AssessmentID != 1 || live.Enrolled != 2 {
		t.Fatalf("unexpected live stats %+v", live)
	}
}

func getJSON(t *testing.T, url string, status int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != status {
		t.Fatalf("get %s: expected %d, got %d", url, status, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}

func sampleAssessment() domain.Assessment {
	return domain.Assessment{
		ID:       1,
		CourseID: 100,
		Title:    "Warm-up",
		Questions: []domain.Question{
			{ID: 1, Text: "Pick B", Options: []string{"A", "B"}, CorrectAnswer: "B", Points: 2},
			{ID: 2, Text: "Pick A", Options: []string{"A", "C"}, CorrectAnswer: "A", Points: 3},
		},
	}
}
