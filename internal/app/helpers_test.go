package app_test

import (
	"io"
	"log/slog"
	"time"

	"assessment-monitor-service/internal/app"
	"assessment-monitor-service/internal/domain"
	"assessment-monitor-service/internal/events"
	"assessment-monitor-service/internal/infra/memory"
	"github.com/google/uuid"
)

var baseTime = time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

func sampleRoster() domain.Roster {
	return domain.Roster{CourseID: 100, Students: []domain.Student{
		{ID: 1, Name: "Alice"},
		{ID: 2, Name: "Bob"},
		{ID: 3, Name: "Carol"},
	}}
}

type fixture struct {
	assessments *memory.AssessmentRepository
	directory   *memory.Directory
	attempts    *memory.AttemptRepository
	recorder    *events.Recorder
	service     *app.SubmissionService
}

func newFixture() fixture {
	second := sampleAssessment()
	second.ID = 2
	assessments := memory.NewAssessmentRepository(memory.NewStaticAssessmentLoader(map[int64]domain.Assessment{
		1: sampleAssessment(),
		2: second,
	}), time.Minute)
	directory := memory.NewDirectory(map[int64][]domain.Student{100: sampleRoster().Students})
	attempts := memory.NewAttemptRepository()
	recorder := events.NewRecorder()
	return fixture{
		assessments: assessments,
		directory:   directory,
		attempts:    attempts,
		recorder:    recorder,
		service:     app.NewSubmissionService(assessments, directory, attempts, recorder, discardLogger()),
	}
}

func header(assessmentID, studentID int64, name string, at time.Time) domain.EventHeader {
	return domain.EventHeader{
		EventID:      uuid.NewString(),
		AssessmentID: assessmentID,
		CourseID:     100,
		StudentID:    studentID,
		StudentName:  name,
		Timestamp:    at,
	}
}

func startEvent(assessmentID, studentID int64, at time.Time) domain.StartEvent {
	return domain.StartEvent{EventHeader: header(assessmentID, studentID, "", at)}
}

func answerEvent(assessmentID, studentID int64, index int, correct bool, at time.Time) domain.AnswerEvent {
	return domain.AnswerEvent{
		EventHeader:      header(assessmentID, studentID, "", at),
		QuestionIndex:    index,
		IsCorrect:        correct,
		TimeTakenSeconds: 5,
	}
}

func submitEvent(assessmentID, studentID int64, score, maxScore, total, correct int, at time.Time) domain.SubmitEvent {
	return domain.SubmitEvent{
		EventHeader:      header(assessmentID, studentID, "", at),
		Score:            score,
		MaxScore:         maxScore,
		TotalQuestions:   total,
		CorrectAnswers:   correct,
		TotalTimeSeconds: 60,
	}
}
