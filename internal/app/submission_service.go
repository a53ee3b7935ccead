package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"assessment-monitor-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SubmitRequest is a student's full set of answers for one assessment.
type SubmitRequest struct {
	AssessmentID     int64                    `validate:"gt=0"`
	StudentID        int64                    `validate:"gt=0"`
	Answers          []domain.SubmittedAnswer `validate:"max=1000"`
	TimeTakenSeconds *int                     `validate:"omitempty,gte=0"`
}

// AnswerRequest reports a single answered question while the quiz is in progress.
type AnswerRequest struct {
	AssessmentID     int64  `validate:"gt=0"`
	StudentID        int64  `validate:"gt=0"`
	QuestionIndex    int    `validate:"gte=0"`
	AnswerText       string `validate:"max=4096"`
	TimeTakenSeconds int    `validate:"gte=0"`
}

// SubmissionService scores submissions, appends attempts and announces lifecycle events.
type SubmissionService struct {
	assessments AssessmentRepository
	students    StudentRepository
	attempts    AttemptRepository
	publisher   EventPublisher
	scorer      *Scorer
	validate    *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

func NewSubmissionService(
	assessments AssessmentRepository,
	students StudentRepository,
	attempts AttemptRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{
		assessments: assessments,
		students:    students,
		attempts:    attempts,
		publisher:   publisher,
		scorer:      NewScorer(logger),
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.now = now
	return s
}

// Submit scores the answers and appends a new attempt. The attempt is durable when Submit
// returns; the Submit event is handed to the publisher and may be delivered later or not at all.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (domain.Attempt, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.Attempt{}, fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err)
	}

	assessment, err := s.assessments.GetAssessment(ctx, req.AssessmentID)
	if err != nil {
		return domain.Attempt{}, err
	}
	student, err := s.students.GetStudent(ctx, req.StudentID)
	if err != nil {
		return domain.Attempt{}, err
	}

	result := s.scorer.Score(assessment, req.Answers)

	answers := make([]domain.SubmittedAnswer, len(req.Answers))
	copy(answers, req.Answers)
	var timeTaken *int
	if req.TimeTakenSeconds != nil {
		v := *req.TimeTakenSeconds
		timeTaken = &v
	}

	attempt := domain.Attempt{
		ID:               s.newID(),
		AssessmentID:     assessment.ID,
		CourseID:         assessment.CourseID,
		StudentID:        student.ID,
		Score:            result.Score,
		MaxScore:         result.MaxScore,
		SubmittedAnswers: answers,
		AttemptedAt:      s.now().UTC(),
		TimeTakenSeconds: timeTaken,
	}
	if err := s.attempts.Append(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("append attempt: %w", err)
	}

	s.logger.InfoContext(ctx, "attempt recorded",
		"attempt_id", attempt.ID,
		"assessment_id", attempt.AssessmentID,
		"student_id", attempt.StudentID,
		"score", attempt.Score,
		"max_score", attempt.MaxScore)

	totalTime := 0
	if timeTaken != nil {
		totalTime = *timeTaken
	}
	s.publisher.Publish(domain.SubmitEvent{
		EventHeader:      s.header(assessment, student),
		Score:            result.Score,
		MaxScore:         result.MaxScore,
		TotalQuestions:   result.TotalQuestions,
		CorrectAnswers:   result.CorrectAnswers,
		TotalTimeSeconds: totalTime,
	})
	return attempt, nil
}

// Start announces that a student opened the assessment. Nothing is persisted.
func (s *SubmissionService) Start(ctx context.Context, assessmentID, studentID int64) error {
	assessment, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return err
	}
	s.publisher.Publish(domain.StartEvent{
		EventHeader: s.header(assessment, s.lookupStudent(ctx, studentID)),
	})
	return nil
}

// RecordAnswer checks one in-progress answer and announces it. Nothing is persisted;
// the final submission is scored again from scratch.
func (s *SubmissionService) RecordAnswer(ctx context.Context, req AnswerRequest) (bool, error) {
	if err := s.validate.Struct(req); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err)
	}
	assessment, err := s.assessments.GetAssessment(ctx, req.AssessmentID)
	if err != nil {
		return false, err
	}
	correct := IsCorrect(assessment, req.QuestionIndex, req.AnswerText)
	s.publisher.Publish(domain.AnswerEvent{
		EventHeader:      s.header(assessment, s.lookupStudent(ctx, req.StudentID)),
		QuestionIndex:    req.QuestionIndex,
		IsCorrect:        correct,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	return correct, nil
}

// lookupStudent resolves a display name for events; an unknown student still gets an event.
func (s *SubmissionService) lookupStudent(ctx context.Context, studentID int64) domain.Student {
	student, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		if !errors.Is(err, domain.ErrStudentNotFound) {
			s.logger.WarnContext(ctx, "student lookup failed", "student_id", studentID, "error", err)
		}
		return domain.Student{ID: studentID}
	}
	return student
}

func (s *SubmissionService) header(assessment domain.Assessment, student domain.Student) domain.EventHeader {
	return domain.EventHeader{
		EventID:      s.newID(),
		AssessmentID: assessment.ID,
		CourseID:     assessment.CourseID,
		StudentID:    student.ID,
		StudentName:  student.Name,
		Timestamp:    s.now().UTC(),
	}
}
