package memory

import (
	"context"
	"sort"
	"sync"

	"assessment-monitor-service/internal/domain"
)

// AttemptRepository is an append-only in-memory attempt log.
type AttemptRepository struct {
	mu       sync.RWMutex
	attempts []domain.Attempt
}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{}
}

func (r *AttemptRepository) Append(_ context.Context, attempt domain.Attempt) error {
	attempt.SubmittedAnswers = append([]domain.SubmittedAnswer(nil), attempt.SubmittedAnswers...)
	r.mu.Lock()
	r.attempts = append(r.attempts, attempt)
	r.mu.Unlock()
	return nil
}

func (r *AttemptRepository) ListByAssessment(_ context.Context, assessmentID int64) ([]domain.Attempt, error) {
	return r.filter(func(a domain.Attempt) bool { return a.AssessmentID == assessmentID }), nil
}

func (r *AttemptRepository) ListByCourse(_ context.Context, courseID int64) ([]domain.Attempt, error) {
	return r.filter(func(a domain.Attempt) bool { return a.CourseID == courseID }), nil
}

func (r *AttemptRepository) ListByStudent(_ context.Context, assessmentID, studentID int64) ([]domain.Attempt, error) {
	return r.filter(func(a domain.Attempt) bool {
		return a.AssessmentID == assessmentID && a.StudentID == studentID
	}), nil
}

func (r *AttemptRepository) filter(keep func(domain.Attempt) bool) []domain.Attempt {
	r.mu.RLock()
	out := make([]domain.Attempt, 0)
	for _, a := range r.attempts {
		if keep(a) {
			a.SubmittedAnswers = append([]domain.SubmittedAnswer(nil), a.SubmittedAnswers...)
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AttemptedAt.Before(out[j].AttemptedAt)
	})
	return out
}
