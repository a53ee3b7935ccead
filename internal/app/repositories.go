package app

import (
	"context"

	"assessment-monitor-service/internal/domain"
)

// AssessmentRepository loads assessments with their question banks (from cache/backing store).
type AssessmentRepository interface {
	GetAssessment(ctx context.Context, assessmentID int64) (domain.Assessment, error)
}

// StudentRepository resolves students by id.
type StudentRepository interface {
	GetStudent(ctx context.Context, studentID int64) (domain.Student, error)
}

// RosterRepository reads the enrolled students of a course.
type RosterRepository interface {
	Roster(ctx context.Context, courseID int64) (domain.Roster, error)
}

// AttemptRepository is append-only: attempts are written once and never updated.
type AttemptRepository interface {
	Append(ctx context.Context, attempt domain.Attempt) error
	ListByAssessment(ctx context.Context, assessmentID int64) ([]domain.Attempt, error)
	ListByCourse(ctx context.Context, courseID int64) ([]domain.Attempt, error)
	ListByStudent(ctx context.Context, assessmentID, studentID int64) ([]domain.Attempt, error)
}

// EventPublisher announces lifecycle events. Publish must not block the caller
// and gives no delivery or ordering guarantee.
type EventPublisher interface {
	Publish(event domain.LifecycleEvent)
}

// EventSource streams the lifecycle events of one assessment until ctx is done.
type EventSource interface {
	Subscribe(ctx context.Context, assessmentID int64) (<-chan domain.LifecycleEvent, error)
}

// MonitorStore abstracts where live monitors are registered (in-memory, Redis-marked, etc).
type MonitorStore interface {
	GetOrCreate(assessmentID int64, roster domain.Roster) *Monitor
	Get(assessmentID int64) (*Monitor, bool)
	Delete(assessmentID int64)
}
