package postgres

import (
	"context"
	"fmt"
	"time"

	"assessment-monitor-service/internal/domain"
	"github.com/uptrace/bun"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID               string                   `bun:"id,pk"`
	AssessmentID     int64                    `bun:"assessment_id,notnull"`
	CourseID         int64                    `bun:"course_id,notnull"`
	StudentID        int64                    `bun:"student_id,notnull"`
	Score            int                      `bun:"score,notnull"`
	MaxScore         int                      `bun:"max_score,notnull"`
	Answers          []domain.SubmittedAnswer `bun:"answers,type:jsonb,notnull"`
	AttemptedAt      time.Time                `bun:"attempted_at,notnull"`
	TimeTakenSeconds *int                     `bun:"time_taken_seconds"`
}

// AttemptRepository appends and reads attempts with bun. There is no update path.
type AttemptRepository struct {
	db *bun.DB
}

func NewAttemptRepository(db *bun.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Append(ctx context.Context, attempt domain.Attempt) error {
	row := toRow(attempt)
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) ListByAssessment(ctx context.Context, assessmentID int64) ([]domain.Attempt, error) {
	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("a.assessment_id = ?", assessmentID)
	})
}

func (r *AttemptRepository) ListByCourse(ctx context.Context, courseID int64) ([]domain.Attempt, error) {
	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("a.course_id = ?", courseID)
	})
}

func (r *AttemptRepository) ListByStudent(ctx context.Context, assessmentID, studentID int64) ([]domain.Attempt, error) {
	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("a.assessment_id = ?", assessmentID).Where("a.student_id = ?", studentID)
	})
}

func (r *AttemptRepository) list(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]domain.Attempt, error) {
	var rows []attemptRow
	q := r.db.NewSelect().Model(&rows).OrderExpr("a.attempted_at ASC, a.id ASC")
	if err := filter(q).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func toRow(a domain.Attempt) attemptRow {
	answers := a.SubmittedAnswers
	if answers == nil {
		answers = []domain.SubmittedAnswer{}
	}
	return attemptRow{
		ID:               a.ID,
		AssessmentID:     a.AssessmentID,
		CourseID:         a.CourseID,
		StudentID:        a.StudentID,
		Score:            a.Score,
		MaxScore:         a.MaxScore,
		Answers:          answers,
		AttemptedAt:      a.AttemptedAt,
		TimeTakenSeconds: a.TimeTakenSeconds,
	}
}

func fromRow(row attemptRow) domain.Attempt {
	return domain.Attempt{
		ID:               row.ID,
		AssessmentID:     row.AssessmentID,
		CourseID:         row.CourseID,
		StudentID:        row.StudentID,
		Score:            row.Score,
		MaxScore:         row.MaxScore,
		SubmittedAnswers: row.Answers,
		AttemptedAt:      row.AttemptedAt,
		TimeTakenSeconds: row.TimeTakenSeconds,
	}
}
