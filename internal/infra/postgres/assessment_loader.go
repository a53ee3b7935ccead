package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assessment-monitor-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AssessmentLoader loads assessments and their question bank JSONB from Postgres.
type AssessmentLoader struct {
	pool *pgxpool.Pool
}

func NewAssessmentLoader(pool *pgxpool.Pool) *AssessmentLoader {
	return &AssessmentLoader{pool: pool}
}

func (l *AssessmentLoader) LoadAssessment(ctx context.Context, assessmentID int64) (domain.Assessment, error) {
	assessment := domain.Assessment{ID: assessmentID}
	var raw []byte
	err := l.pool.QueryRow(ctx,
		`SELECT course_id, title, questions FROM assessments WHERE id=$1`,
		assessmentID,
	).Scan(&assessment.CourseID, &assessment.Title, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assessment{}, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("load assessment: %w", err)
	}
	if err := json.Unmarshal(raw, &assessment.Questions); err != nil {
		return domain.Assessment{}, fmt.Errorf("unmarshal question bank: %w", err)
	}
	return assessment, nil
}
