package app

import (
	"context"
	"fmt"

	"assessment-monitor-service/internal/domain"
)

// Summarize aggregates attempts of any scope. It reports false when there are no attempts.
// The average percentage is the mean of per-attempt percentages, so attempts scored against
// a different max score keep their own ratio.
func Summarize(attempts []domain.Attempt) (domain.AssessmentSummary, bool) {
	if len(attempts) == 0 {
		return domain.AssessmentSummary{}, false
	}

	latest := attempts[0]
	summary := domain.AssessmentSummary{
		TotalAttempts: len(attempts),
		HighestScore:  attempts[0].Score,
		LowestScore:   attempts[0].Score,
	}
	var scoreSum, percentSum float64
	for _, a := range attempts {
		scoreSum += float64(a.Score)
		percentSum += a.Percentage()
		if a.Score > summary.HighestScore {
			summary.HighestScore = a.Score
		}
		if a.Score < summary.LowestScore {
			summary.LowestScore = a.Score
		}
		if a.AttemptedAt.After(latest.AttemptedAt) {
			latest = a
		}
	}
	n := float64(len(attempts))
	summary.AverageScore = scoreSum / n
	summary.AveragePercentage = percentSum / n
	summary.MaxPossibleScore = latest.MaxScore
	return summary, true
}

// SummaryService pulls persisted attempts and summarizes them on demand.
type SummaryService struct {
	attempts AttemptRepository
}

func NewSummaryService(attempts AttemptRepository) *SummaryService {
	return &SummaryService{attempts: attempts}
}

// AssessmentSummary summarizes every attempt of one assessment.
func (s *SummaryService) AssessmentSummary(ctx context.Context, assessmentID int64) (domain.AssessmentSummary, bool, error) {
	attempts, err := s.attempts.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentSummary{}, false, fmt.Errorf("list attempts: %w", err)
	}
	summary, ok := Summarize(attempts)
	summary.AssessmentID = assessmentID
	return summary, ok, nil
}

// CourseSummary summarizes every attempt of every assessment in a course.
func (s *SummaryService) CourseSummary(ctx context.Context, courseID int64) (domain.AssessmentSummary, bool, error) {
	attempts, err := s.attempts.ListByCourse(ctx, courseID)
	if err != nil {
		return domain.AssessmentSummary{}, false, fmt.Errorf("list course attempts: %w", err)
	}
	summary, ok := Summarize(attempts)
	summary.CourseID = courseID
	return summary, ok, nil
}

// StudentAttempts lists a student's attempts at one assessment, oldest first.
func (s *SummaryService) StudentAttempts(ctx context.Context, assessmentID, studentID int64) ([]domain.Attempt, error) {
	return s.attempts.ListByStudent(ctx, assessmentID, studentID)
}
