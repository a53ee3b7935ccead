package app

import (
	"fmt"
	"log/slog"

	"assessment-monitor-service/internal/domain"
)

// ScoreResult is the outcome of scoring one submission.
type ScoreResult struct {
	Score          int
	MaxScore       int
	CorrectAnswers int
	TotalQuestions int
}

// Scorer turns submitted answers into a score. It holds no state besides its logger
// and is safe for concurrent use.
type Scorer struct {
	logger *slog.Logger
}

func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger}
}

// Score awards a question's points when the answer text equals its correct answer exactly.
// Unknown question ids, repeated answers to the same question and empty answers contribute 0.
// A malformed question bank is logged and scores 0 so the submission can still be recorded.
func (s *Scorer) Score(assessment domain.Assessment, answers []domain.SubmittedAnswer) ScoreResult {
	result := ScoreResult{
		MaxScore:       assessment.MaxScore(),
		TotalQuestions: len(assessment.Questions),
	}
	if err := validateBank(assessment.Questions); err != nil {
		s.logger.Warn("question bank rejected by scorer",
			"assessment_id", assessment.ID,
			"error", err)
		return result
	}

	bank := make(map[int]domain.Question, len(assessment.Questions))
	for _, q := range assessment.Questions {
		if _, dup := bank[q.ID]; !dup {
			bank[q.ID] = q
		}
	}

	answered := make(map[int]struct{}, len(answers))
	for _, answer := range answers {
		question, ok := bank[answer.QuestionID]
		if !ok {
			continue
		}
		if _, seen := answered[answer.QuestionID]; seen {
			continue
		}
		answered[answer.QuestionID] = struct{}{}
		if answer.AnswerText == "" || answer.AnswerText != question.CorrectAnswer {
			continue
		}
		result.Score += question.Points
		result.CorrectAnswers++
	}
	return result
}

// IsCorrect checks one answer against the question at position index.
func IsCorrect(assessment domain.Assessment, index int, answerText string) bool {
	if index < 0 || index >= len(assessment.Questions) {
		return false
	}
	q := assessment.Questions[index]
	return answerText != "" && answerText == q.CorrectAnswer
}

func validateBank(questions []domain.Question) error {
	for i, q := range questions {
		if q.Points < 0 {
			return fmt.Errorf("question %d (position %d) has negative points %d", q.ID, i, q.Points)
		}
	}
	return nil
}
