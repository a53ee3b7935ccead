package domain

import "time"

// Question is one immutable entry of an assessment's question bank.
type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Points        int      `json:"points"`
}

// Assessment owns its question bank.
type Assessment struct {
	ID        int64      `json:"id"`
	CourseID  int64      `json:"courseId"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// MaxScore is the sum of all non-negative question points.
func (a Assessment) MaxScore() int {
	total := 0
	for _, q := range a.Questions {
		if q.Points > 0 {
			total += q.Points
		}
	}
	return total
}

// Student is a roster entry.
type Student struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Roster is the enrolled-student snapshot of a course.
type Roster struct {
	CourseID int64     `json:"courseId"`
	Students []Student `json:"students"`
}

// Size is the enrolled count used as the denominator of live rates.
func (r Roster) Size() int {
	return len(r.Students)
}

// SubmittedAnswer is a single raw answer from the client.
type SubmittedAnswer struct {
	QuestionID int    `json:"questionId"`
	AnswerText string `json:"answerText"`
}

// Attempt is a scored, persisted submission. Attempts are never mutated.
type Attempt struct {
	ID               string            `json:"attemptId"`
	AssessmentID     int64             `json:"assessmentId"`
	CourseID         int64             `json:"courseId"`
	StudentID        int64             `json:"studentId"`
	Score            int               `json:"score"`
	MaxScore         int               `json:"maxScore"`
	SubmittedAnswers []SubmittedAnswer `json:"submittedAnswers"`
	AttemptedAt      time.Time         `json:"attemptTimestamp"`
	TimeTakenSeconds *int              `json:"timeTakenSeconds,omitempty"`
}

// Percentage is score/maxScore*100, or 0 when the attempt had no attainable points.
func (a Attempt) Percentage() float64 {
	if a.MaxScore <= 0 {
		return 0
	}
	return float64(a.Score) / float64(a.MaxScore) * 100
}

// AssessmentSummary is derived on demand from a set of attempts.
// CourseID is set instead of AssessmentID for course-scoped summaries.
type AssessmentSummary struct {
	AssessmentID      int64   `json:"assessmentId,omitempty"`
	CourseID          int64   `json:"courseId,omitempty"`
	AverageScore      float64 `json:"averageScore"`
	AveragePercentage float64 `json:"averagePercentage"`
	TotalAttempts     int     `json:"totalAttempts"`
	HighestScore      int     `json:"highestScore"`
	LowestScore       int     `json:"lowestScore"`
	MaxPossibleScore  int     `json:"maxPossibleScore"`
}

// StudentProgress is the live per-student state kept by a monitor.
type StudentProgress struct {
	StudentID         int64     `json:"studentId"`
	Name              string    `json:"name"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	CorrectAnswers    int       `json:"correctAnswers"`
	HasStarted        bool      `json:"hasStarted"`
	HasCompleted      bool      `json:"hasCompleted"`
	LastActivity      time.Time `json:"lastActivity"`
	Score             *int      `json:"score,omitempty"`
	MaxScore          *int      `json:"maxScore,omitempty"`
	TotalTimeSeconds  *int      `json:"totalTimeSeconds,omitempty"`
}

// QuestionStat is the live tally for one question index.
type QuestionStat struct {
	QuestionIndex int     `json:"questionIndex"`
	Attempts      int     `json:"attempts"`
	Correct       int     `json:"correct"`
	SuccessRate   float64 `json:"successRate"`
}

// LiveStats is a consistent copy of a monitor's state plus derived rates.
type LiveStats struct {
	AssessmentID        int64             `json:"assessmentId"`
	Enrolled            int               `json:"enrolled"`
	ParticipationRate   float64           `json:"participationRate"`
	CompletionRate      float64           `json:"completionRate"`
	AverageScorePercent float64           `json:"averageScorePercent"`
	Students            []StudentProgress `json:"students"`
	Questions           []QuestionStat    `json:"questions"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}
