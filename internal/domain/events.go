package domain

import "time"

// EventType names a lifecycle event variant on the wire.
type EventType string

const (
	EventQuizStarted   EventType = "quiz.started"
	EventQuizAnswered  EventType = "quiz.answered"
	EventQuizSubmitted EventType = "quiz.submitted"
)

// EventHeader is carried by every lifecycle event.
type EventHeader struct {
	EventID      string    `json:"event_id"`
	AssessmentID int64     `json:"assessment_id"`
	CourseID     int64     `json:"course_id"`
	StudentID    int64     `json:"student_id"`
	StudentName  string    `json:"student_name"`
	Timestamp    time.Time `json:"timestamp"`
}

// LifecycleEvent is the closed set of StartEvent, AnswerEvent and SubmitEvent.
type LifecycleEvent interface {
	Header() EventHeader
	Type() EventType
	isLifecycleEvent()
}

// StartEvent announces that a student opened the quiz.
type StartEvent struct {
	EventHeader
}

// AnswerEvent announces a single answered question.
type AnswerEvent struct {
	EventHeader
	QuestionIndex    int  `json:"question_index"`
	IsCorrect        bool `json:"is_correct"`
	TimeTakenSeconds int  `json:"time_taken_seconds"`
}

// SubmitEvent carries the authoritative result of a scored submission.
type SubmitEvent struct {
	EventHeader
	Score            int `json:"score"`
	MaxScore         int `json:"max_score"`
	TotalQuestions   int `json:"total_questions"`
	CorrectAnswers   int `json:"correct_answers"`
	TotalTimeSeconds int `json:"total_time_seconds"`
}

func (e StartEvent) Header() EventHeader  { return e.EventHeader }
func (e AnswerEvent) Header() EventHeader { return e.EventHeader }
func (e SubmitEvent) Header() EventHeader { return e.EventHeader }

func (StartEvent) Type() EventType  { return EventQuizStarted }
func (AnswerEvent) Type() EventType { return EventQuizAnswered }
func (SubmitEvent) Type() EventType { return EventQuizSubmitted }

func (StartEvent) isLifecycleEvent()  {}
func (AnswerEvent) isLifecycleEvent() {}
func (SubmitEvent) isLifecycleEvent() {}

// Concrete returns the value form of event. Nil and typed-nil pointer variants yield nil.
func Concrete(event LifecycleEvent) LifecycleEvent {
	switch e := event.(type) {
	case *StartEvent:
		if e == nil {
			return nil
		}
		return *e
	case *AnswerEvent:
		if e == nil {
			return nil
		}
		return *e
	case *SubmitEvent:
		if e == nil {
			return nil
		}
		return *e
	}
	return event
}
