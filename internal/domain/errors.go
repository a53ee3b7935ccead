package domain

import "errors"

var (
	// ErrAssessmentNotFound is returned when an assessment or its question bank cannot be loaded.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrStudentNotFound is returned when a submitting student is unknown.
	ErrStudentNotFound = errors.New("student not found")
	// ErrInvalidSubmission wraps request validation failures.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrMonitorNotFound is returned when no live monitor is open for an assessment.
	ErrMonitorNotFound = errors.New("monitor not open for assessment")
	// ErrMonitorClosed is returned when subscribing to a monitor that was torn down.
	ErrMonitorClosed = errors.New("monitor closed")
	// ErrPublisherClosed is reported (and logged) when publishing after shutdown.
	ErrPublisherClosed = errors.New("event publisher closed")
)
