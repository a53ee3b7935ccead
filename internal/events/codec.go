package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assessment-monitor-service/internal/domain"
)

const (
	eventSource  = "assessment-service"
	eventVersion = "1.0"
)

// ErrUnknownEventType is returned when decoding an envelope of an unsupported type.
var ErrUnknownEventType = errors.New("unknown lifecycle event type")

// Envelope is the wire form of every lifecycle event.
type Envelope struct {
	ID        string           `json:"id"`
	Type      domain.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Source    string           `json:"source"`
	Version   string           `json:"version"`
	Data      json.RawMessage  `json:"data"`
}

// Marshal encodes an event into its JSON envelope.
func Marshal(event domain.LifecycleEvent) ([]byte, error) {
	event = domain.Concrete(event)
	if event == nil {
		return nil, fmt.Errorf("marshal lifecycle event: nil event")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal lifecycle event data: %w", err)
	}
	h := event.Header()
	return json.Marshal(Envelope{
		ID:        h.EventID,
		Type:      event.Type(),
		Timestamp: h.Timestamp,
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	})
}

// Unmarshal decodes a JSON envelope back into a StartEvent, AnswerEvent or SubmitEvent value.
func Unmarshal(payload []byte) (domain.LifecycleEvent, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("unmarshal %s: empty data", env.Type)
	}

	var event domain.LifecycleEvent
	switch env.Type {
	case domain.EventQuizStarted:
		var e domain.StartEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		event = e
	case domain.EventQuizAnswered:
		var e domain.AnswerEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		event = e
	case domain.EventQuizSubmitted:
		var e domain.SubmitEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		event = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}

	if event.Header().AssessmentID <= 0 {
		return nil, fmt.Errorf("unmarshal %s: missing assessment id", env.Type)
	}
	return event, nil
}
