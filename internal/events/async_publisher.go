package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"assessment-monitor-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Sink delivers one event to a transport.
type Sink interface {
	Send(ctx context.Context, event domain.LifecycleEvent) error
}

// AsyncPublisher decouples callers from the transport: Publish enqueues and returns,
// a small worker pool drains the queue. A full queue drops the event. Failures are logged
// and never retried.
type AsyncPublisher struct {
	sink        Sink
	logger      *slog.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan domain.LifecycleEvent
	group  errgroup.Group
}

// AsyncPublisherConfig sizes the queue and worker pool.
type AsyncPublisherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

func NewAsyncPublisher(sink Sink, cfg AsyncPublisherConfig, logger *slog.Logger) *AsyncPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	p := &AsyncPublisher{
		sink:        sink,
		logger:      logger,
		sendTimeout: cfg.SendTimeout,
		queue:       make(chan domain.LifecycleEvent, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.group.Go(p.work)
	}
	return p
}

// Publish enqueues the event without waiting for the transport.
func (p *AsyncPublisher) Publish(event domain.LifecycleEvent) {
	event = domain.Concrete(event)
	if event == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("lifecycle event not published",
			"event_type", event.Type(),
			"event_id", event.Header().EventID,
			"error", domain.ErrPublisherClosed)
		return
	}
	select {
	case p.queue <- event:
	default:
		p.logger.Warn("lifecycle event queue full, dropping event",
			"event_type", event.Type(),
			"event_id", event.Header().EventID,
			"assessment_id", event.Header().AssessmentID)
	}
}

// Close stops accepting events and waits for queued ones to be attempted.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	return p.group.Wait()
}

func (p *AsyncPublisher) work() error {
	for event := range p.queue {
		p.send(event)
	}
	return nil
}

func (p *AsyncPublisher) send(event domain.LifecycleEvent) {
	h := event.Header()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("lifecycle event sink panicked",
				"event_id", h.EventID,
				"panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
	defer cancel()
	if err := p.sink.Send(ctx, event); err != nil {
		p.logger.Error("failed to publish lifecycle event",
			"event_id", h.EventID,
			"event_type", event.Type(),
			"assessment_id", h.AssessmentID,
			"student_id", h.StudentID,
			"error", err)
		return
	}
	p.logger.Debug("published lifecycle event",
		"event_id", h.EventID,
		"event_type", event.Type(),
		"assessment_id", h.AssessmentID)
}

// Recorder is an in-memory publisher for tests and for wiring without a transport.
type Recorder struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(event domain.LifecycleEvent) {
	event = domain.Concrete(event)
	if event == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []domain.LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LifecycleEvent, len(r.events))
	copy(out, r.events)
	return out
}
