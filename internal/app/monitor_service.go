package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"assessment-monitor-service/internal/domain"
)

// MonitorService owns the live monitors. Each open assessment gets its own Monitor and its own
// consuming goroutine, so assessments never contend with each other.
type MonitorService struct {
	store       MonitorStore
	assessments AssessmentRepository
	rosters     RosterRepository
	source      EventSource
	logger      *slog.Logger
	buffer      int

	mu       sync.Mutex
	sessions map[int64]*monitorSession
}

type monitorSession struct {
	monitor   *Monitor
	observers int
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewMonitorService(store MonitorStore, assessments AssessmentRepository, rosters RosterRepository, source EventSource, logger *slog.Logger) *MonitorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitorService{
		store:       store,
		assessments: assessments,
		rosters:     rosters,
		source:      source,
		logger:      logger,
		buffer:      defaultSnapshotBuffer,
		sessions:    make(map[int64]*monitorSession),
	}
}

// SetSnapshotBuffer configures the subscriber channel size for monitors opened afterwards.
func (s *MonitorService) SetSnapshotBuffer(n int) {
	if n > 0 {
		s.buffer = n
	}
}

// Open starts (or joins) live monitoring of an assessment. Every Open must be paired with Close.
func (s *MonitorService) Open(ctx context.Context, assessmentID int64) (*Monitor, error) {
	if monitor, ok := s.join(assessmentID); ok {
		return monitor, nil
	}

	assessment, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	roster, err := s.rosters.Roster(ctx, assessment.CourseID)
	if err != nil {
		// rates fall back to tracked students only
		s.logger.WarnContext(ctx, "roster unavailable for monitor",
			"assessment_id", assessmentID,
			"course_id", assessment.CourseID,
			"error", err)
		roster = domain.Roster{CourseID: assessment.CourseID}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[assessmentID]; ok {
		sess.observers++
		return sess.monitor, nil
	}

	monitor := s.store.GetOrCreate(assessmentID, roster)
	if monitor.Closed() {
		// left behind by an earlier teardown; never hand a dead monitor to a new session
		s.store.Delete(assessmentID)
		monitor = s.store.GetOrCreate(assessmentID, roster)
	}
	monitor.SetSnapshotBuffer(s.buffer)
	consumeCtx, cancel := context.WithCancel(context.Background())
	sess := &monitorSession{
		monitor:   monitor,
		observers: 1,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if s.source != nil {
		stream, err := s.source.Subscribe(consumeCtx, assessmentID)
		if err != nil {
			cancel()
			s.store.Delete(assessmentID)
			return nil, fmt.Errorf("subscribe to assessment events: %w", err)
		}
		go s.consume(consumeCtx, sess, stream)
	} else {
		close(sess.done)
	}
	s.sessions[assessmentID] = sess

	s.logger.InfoContext(ctx, "monitor opened",
		"assessment_id", assessmentID,
		"enrolled", roster.Size())
	return monitor, nil
}

func (s *MonitorService) join(assessmentID int64) (*Monitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[assessmentID]
	if !ok {
		return nil, false
	}
	sess.observers++
	return sess.monitor, true
}

// Close releases one observer. The last one tears the monitor down; events still in flight
// for the assessment are dropped.
func (s *MonitorService) Close(assessmentID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[assessmentID]
	if !ok {
		return
	}
	sess.observers--
	if sess.observers > 0 {
		return
	}
	delete(s.sessions, assessmentID)
	s.teardownLocked(assessmentID, sess)
}

// Shutdown tears down every open monitor regardless of observers.
func (s *MonitorService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[int64]*monitorSession)
	for id, sess := range sessions {
		s.teardownLocked(id, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		<-sess.done
	}
}

// teardownLocked runs under s.mu so a concurrent Open cannot pick up the monitor being removed.
func (s *MonitorService) teardownLocked(assessmentID int64, sess *monitorSession) {
	sess.cancel()
	sess.monitor.Close()
	s.store.Delete(assessmentID)
	s.logger.Info("monitor closed", "assessment_id", assessmentID)
}

// Dispatch applies an event directly to the open monitor of its assessment, if any.
func (s *MonitorService) Dispatch(event domain.LifecycleEvent) bool {
	event = domain.Concrete(event)
	if event == nil {
		return false
	}
	monitor, ok := s.store.Get(event.Header().AssessmentID)
	if !ok {
		return false
	}
	return s.apply(monitor, event)
}

// Snapshot returns the live stats of an open monitor.
func (s *MonitorService) Snapshot(assessmentID int64) (domain.LiveStats, error) {
	monitor, ok := s.store.Get(assessmentID)
	if !ok {
		return domain.LiveStats{}, domain.ErrMonitorNotFound
	}
	return monitor.Snapshot(), nil
}

// Subscribe streams live stats of an open monitor.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *MonitorService) Subscribe(_ context.Context, assessmentID int64) (<-chan domain.LiveStats, func(), error) {
	monitor, ok := s.store.Get(assessmentID)
	if !ok {
		return nil, nil, domain.ErrMonitorNotFound
	}
	return monitor.Subscribe()
}

func (s *MonitorService) consume(ctx context.Context, sess *monitorSession, stream <-chan domain.LifecycleEvent) {
	defer close(sess.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			s.apply(sess.monitor, event)
		}
	}
}

// apply never lets one bad event stop the stream.
func (s *MonitorService) apply(monitor *Monitor, event domain.LifecycleEvent) (applied bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("monitor dropped event",
				"assessment_id", monitor.AssessmentID(),
				"panic", r)
			applied = false
		}
	}()
	return monitor.Apply(event)
}
