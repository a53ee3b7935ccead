package memory

import (
	"sync"

	"assessment-monitor-service/internal/app"
	"assessment-monitor-service/internal/domain"
)

// MonitorStore is an in-memory implementation of app.MonitorStore.
type MonitorStore struct {
	mu       sync.RWMutex
	monitors map[int64]*app.Monitor
}

func NewMonitorStore() *MonitorStore {
	return &MonitorStore{
		monitors: make(map[int64]*app.Monitor),
	}
}

func (s *MonitorStore) GetOrCreate(assessmentID int64, roster domain.Roster) *app.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if monitor, ok := s.monitors[assessmentID]; ok {
		return monitor
	}
	monitor := app.NewMonitor(assessmentID, roster)
	s.monitors[assessmentID] = monitor
	return monitor
}

func (s *MonitorStore) Get(assessmentID int64) (*app.Monitor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	monitor, ok := s.monitors[assessmentID]
	return monitor, ok
}

func (s *MonitorStore) Delete(assessmentID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.monitors, assessmentID)
}
