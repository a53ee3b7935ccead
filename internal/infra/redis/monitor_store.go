package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"assessment-monitor-service/internal/app"
	"assessment-monitor-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// MonitorStore is a Redis-aware implementation of app.MonitorStore.
// Notes:
//   - Monitor state stays in a local map; events are applied in-process.
//   - Redis marks which assessments are being monitored by this instance so
//     operators (and other instances) can see live dashboards. The marker is
//     refreshed every ttl/2 while the monitor is registered, so it only expires
//     when this instance stops refreshing it.
type MonitorStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	monitors map[int64]*monitorEntry
}

type monitorEntry struct {
	monitor *app.Monitor
	stop    chan struct{}
	done    chan struct{}
}

func NewMonitorStore(client *redis.Client, ttl time.Duration) *MonitorStore {
	return &MonitorStore{
		client:   client,
		ttl:      ttl,
		monitors: make(map[int64]*monitorEntry),
	}
}

func (s *MonitorStore) GetOrCreate(assessmentID int64, roster domain.Roster) *app.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.monitors[assessmentID]; ok {
		return entry.monitor
	}
	entry := &monitorEntry{
		monitor: app.NewMonitor(assessmentID, roster),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.monitors[assessmentID] = entry

	key, value := s.key(assessmentID), strconv.Itoa(roster.Size())
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), key, value, s.expiry()).Err()
	go s.keepAlive(key, value, entry)
	return entry.monitor
}

func (s *MonitorStore) Get(assessmentID int64) (*app.Monitor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.monitors[assessmentID]
	if !ok {
		return nil, false
	}
	return entry.monitor, true
}

func (s *MonitorStore) Delete(assessmentID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.monitors[assessmentID]
	if !ok {
		return
	}
	delete(s.monitors, assessmentID)
	close(entry.stop)
	<-entry.done
	_ = s.client.Del(context.Background(), s.key(assessmentID)).Err()
}

func (s *MonitorStore) keepAlive(key, value string, entry *monitorEntry) {
	defer close(entry.done)
	if s.ttl <= 0 {
		// no expiry; the key lives until Delete
		<-entry.stop
		return
	}
	interval := s.ttl / 2
	if interval <= 0 {
		interval = s.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-entry.stop:
			return
		case <-ticker.C:
			_ = s.client.Set(context.Background(), key, value, s.ttl).Err()
		}
	}
}

func (s *MonitorStore) expiry() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return s.ttl
}

func (s *MonitorStore) key(assessmentID int64) string {
	return "assessment:monitor:" + strconv.FormatInt(assessmentID, 10)
}
