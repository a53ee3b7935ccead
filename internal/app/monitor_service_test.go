package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assessment-monitor-service/internal/app"
	"assessment-monitor-service/internal/domain"
	"assessment-monitor-service/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// channelSource hands out one test-controlled stream per assessment.
type channelSource struct {
	mu      sync.Mutex
	streams map[int64]chan domain.LifecycleEvent
	fail    error
}

func newChannelSource() *channelSource {
	return &channelSource{streams: make(map[int64]chan domain.LifecycleEvent)}
}

func (s *channelSource) Subscribe(_ context.Context, assessmentID int64) (<-chan domain.LifecycleEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	ch := make(chan domain.LifecycleEvent, 16)
	s.streams[assessmentID] = ch
	return ch, nil
}

func (s *channelSource) push(assessmentID int64, event domain.LifecycleEvent) {
	s.mu.Lock()
	ch := s.streams[assessmentID]
	s.mu.Unlock()
	ch <- event
}

type brokenRoster struct{}

func (brokenRoster) Roster(context.Context, int64) (domain.Roster, error) {
	return domain.Roster{}, errors.New("directory offline")
}

func newMonitorService(source app.EventSource) (*app.MonitorService, fixture) {
	f := newFixture()
	return app.NewMonitorService(memory.NewMonitorStore(), f.assessments, f.directory, source, discardLogger()), f
}

func TestMonitorServiceConsumesSourceEvents(t *testing.T) {
	source := newChannelSource()
	service, _ := newMonitorService(source)
	defer service.Shutdown()

	monitor, err := service.Open(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), monitor.AssessmentID())

	source.push(1, startEvent(1, 1, baseTime))
	source.push(1, submitEvent(1, 1, 9, 10, 2, 2, baseTime.Add(time.Minute)))

	require.Eventually(t, func() bool {
		stats, err := service.Snapshot(1)
		return err == nil && stats.CompletionRate > 33 && stats.CompletionRate < 34
	}, time.Second, 10*time.Millisecond)
}

func TestMonitorServiceKeepsAssessmentsIsolated(t *testing.T) {
	source := newChannelSource()
	service, _ := newMonitorService(source)
	defer service.Shutdown()

	_, err := service.Open(context.Background(), 1)
	require.NoError(t, err)
	_, err = service.Open(context.Background(), 2)
	require.NoError(t, err)

	// misrouted event on assessment 1's stream
	source.push(1, startEvent(2, 1, baseTime))
	source.push(1, startEvent(1, 3, baseTime))
	assert.True(t, service.Dispatch(startEvent(1, 2, baseTime)))

	require.Eventually(t, func() bool {
		stats, _ := service.Snapshot(1)
		return len(stats.Students) == 2
	}, time.Second, 10*time.Millisecond)

	other, err := service.Snapshot(2)
	require.NoError(t, err)
	assert.Empty(t, other.Students)
	one, err := service.Snapshot(1)
	require.NoError(t, err)
	for _, p := range one.Students {
		assert.NotEqual(t, int64(1), p.StudentID)
	}
}

func TestMonitorServiceReferenceCounting(t *testing.T) {
	source := newChannelSource()
	service, _ := newMonitorService(source)
	ctx := context.Background()

	first, err := service.Open(ctx, 1)
	require.NoError(t, err)
	second, err := service.Open(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, first, second)

	updates, cancel, err := service.Subscribe(ctx, 1)
	require.NoError(t, err)
	defer cancel()
	<-updates

	service.Close(1)
	_, err = service.Snapshot(1)
	require.NoError(t, err, "monitor must survive while an observer remains")

	service.Close(1)
	_, err = service.Snapshot(1)
	assert.ErrorIs(t, err, domain.ErrMonitorNotFound)
	assert.True(t, first.Closed())
	_, open := <-updates
	assert.False(t, open)

	assert.False(t, service.Dispatch(startEvent(1, 1, baseTime)), "events after teardown are dropped")
	service.Close(1)
}

func TestMonitorServiceReopenStartsFresh(t *testing.T) {
	service, _ := newMonitorService(nil)
	ctx := context.Background()

	_, err := service.Open(ctx, 1)
	require.NoError(t, err)
	require.True(t, service.Dispatch(startEvent(1, 1, baseTime)))
	service.Close(1)

	_, err = service.Open(ctx, 1)
	require.NoError(t, err)
	defer service.Close(1)
	stats, err := service.Snapshot(1)
	require.NoError(t, err)
	assert.Empty(t, stats.Students)
}

func TestMonitorServiceOpenErrors(t *testing.T) {
	source := newChannelSource()
	service, _ := newMonitorService(source)

	_, err := service.Open(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrAssessmentNotFound)

	source.fail = errors.New("broker down")
	_, err = service.Open(context.Background(), 1)
	require.Error(t, err)
	_, err = service.Snapshot(1)
	assert.ErrorIs(t, err, domain.ErrMonitorNotFound)

	_, _, err = service.Subscribe(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrMonitorNotFound)
}

func TestMonitorServiceDegradesWithoutRoster(t *testing.T) {
	f := newFixture()
	service := app.NewMonitorService(memory.NewMonitorStore(), f.assessments, brokenRoster{}, nil, discardLogger())
	defer service.Shutdown()

	_, err := service.Open(context.Background(), 1)
	require.NoError(t, err)
	stats, err := service.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Enrolled)
	assert.Zero(t, stats.ParticipationRate)

	service.Dispatch(startEvent(1, 1, baseTime))
	stats, err = service.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Enrolled)
	assert.InDelta(t, 100.0, stats.ParticipationRate, 1e-9)
}

func TestMonitorServiceShutdownStopsConsumers(t *testing.T) {
	source := newChannelSource()
	service, _ := newMonitorService(source)
	for _, id := range []int64{1, 2} {
		_, err := service.Open(context.Background(), id)
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		service.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("shutdown did not wait for consumers to stop")
	}
	_, err := service.Snapshot(2)
	assert.ErrorIs(t, err, domain.ErrMonitorNotFound)
}

// gatedStore holds the first Delete until release is closed.
type gatedStore struct {
	*memory.MonitorStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MonitorStore: memory.NewMonitorStore(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (s *gatedStore) Delete(assessmentID int64) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	s.MonitorStore.Delete(assessmentID)
}

func TestMonitorServiceReopenDuringTeardown(t *testing.T) {
	f := newFixture()
	store := newGatedStore()
	service := app.NewMonitorService(store, f.assessments, f.directory, nil, discardLogger())
	defer service.Shutdown()
	ctx := context.Background()

	_, err := service.Open(ctx, 1)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		service.Close(1)
		close(closed)
	}()
	<-store.entered

	type opened struct {
		monitor *app.Monitor
		err     error
	}
	reopened := make(chan opened, 1)
	go func() {
		m, err := service.Open(ctx, 1)
		reopened <- opened{m, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	<-closed

	var got opened
	select {
	case got = <-reopened:
	case <-time.After(2 * time.Second):
		t.Fatalf("reopen did not finish")
	}
	require.NoError(t, got.err)
	assert.False(t, got.monitor.Closed(), "reopened monitor must be live")

	assert.True(t, service.Dispatch(startEvent(1, 1, baseTime)))
	stats, err := service.Snapshot(1)
	require.NoError(t, err)
	assert.Len(t, stats.Students, 1)
	updates, cancel, err := service.Subscribe(ctx, 1)
	require.NoError(t, err)
	defer cancel()
	assert.Len(t, (<-updates).Students, 1)
}

func TestMonitorServiceReplacesClosedMonitorInStore(t *testing.T) {
	f := newFixture()
	store := memory.NewMonitorStore()
	stale := store.GetOrCreate(1, sampleRoster())
	stale.Close()
	service := app.NewMonitorService(store, f.assessments, f.directory, nil, discardLogger())
	defer service.Shutdown()

	monitor, err := service.Open(context.Background(), 1)
	require.NoError(t, err)
	assert.NotSame(t, stale, monitor)
	assert.False(t, monitor.Closed())
	assert.True(t, service.Dispatch(startEvent(1, 2, baseTime)))
}
