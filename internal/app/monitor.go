package app

import (
	"sort"
	"sync"
	"time"

	"assessment-monitor-service/internal/domain"
)

const (
	defaultSnapshotBuffer = 8
	// recent event ids remembered per student for duplicate suppression
	eventWindowSize = 256
)

// Monitor is the live, in-memory view of one assessment. Every event for the assessment
// funnels through Apply under a single mutex; readers get copies.
//
// Per-student transitions are monotonic: NotStarted -> InProgress -> Completed. Events may
// arrive duplicated or out of order, so nothing ever moves a student backwards.
type Monitor struct {
	assessmentID int64
	now          func() time.Time
	buffer       int

	mu          sync.RWMutex
	closed      bool
	roster      map[int64]string
	students    map[int64]*trackedStudent
	questions   map[int]*questionTally
	subscribers map[chan domain.LiveStats]struct{}
	updatedAt   time.Time
}

type trackedStudent struct {
	progress    domain.StudentProgress
	submittedAt time.Time
	seen        eventWindow
}

// eventWindow remembers the last eventWindowSize ids in a ring.
type eventWindow struct {
	ids   map[string]struct{}
	order []string
	next  int
}

// add records id and reports false when it is already in the window.
func (w *eventWindow) add(id string) bool {
	if _, dup := w.ids[id]; dup {
		return false
	}
	if w.ids == nil {
		w.ids = make(map[string]struct{}, eventWindowSize)
	}
	if len(w.order) < eventWindowSize {
		w.order = append(w.order, id)
	} else {
		delete(w.ids, w.order[w.next])
		w.order[w.next] = id
		w.next = (w.next + 1) % eventWindowSize
	}
	w.ids[id] = struct{}{}
	return true
}

type questionTally struct {
	attempts int
	correct  int
}

// NewMonitor creates a monitor for assessmentID using roster as the enrolled set.
func NewMonitor(assessmentID int64, roster domain.Roster) *Monitor {
	return NewMonitorWithClock(assessmentID, roster, time.Now)
}

// NewMonitorWithClock allows deterministic timestamps in tests.
func NewMonitorWithClock(assessmentID int64, roster domain.Roster, now func() time.Time) *Monitor {
	names := make(map[int64]string, len(roster.Students))
	for _, st := range roster.Students {
		names[st.ID] = st.Name
	}
	return &Monitor{
		assessmentID: assessmentID,
		now:          now,
		buffer:       defaultSnapshotBuffer,
		roster:       names,
		students:     make(map[int64]*trackedStudent),
		questions:    make(map[int]*questionTally),
		subscribers:  make(map[chan domain.LiveStats]struct{}),
		updatedAt:    now(),
	}
}

// AssessmentID returns the assessment this monitor tracks.
func (m *Monitor) AssessmentID() int64 {
	return m.assessmentID
}

// SetSnapshotBuffer sets the channel size used by later Subscribe calls.
func (m *Monitor) SetSnapshotBuffer(n int) {
	if n <= 0 {
		n = defaultSnapshotBuffer
	}
	m.mu.Lock()
	m.buffer = n
	m.mu.Unlock()
}

// Apply folds one event into the live state and reports whether anything changed.
// Events for another assessment, recently seen event ids and events after Close are dropped.
func (m *Monitor) Apply(event domain.LifecycleEvent) bool {
	event = domain.Concrete(event)
	if event == nil {
		return false
	}
	h := event.Header()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || h.AssessmentID != m.assessmentID {
		return false
	}

	st := m.trackLocked(h)
	if h.EventID != "" && !st.seen.add(h.EventID) {
		return false
	}

	switch e := event.(type) {
	case domain.StartEvent:
		st.progress.HasStarted = true
	case domain.AnswerEvent:
		m.applyAnswerLocked(st, e)
	case domain.SubmitEvent:
		applySubmit(st, e)
	default:
		return false
	}
	m.updatedAt = m.now()
	m.broadcastLocked()
	return true
}

func (m *Monitor) applyAnswerLocked(st *trackedStudent, e domain.AnswerEvent) {
	if e.QuestionIndex >= 0 {
		tally, ok := m.questions[e.QuestionIndex]
		if !ok {
			tally = &questionTally{}
			m.questions[e.QuestionIndex] = tally
		}
		tally.attempts++
		if e.IsCorrect {
			tally.correct++
		}
	}

	// A lost Start still leaves an answering student in progress.
	st.progress.HasStarted = true
	if st.progress.HasCompleted {
		return
	}
	st.progress.QuestionsAnswered++
	if e.IsCorrect {
		st.progress.CorrectAnswers++
	}
}

func applySubmit(st *trackedStudent, e domain.SubmitEvent) {
	st.progress.HasStarted = true
	if st.progress.HasCompleted && e.Timestamp.Before(st.submittedAt) {
		return
	}
	st.progress.HasCompleted = true
	st.submittedAt = e.Timestamp

	answered := max(e.TotalQuestions, 0)
	correct := min(max(e.CorrectAnswers, 0), answered)
	score := max(e.Score, 0)
	maxScore := max(e.MaxScore, 0)
	totalTime := max(e.TotalTimeSeconds, 0)

	st.progress.QuestionsAnswered = answered
	st.progress.CorrectAnswers = correct
	st.progress.Score = &score
	st.progress.MaxScore = &maxScore
	st.progress.TotalTimeSeconds = &totalTime
}

// trackLocked returns the student's entry, creating it for students missing from the roster.
func (m *Monitor) trackLocked(h domain.EventHeader) *trackedStudent {
	st, ok := m.students[h.StudentID]
	if !ok {
		st = &trackedStudent{progress: domain.StudentProgress{
			StudentID: h.StudentID,
			Name:      m.roster[h.StudentID],
		}}
		m.students[h.StudentID] = st
	}
	if h.StudentName != "" {
		st.progress.Name = h.StudentName
	}
	if h.Timestamp.After(st.progress.LastActivity) {
		st.progress.LastActivity = h.Timestamp
	}
	return st
}

// Snapshot returns a consistent copy of the current state with derived rates.
func (m *Monitor) Snapshot() domain.LiveStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every applied event,
// starting with the current one. Slow readers only see the most recent snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (m *Monitor) Subscribe() (<-chan domain.LiveStats, func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, domain.ErrMonitorClosed
	}
	ch := make(chan domain.LiveStats, m.buffer)
	m.subscribers[ch] = struct{}{}
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel, nil
}

// Close stops the monitor: later events are dropped, subscribers are closed and state is released.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for ch := range m.subscribers {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.students = make(map[int64]*trackedStudent)
	m.questions = make(map[int]*questionTally)
}

// Closed reports whether Close was called.
func (m *Monitor) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Monitor) broadcastLocked() {
	if len(m.subscribers) == 0 {
		return
	}
	stats := m.snapshotLocked()
	for ch := range m.subscribers {
		select {
		case ch <- stats:
		default:
			// drop the oldest pending snapshot so a slow reader never blocks Apply
			select {
			case <-ch:
			default:
			}
			ch <- stats
		}
	}
}

func (m *Monitor) snapshotLocked() domain.LiveStats {
	stats := domain.LiveStats{
		AssessmentID: m.assessmentID,
		Students:     make([]domain.StudentProgress, 0, len(m.students)),
		Questions:    make([]domain.QuestionStat, 0, len(m.questions)),
		UpdatedAt:    m.updatedAt,
	}

	enrolled := len(m.roster)
	started, completed := 0, 0
	var percentSum float64
	for id, st := range m.students {
		if _, onRoster := m.roster[id]; !onRoster {
			enrolled++
		}
		p := copyProgress(st.progress)
		if p.HasStarted {
			started++
		}
		if p.HasCompleted {
			completed++
			if p.Score != nil && p.MaxScore != nil && *p.MaxScore > 0 {
				percentSum += float64(*p.Score) / float64(*p.MaxScore) * 100
			}
		}
		stats.Students = append(stats.Students, p)
	}
	sort.Slice(stats.Students, func(i, j int) bool {
		if stats.Students[i].Name != stats.Students[j].Name {
			return stats.Students[i].Name < stats.Students[j].Name
		}
		return stats.Students[i].StudentID < stats.Students[j].StudentID
	})

	stats.Enrolled = enrolled
	stats.ParticipationRate = percent(started, enrolled)
	stats.CompletionRate = percent(completed, enrolled)
	if completed > 0 {
		stats.AverageScorePercent = percentSum / float64(completed)
	}

	for index, tally := range m.questions {
		stats.Questions = append(stats.Questions, domain.QuestionStat{
			QuestionIndex: index,
			Attempts:      tally.attempts,
			Correct:       tally.correct,
			SuccessRate:   percent(tally.correct, tally.attempts),
		})
	}
	sort.Slice(stats.Questions, func(i, j int) bool {
		return stats.Questions[i].QuestionIndex < stats.Questions[j].QuestionIndex
	})
	return stats
}

func copyProgress(p domain.StudentProgress) domain.StudentProgress {
	out := p
	if p.Score != nil {
		v := *p.Score
		out.Score = &v
	}
	if p.MaxScore != nil {
		v := *p.MaxScore
		out.MaxScore = &v
	}
	if p.TotalTimeSeconds != nil {
		v := *p.TotalTimeSeconds
		out.TotalTimeSeconds = &v
	}
	return out
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
