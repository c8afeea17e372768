package runner

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/hperssn/benchtop/internal/domain"
	"github.com/hperssn/benchtop/internal/logfields"
	"github.com/hperssn/benchtop/internal/metrics"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
)

const historyTimeout = 5 * time.Second

// Summary describes a session after it was closed.
type Summary struct {
	SessionID      string    `json:"session_id"`
	ChecklistID    string    `json:"checklist_id"`
	ChecklistName  string    `json:"checklist_name"`
	Technician     string    `json:"technician,omitempty"`
	OpenedAt       time.Time `json:"opened_at"`
	ClosedAt       time.Time `json:"closed_at"`
	CompletedSteps int       `json:"completed_steps"`
	TotalSteps     int       `json:"total_steps"`
	TimersFinished int       `json:"timers_finished"`
	AllComplete    bool      `json:"all_complete"`
	Reason         string    `json:"reason"`
}

// HistorySink stores summaries of closed sessions.
type HistorySink interface {
	RecordSession(ctx context.Context, s Summary) error
}

type ManagerOptions struct {
	Clock           clockwork.Clock
	Logger          *slog.Logger
	Recorder        metrics.Recorder
	History         HistorySink
	OnTimerFinished func(TimerFinished)

	// IdleTimeout is how long a session without a running timer may go
	// without host activity before SweepIdle closes it. Zero disables it.
	IdleTimeout time.Duration
}

// SessionManager tracks the open checklist sessions. A checklist has at most
// one open session; opening it again discards the previous one.
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	byChecklist map[string]string

	opts ManagerOptions
}

func NewSessionManager(opts ManagerOptions) *SessionManager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		byChecklist: make(map[string]string),
		opts:        opts,
	}
}

// Open starts a fresh session for def.
func (m *SessionManager) Open(def *domain.Checklist, technician string) *Session {
	s := NewSession(uuid.NewString(), def, SessionOptions{
		Clock:           m.opts.Clock,
		Logger:          m.opts.Logger,
		Recorder:        m.opts.Recorder,
		OnTimerFinished: m.opts.OnTimerFinished,
		Technician:      technician,
	})

	m.mu.Lock()
	var previous *Session
	if oldID, ok := m.byChecklist[def.ID]; ok {
		previous = m.sessions[oldID]
		delete(m.sessions, oldID)
	}
	m.sessions[s.ID()] = s
	m.byChecklist[def.ID] = s.ID()
	open := len(m.sessions)
	m.mu.Unlock()

	if previous != nil {
		m.finish(previous, metrics.ReasonReopened)
	}

	m.opts.Recorder.IncSessionOpened()
	m.opts.Recorder.SetOpenSessions(open)
	m.opts.Logger.Info("Checklist session opened",
		logfields.SessionID(s.ID()),
		logfields.ChecklistID(def.ID),
		logfields.Technician(technician))

	return s
}

func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	return s, ok
}

func (m *SessionManager) Close(id string) (Summary, error) {
	s, ok := m.detach(id)
	if !ok {
		return Summary{}, ErrSessionNotFound
	}
	return m.finish(s, metrics.ReasonClosed), nil
}

// CloseAll closes every open session, e.g. on shutdown.
func (m *SessionManager) CloseAll(reason string) int {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.byChecklist = make(map[string]string)
	m.mu.Unlock()

	for _, s := range all {
		m.finish(s, reason)
	}
	return len(all)
}

// List returns snapshots of the open sessions, oldest first.
func (m *SessionManager) List() []Snapshot {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	snaps := make([]Snapshot, 0, len(all))
	for _, s := range all {
		snap, err := s.Snapshot()
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].OpenedAt.Before(snaps[j].OpenedAt) })
	return snaps
}

func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SweepIdle closes sessions whose timer is not running and that saw no host
// activity for the idle timeout. It returns the number closed.
func (m *SessionManager) SweepIdle() int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.opts.Clock.Now().Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	closed := 0
	for _, s := range all {
		if !s.closeIfIdle(cutoff) {
			continue
		}
		if !m.detachSession(s) {
			// Closed or replaced concurrently; that path records it.
			continue
		}
		m.finish(s, metrics.ReasonIdle)
		closed++
	}
	return closed
}

func (m *SessionManager) detach(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	delete(m.sessions, id)
	if m.byChecklist[s.Checklist().ID] == id {
		delete(m.byChecklist, s.Checklist().ID)
	}
	return s, true
}

// detachSession removes s only if it is still the registered session for
// its id.
func (m *SessionManager) detachSession(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[s.ID()] != s {
		return false
	}
	delete(m.sessions, s.ID())
	if m.byChecklist[s.Checklist().ID] == s.ID() {
		delete(m.byChecklist, s.Checklist().ID)
	}
	return true
}

func (m *SessionManager) finish(s *Session, reason string) Summary {
	final := s.Close()
	closedAt := m.opts.Clock.Now()

	sum := Summary{
		SessionID:      final.SessionID,
		ChecklistID:    final.ChecklistID,
		ChecklistName:  final.ChecklistName,
		Technician:     final.Technician,
		OpenedAt:       final.OpenedAt,
		ClosedAt:       closedAt,
		CompletedSteps: final.Progress.Completed,
		TotalSteps:     final.Progress.Total,
		TimersFinished: final.TimersFinished,
		AllComplete:    final.AllComplete,
		Reason:         reason,
	}

	m.opts.Recorder.IncSessionClosed(reason)
	m.opts.Recorder.SetOpenSessions(m.Count())
	m.opts.Recorder.ObserveSessionDuration(closedAt.Sub(final.OpenedAt), final.AllComplete)
	m.opts.Logger.Info("Checklist session closed",
		logfields.SessionID(sum.SessionID),
		logfields.ChecklistID(sum.ChecklistID),
		logfields.Reason(reason),
		slog.String("progress", final.Progress.String()))

	if m.opts.History != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if err := m.opts.History.RecordSession(ctx, sum); err != nil {
			m.opts.Logger.Error("Failed to record session history",
				logfields.SessionID(sum.SessionID),
				logfields.Error(err))
		}
	}

	return sum
}
