package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/benchtop/internal/domain"
	"github.com/hperssn/benchtop/internal/metrics"
	"github.com/hperssn/benchtop/internal/runner"
)

type memoryHistory struct {
	mu        sync.Mutex
	summaries []runner.Summary
}

func (h *memoryHistory) RecordSession(_ context.Context, s runner.Summary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summaries = append(h.summaries, s)
	return nil
}

func (h *memoryHistory) all() []runner.Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]runner.Summary(nil), h.summaries...)
}

func TestSessionManager_OpenAndGet(t *testing.T) {
	m := runner.NewSessionManager(runner.ManagerOptions{Clock: clockwork.NewFakeClock()})
	defer m.CloseAll(metrics.ReasonShutdown)

	s := m.Open(twoStepChecklist(t), "sam")
	require.NotEmpty(t, s.ID())

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, 1, m.Count())

	snap, err := got.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "sam", snap.Technician)
}

func TestSessionManager_ReopenStartsFresh(t *testing.T) {
	history := &memoryHistory{}
	m := runner.NewSessionManager(runner.ManagerOptions{
		Clock:   clockwork.NewFakeClock(),
		History: history,
	})
	defer m.CloseAll(metrics.ReasonShutdown)

	def := twoStepChecklist(t)
	first := m.Open(def, "")
	_, err := first.ToggleStep(1)
	require.NoError(t, err)
	_, err = first.StartTimer(2, 30)
	require.NoError(t, err)

	second := m.Open(def, "")
	require.NotEqual(t, first.ID(), second.ID())

	_, ok := m.Get(first.ID())
	assert.False(t, ok, "previous session should be discarded")
	_, err = first.Snapshot()
	assert.ErrorIs(t, err, runner.ErrSessionClosed)

	snap, err := second.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.CompletedSteps)
	assert.Nil(t, snap.ActiveStep)
	assert.False(t, snap.TimerRunning)
	assert.Equal(t, 1, m.Count())

	recorded := history.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, first.ID(), recorded[0].SessionID)
	assert.Equal(t, metrics.ReasonReopened, recorded[0].Reason)
	assert.Equal(t, 1, recorded[0].CompletedSteps)
	assert.Equal(t, 2, recorded[0].TotalSteps)
}

func TestSessionManager_Close(t *testing.T) {
	history := &memoryHistory{}
	m := runner.NewSessionManager(runner.ManagerOptions{
		Clock:   clockwork.NewFakeClock(),
		History: history,
	})

	s := m.Open(twoStepChecklist(t), "")
	_, _ = s.ToggleStep(1)
	_, _ = s.ToggleStep(2)

	sum, err := m.Close(s.ID())
	require.NoError(t, err)
	assert.True(t, sum.AllComplete)
	assert.Equal(t, metrics.ReasonClosed, sum.Reason)

	_, ok := m.Get(s.ID())
	assert.False(t, ok)
	assert.Len(t, history.all(), 1)

	select {
	case <-s.Done():
	default:
		t.Fatalf("closed session goroutine still running")
	}
}

func TestSessionManager_CloseMissing(t *testing.T) {
	m := runner.NewSessionManager(runner.ManagerOptions{})

	_, err := m.Close("missing")
	assert.ErrorIs(t, err, runner.ErrSessionNotFound)
}

func TestSessionManager_SweepIdle(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := runner.NewSessionManager(runner.ManagerOptions{
		Clock:       fc,
		IdleTimeout: 10 * time.Minute,
	})
	defer m.CloseAll(metrics.ReasonShutdown)

	longTimer, err := domain.NewChecklist("cure", "Adhesive cure", "", "", 0, []domain.StepDefinition{
		{Order: 1, TimerSeconds: domain.Seconds(3600)},
	})
	require.NoError(t, err)

	idle := m.Open(twoStepChecklist(t), "")
	busy := m.Open(longTimer, "")
	_, err = busy.StartTimer(1, 3600)
	require.NoError(t, err)

	assert.Equal(t, 0, m.SweepIdle())

	fc.Advance(11 * time.Minute)

	assert.Equal(t, 1, m.SweepIdle())
	_, ok := m.Get(idle.ID())
	assert.False(t, ok)
	_, ok = m.Get(busy.ID())
	assert.True(t, ok)
}

func TestSessionManager_SweepRacesTimerStart(t *testing.T) {
	for i := 0; i < 200; i++ {
		fc := clockwork.NewFakeClock()
		history := &memoryHistory{}
		m := runner.NewSessionManager(runner.ManagerOptions{
			Clock:       fc,
			History:     history,
			IdleTimeout: time.Minute,
		})

		s := m.Open(timedChecklist(t), "")
		fc.Advance(2 * time.Minute)

		type result struct {
			applied bool
			err     error
		}
		started := make(chan result, 1)
		go func() {
			ok, err := s.StartTimer(1, 5)
			started <- result{ok, err}
		}()

		swept := m.SweepIdle()
		res := <-started

		if res.err == nil {
			require.True(t, res.applied)
			require.Equal(t, 0, swept, "session with a running timer was swept")
			snap, err := s.Snapshot()
			require.NoError(t, err)
			require.True(t, snap.TimerRunning)
			_, ok := m.Get(s.ID())
			require.True(t, ok)
		} else {
			require.ErrorIs(t, res.err, runner.ErrSessionClosed)
			require.Equal(t, 1, swept)
			sums := history.all()
			require.Len(t, sums, 1)
			require.Equal(t, metrics.ReasonIdle, sums[0].Reason)
		}

		m.CloseAll(metrics.ReasonShutdown)
	}
}

func TestSessionManager_SweepDisabled(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := runner.NewSessionManager(runner.ManagerOptions{Clock: fc})
	defer m.CloseAll(metrics.ReasonShutdown)

	m.Open(twoStepChecklist(t), "")
	fc.Advance(24 * time.Hour)

	assert.Equal(t, 0, m.SweepIdle())
	assert.Equal(t, 1, m.Count())
}

func TestSessionManager_List(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := runner.NewSessionManager(runner.ManagerOptions{Clock: fc})
	defer m.CloseAll(metrics.ReasonShutdown)

	a := m.Open(twoStepChecklist(t), "")
	fc.Advance(time.Minute)
	b := m.Open(timedChecklist(t), "")

	snaps := m.List()
	require.Len(t, snaps, 2)
	assert.Equal(t, a.ID(), snaps[0].SessionID)
	assert.Equal(t, b.ID(), snaps[1].SessionID)

	assert.Equal(t, 2, m.CloseAll(metrics.ReasonShutdown))
	assert.Empty(t, m.List())
}
