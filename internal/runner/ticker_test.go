package runner

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hperssn/benchtop/internal/domain"
)

func newTickerSession(t *testing.T, fc *clockwork.FakeClock) *Session {
	t.Helper()
	def, err := domain.NewChecklist("c", "", "", "", 0, []domain.StepDefinition{
		{Order: 1, TimerSeconds: domain.Seconds(2)},
		{Order: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewSession("tick", def, SessionOptions{Clock: fc})
}

func mustArmed(t *testing.T, s *Session, want bool) {
	t.Helper()
	armed, err := s.timerArmed()
	if err != nil {
		t.Fatalf("timerArmed: %v", err)
	}
	if armed != want {
		t.Fatalf("ticker armed = %v, want %v", armed, want)
	}
}

func TestTickerOnlyWhileRunning(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := newTickerSession(t, fc)
	defer s.Close()

	mustArmed(t, s, false)

	if ok, _ := s.StartTimer(2, 10); ok {
		t.Fatalf("started a timer on a step without one")
	}
	mustArmed(t, s, false)

	if ok, _ := s.StartTimer(1, 2); !ok {
		t.Fatalf("StartTimer failed")
	}
	mustArmed(t, s, true)

	if ok, _ := s.StopTimer(); !ok {
		t.Fatalf("StopTimer failed")
	}
	mustArmed(t, s, false)
}

func TestTickerTornDownOnFinish(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := newTickerSession(t, fc)
	defer s.Close()

	events, cancel := s.Subscribe(16)
	defer cancel()

	s.StartTimer(1, 2)
	<-events

	deadline := time.After(2 * time.Second)
	for {
		fc.Advance(time.Second)
		select {
		case ev := <-events:
			if ev.State != nil && !ev.State.TimerRunning {
				mustArmed(t, s, false)
				return
			}
		case <-deadline:
			t.Fatalf("timer never finished")
		}
	}
}

func TestTickerTornDownOnClose(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := newTickerSession(t, fc)

	s.StartTimer(1, 2)
	mustArmed(t, s, true)

	s.Close()
	if s.ticker != nil {
		t.Fatalf("ticker still set after Close")
	}
}
