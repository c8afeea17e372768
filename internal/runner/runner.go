package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hperssn/benchtop/internal/domain"
	"github.com/hperssn/benchtop/internal/logfields"
	"github.com/hperssn/benchtop/internal/metrics"
)

const tickInterval = time.Second

type SessionOptions struct {
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Recorder metrics.Recorder

	// OnTimerFinished runs on the session goroutine and must not block.
	OnTimerFinished func(TimerFinished)

	Technician string
}

// Session runs one ChecklistRunner on its own goroutine. Every mutation and
// every clock tick is applied there, one at a time. The one-second ticker
// only exists while the countdown is running.
type Session struct {
	id         string
	def        *domain.Checklist
	technician string
	openedAt   time.Time

	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder
	onFinish func(TimerFinished)

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan func()
	done   chan struct{}

	// owned by the session goroutine
	runner         *ChecklistRunner
	ticker         clockwork.Ticker
	lastActivity   time.Time
	timersFinished int
	final          Snapshot

	subMu      sync.Mutex
	subs       map[uint64]chan Event
	nextSub    uint64
	subsClosed bool
}

func NewSession(id string, def *domain.Checklist, opts SessionOptions) *Session {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := opts.Clock.Now()
	s := &Session{
		id:           id,
		def:          def,
		technician:   opts.Technician,
		openedAt:     now,
		clock:        opts.Clock,
		logger:       opts.Logger.With(logfields.SessionID(id), logfields.ChecklistID(def.ID)),
		recorder:     opts.Recorder,
		onFinish:     opts.OnTimerFinished,
		ctx:          ctx,
		cancel:       cancel,
		cmds:         make(chan func()),
		done:         make(chan struct{}),
		runner:       NewChecklistRunner(def),
		lastActivity: now,
		subs:         make(map[uint64]chan Event),
	}

	go s.run()
	return s
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) Checklist() *domain.Checklist { return s.def }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) run() {
	defer close(s.done)
	defer s.closeSubscribers()

	for {
		select {
		case fn := <-s.cmds:
			fn()
			// A command may close the session; stop before taking another.
			if s.ctx.Err() != nil {
				s.shutdown()
				return
			}

		case <-s.tickC():
			s.handleTick()

		case <-s.ctx.Done():
			s.shutdown()
			return
		}
	}
}

func (s *Session) shutdown() {
	s.disarm()
	s.final = s.snapshot()
}

func (s *Session) tickC() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.Chan()
}

// arm restarts the ticker so the first tick lands one full interval from now.
func (s *Session) arm() {
	s.disarm()
	s.ticker = s.clock.NewTicker(tickInterval)
}

func (s *Session) disarm() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Session) handleTick() {
	step, finished := s.runner.Tick()
	if finished {
		s.disarm()
		s.timersFinished++
		s.recorder.IncTimerFinished()
		s.logger.Info("Step timer finished", logfields.Step(step))
	}

	s.publishState()

	if finished {
		now := s.clock.Now()
		s.publish(Event{Type: EventTimerFinished, SessionID: s.id, Step: step, At: now})
		if s.onFinish != nil {
			st, _ := s.def.Step(step)
			s.onFinish(TimerFinished{
				SessionID:   s.id,
				ChecklistID: s.def.ID,
				Step:        step,
				Title:       st.Title,
				Technician:  s.technician,
				At:          now,
			})
		}
	}
}

// do runs fn on the session goroutine and waits for it to finish.
func (s *Session) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrSessionClosed
	}
	<-finished
	return nil
}

func (s *Session) ToggleStep(order int) (bool, error) {
	var applied bool
	err := s.do(func() {
		applied = s.runner.ToggleStep(order)
		if !applied {
			return
		}
		s.touch()
		done := s.runner.IsComplete(order)
		s.recorder.IncStepToggled(done)
		s.logger.Debug("Step toggled", logfields.Step(order), slog.Bool("complete", done))
		s.publishState()
	})
	return applied, err
}

// StartTimer starts or replaces the countdown on order.
func (s *Session) StartTimer(order, seconds int) (bool, error) {
	var applied bool
	err := s.do(func() {
		applied = s.startTimer(order, seconds)
	})
	return applied, err
}

// ResumeTimer starts order with its leftover time if it is the paused active
// step, otherwise with its declared duration.
func (s *Session) ResumeTimer(order int) (bool, error) {
	var applied bool
	err := s.do(func() {
		applied = s.startTimer(order, s.runner.ResumeSeconds(order))
	})
	return applied, err
}

// StartDeclaredTimer is StartTimer restricted to the step's declared
// duration or the leftover of the paused active step.
func (s *Session) StartDeclaredTimer(order, seconds int) (bool, error) {
	var applied bool
	err := s.do(func() {
		if !s.runner.AcceptsDuration(order, seconds) {
			return
		}
		applied = s.startTimer(order, seconds)
	})
	return applied, err
}

func (s *Session) startTimer(order, seconds int) bool {
	if !s.runner.StartTimer(order, seconds) {
		return false
	}
	s.arm()
	s.touch()
	s.recorder.IncTimerStarted()
	s.logger.Debug("Step timer started", logfields.Step(order), logfields.Seconds(seconds))
	s.publishState()
	return true
}

func (s *Session) StopTimer() (bool, error) {
	var applied bool
	err := s.do(func() {
		applied = s.runner.StopTimer()
		if !applied {
			return
		}
		s.disarm()
		s.touch()
		s.recorder.IncTimerStopped()
		s.logger.Debug("Step timer paused", logfields.Seconds(s.runner.RemainingSeconds()))
		s.publishState()
	})
	return applied, err
}

func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.do(func() {
		snap = s.snapshot()
	})
	return snap, err
}

// Close stops the session goroutine and its ticker immediately and returns
// the final state. Calling Close more than once is safe.
func (s *Session) Close() Snapshot {
	s.cancel()
	<-s.done
	return s.final
}

// closeIfIdle closes the session when its timer is not running and it has
// seen no activity after cutoff. The check and the close happen in one
// command, so a concurrent mutation either lands first and keeps the session
// open or finds it closed.
func (s *Session) closeIfIdle(cutoff time.Time) bool {
	var idle bool
	err := s.do(func() {
		if s.runner.TimerRunning() || s.lastActivity.After(cutoff) {
			return
		}
		idle = true
		s.cancel()
	})
	return err == nil && idle
}

// timerArmed reports whether the countdown ticker exists.
func (s *Session) timerArmed() (bool, error) {
	var armed bool
	err := s.do(func() {
		armed = s.ticker != nil
	})
	return armed, err
}

func (s *Session) touch() {
	s.lastActivity = s.clock.Now()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:        s.id,
		ChecklistID:      s.def.ID,
		ChecklistName:    s.def.Name,
		Technician:       s.technician,
		CompletedSteps:   s.runner.CompletedSteps(),
		RemainingSeconds: s.runner.RemainingSeconds(),
		TimerRunning:     s.runner.TimerRunning(),
		Progress:         s.runner.Progress(),
		AllComplete:      s.runner.AllStepsComplete(),
		TimersFinished:   s.timersFinished,
		OpenedAt:         s.openedAt,
		LastActivity:     s.lastActivity,
	}
	if order, ok := s.runner.ActiveStep(); ok {
		snap.ActiveStep = &order
	}
	return snap
}

// Subscribe returns a channel of session events and a function that cancels
// the subscription. Events are dropped for a subscriber whose buffer is full.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subsClosed {
		close(ch)
		return ch, func() {}
	}

	s.nextSub++
	id := s.nextSub
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Watch subscribes and returns the state at the moment of subscribing. Every
// event on the channel is newer than the returned snapshot.
func (s *Session) Watch(buffer int) (Snapshot, <-chan Event, func(), error) {
	var (
		snap   Snapshot
		events <-chan Event
		cancel func()
	)
	err := s.do(func() {
		snap = s.snapshot()
		events, cancel = s.Subscribe(buffer)
	})
	if err != nil {
		return Snapshot{}, nil, nil, err
	}
	return snap, events, cancel, nil
}

func (s *Session) publishState() {
	snap := s.snapshot()
	s.publish(Event{Type: EventState, SessionID: s.id, State: &snap, At: s.clock.Now()})
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("Dropping session event for slow subscriber",
				slog.Uint64("subscriber", id),
				slog.String("event", string(ev.Type)))
		}
	}
}

func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsClosed = true
}
