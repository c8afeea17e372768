package metrics

import "time"

// Close reasons used as label values.
const (
	ReasonClosed   = "closed"
	ReasonReopened = "reopened"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
)

// Recorder receives checklist session metrics. Implementations may forward to
// Prometheus or drop everything (NoopRecorder, the default).
type Recorder interface {
	IncSessionOpened()
	IncSessionClosed(reason string)
	SetOpenSessions(n int)
	ObserveSessionDuration(d time.Duration, allComplete bool)
	IncStepToggled(completed bool)
	IncTimerStarted()
	IncTimerStopped()
	IncTimerFinished()
}

type NoopRecorder struct{}

func (NoopRecorder) IncSessionOpened()                          {}
func (NoopRecorder) IncSessionClosed(string)                    {}
func (NoopRecorder) SetOpenSessions(int)                        {}
func (NoopRecorder) ObserveSessionDuration(time.Duration, bool) {}
func (NoopRecorder) IncStepToggled(bool)                        {}
func (NoopRecorder) IncTimerStarted()                           {}
func (NoopRecorder) IncTimerStopped()                           {}
func (NoopRecorder) IncTimerFinished()                          {}
