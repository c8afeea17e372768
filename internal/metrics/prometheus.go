package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	sessionsOpened  prom.Counter
	sessionsClosed  *prom.CounterVec
	openSessions    prom.Gauge
	sessionDuration *prom.HistogramVec
	stepsToggled    *prom.CounterVec
	timerEvents     *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		sessionsOpened: prom.NewCounter(prom.CounterOpts{
			Namespace: "benchtop",
			Name:      "sessions_opened_total",
			Help:      "Checklist sessions opened",
		}),
		sessionsClosed: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "benchtop",
			Name:      "sessions_closed_total",
			Help:      "Checklist sessions closed by reason",
		}, []string{"reason"}),
		openSessions: prom.NewGauge(prom.GaugeOpts{
			Namespace: "benchtop",
			Name:      "open_sessions",
			Help:      "Checklist sessions currently open",
		}),
		sessionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "benchtop",
			Name:      "session_duration_seconds",
			Help:      "Time a checklist stayed open",
			Buckets:   []float64{60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"all_complete"}),
		stepsToggled: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "benchtop",
			Name:      "steps_toggled_total",
			Help:      "Step completion toggles by resulting state",
		}, []string{"state"}),
		timerEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "benchtop",
			Name:      "timer_events_total",
			Help:      "Step timer transitions",
		}, []string{"event"}),
	}
	reg.MustRegister(pr.sessionsOpened, pr.sessionsClosed, pr.openSessions, pr.sessionDuration, pr.stepsToggled, pr.timerEvents)
	return pr
}

func (p *PrometheusRecorder) IncSessionOpened() { p.sessionsOpened.Inc() }

func (p *PrometheusRecorder) IncSessionClosed(reason string) {
	p.sessionsClosed.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) SetOpenSessions(n int) { p.openSessions.Set(float64(n)) }

func (p *PrometheusRecorder) ObserveSessionDuration(d time.Duration, allComplete bool) {
	label := "false"
	if allComplete {
		label = "true"
	}
	p.sessionDuration.WithLabelValues(label).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepToggled(completed bool) {
	state := "incomplete"
	if completed {
		state = "complete"
	}
	p.stepsToggled.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) IncTimerStarted()  { p.timerEvents.WithLabelValues("started").Inc() }
func (p *PrometheusRecorder) IncTimerStopped()  { p.timerEvents.WithLabelValues("stopped").Inc() }
func (p *PrometheusRecorder) IncTimerFinished() { p.timerEvents.WithLabelValues("finished").Inc() }

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg prom.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
