package runner

import (
	"fmt"

	"github.com/hperssn/benchtop/internal/domain"
)

// ChecklistRunner holds the in-progress state of one checklist: which steps
// are done and the single step countdown. It is not safe for concurrent use;
// Session confines it to one goroutine.
//
// Invalid input never fails. Operations that do not apply return false and
// leave the state untouched.
type ChecklistRunner struct {
	def *domain.Checklist

	completed map[int]struct{}

	active    int
	hasActive bool
	remaining int
	running   bool
}

func NewChecklistRunner(def *domain.Checklist) *ChecklistRunner {
	return &ChecklistRunner{
		def:       def,
		completed: make(map[int]struct{}, len(def.Steps)),
	}
}

func (r *ChecklistRunner) Definition() *domain.Checklist {
	return r.def
}

// ToggleStep flips the completion mark of a step. The timer is untouched.
func (r *ChecklistRunner) ToggleStep(order int) bool {
	if !r.def.HasStep(order) {
		return false
	}
	if _, done := r.completed[order]; done {
		delete(r.completed, order)
	} else {
		r.completed[order] = struct{}{}
	}
	return true
}

// StartTimer makes order the active step and starts counting down from
// seconds. Any other active timer is replaced. Passing the leftover
// remaining value resumes a paused countdown.
func (r *ChecklistRunner) StartTimer(order, seconds int) bool {
	if seconds <= 0 {
		return false
	}
	st, ok := r.def.Step(order)
	if !ok || !st.HasTimer() {
		return false
	}

	r.active = order
	r.hasActive = true
	r.remaining = seconds
	r.running = true
	return true
}

// StopTimer pauses the countdown. The active step and remaining seconds are
// kept so StartTimer can resume.
func (r *ChecklistRunner) StopTimer() bool {
	if !r.running {
		return false
	}
	r.running = false
	return true
}

// Tick advances the countdown by one second. It reports the step order when
// this tick finished the timer. Ticks while paused are ignored.
func (r *ChecklistRunner) Tick() (finished int, ok bool) {
	if !r.running {
		return 0, false
	}
	if r.remaining > 1 {
		r.remaining--
		return 0, false
	}
	r.remaining = 0
	r.running = false
	return r.active, true
}

func (r *ChecklistRunner) IsComplete(order int) bool {
	_, ok := r.completed[order]
	return ok
}

// AllStepsComplete is vacuously true for a checklist with no steps.
func (r *ChecklistRunner) AllStepsComplete() bool {
	if len(r.completed) != len(r.def.Steps) {
		return false
	}
	for _, st := range r.def.Steps {
		if _, ok := r.completed[st.Order]; !ok {
			return false
		}
	}
	return true
}

func (r *ChecklistRunner) Progress() Progress {
	return Progress{Completed: len(r.completed), Total: len(r.def.Steps)}
}

// ActiveStep returns the step owning the timer, if any.
func (r *ChecklistRunner) ActiveStep() (int, bool) {
	return r.active, r.hasActive
}

func (r *ChecklistRunner) RemainingSeconds() int {
	return r.remaining
}

func (r *ChecklistRunner) TimerRunning() bool {
	return r.running
}

// CompletedSteps lists completed orders in the definition's display order.
func (r *ChecklistRunner) CompletedSteps() []int {
	out := make([]int, 0, len(r.completed))
	for _, st := range r.def.Steps {
		if _, ok := r.completed[st.Order]; ok {
			out = append(out, st.Order)
		}
	}
	return out
}

// ResumeSeconds is the value the host should pass to StartTimer for order:
// the leftover time if order is the paused active step, else its declared
// duration. Zero means the step has no timer.
func (r *ChecklistRunner) ResumeSeconds(order int) int {
	if r.hasActive && r.active == order && !r.running && r.remaining > 0 {
		return r.remaining
	}
	st, ok := r.def.Step(order)
	if !ok || !st.HasTimer() {
		return 0
	}
	return *st.TimerSeconds
}

// AcceptsDuration reports whether seconds is a value the host may start
// order with: its declared duration, or the leftover of the paused active
// step.
func (r *ChecklistRunner) AcceptsDuration(order, seconds int) bool {
	if seconds <= 0 {
		return false
	}
	if r.hasActive && r.active == order && !r.running && r.remaining == seconds {
		return true
	}
	st, ok := r.def.Step(order)
	return ok && st.HasTimer() && *st.TimerSeconds == seconds
}

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func (p Progress) String() string {
	return fmt.Sprintf("%d / %d completed", p.Completed, p.Total)
}
