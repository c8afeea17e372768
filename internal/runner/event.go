package runner

import "time"

type EventType string

const (
	EventState         EventType = "state"
	EventTimerFinished EventType = "timer_finished"
)

// Event is delivered to session subscribers. State events carry a snapshot;
// timer_finished events carry the step whose countdown reached zero.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Step      int       `json:"step,omitempty"`
	State     *Snapshot `json:"state,omitempty"`
	At        time.Time `json:"at"`
}

// TimerFinished is passed to the session's finish hook.
type TimerFinished struct {
	SessionID   string
	ChecklistID string
	Step        int
	Title       string
	Technician  string
	At          time.Time
}

// Snapshot is a read-only copy of a session's state for rendering.
type Snapshot struct {
	SessionID        string    `json:"session_id"`
	ChecklistID      string    `json:"checklist_id"`
	ChecklistName    string    `json:"checklist_name"`
	Technician       string    `json:"technician,omitempty"`
	CompletedSteps   []int     `json:"completed_steps"`
	ActiveStep       *int      `json:"active_step,omitempty"`
	RemainingSeconds int       `json:"remaining_seconds"`
	TimerRunning     bool      `json:"timer_running"`
	Progress         Progress  `json:"progress"`
	AllComplete      bool      `json:"all_complete"`
	TimersFinished   int       `json:"timers_finished"`
	OpenedAt         time.Time `json:"opened_at"`
	LastActivity     time.Time `json:"last_activity"`
}
