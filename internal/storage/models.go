package storage

import (
	"time"

	"github.com/hperssn/benchtop/internal/runner"
)

// SessionRecord is the stored summary of a closed checklist session.
type SessionRecord struct {
	ID             string    `json:"id"`
	ChecklistID    string    `json:"checklist_id"`
	ChecklistName  string    `json:"checklist_name"`
	Technician     string    `json:"technician,omitempty"`
	OpenedAt       time.Time `json:"opened_at"`
	ClosedAt       time.Time `json:"closed_at"`
	CompletedSteps int       `json:"completed_steps"`
	TotalSteps     int       `json:"total_steps"`
	TimersFinished int       `json:"timers_finished"`
	AllComplete    bool      `json:"all_complete"`
	CloseReason    string    `json:"close_reason"`
}

func (r SessionRecord) Duration() time.Duration {
	return r.ClosedAt.Sub(r.OpenedAt)
}

// FromSummary converts a runner.Summary to a SessionRecord
func FromSummary(s runner.Summary) *SessionRecord {
	return &SessionRecord{
		ID:             s.SessionID,
		ChecklistID:    s.ChecklistID,
		ChecklistName:  s.ChecklistName,
		Technician:     s.Technician,
		OpenedAt:       s.OpenedAt.UTC(),
		ClosedAt:       s.ClosedAt.UTC(),
		CompletedSteps: s.CompletedSteps,
		TotalSteps:     s.TotalSteps,
		TimersFinished: s.TimersFinished,
		AllComplete:    s.AllComplete,
		CloseReason:    s.Reason,
	}
}
