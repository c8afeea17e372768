package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrEmptyChecklistID = errors.New("checklist id is empty")
	ErrInvalidStepOrder = errors.New("step order must be a positive integer")
	ErrDuplicateStep    = errors.New("duplicate step order")
	ErrInvalidTimer     = errors.New("step timer must be a positive number of seconds")
)

// Checklist is a repair checklist as served by the catalog. It is never
// mutated after NewChecklist returns; runners share it read-only.
type Checklist struct {
	ID               string
	Name             string
	DeviceType       string
	RepairType       string
	EstimatedMinutes int
	Steps            []StepDefinition
}

type StepDefinition struct {
	Order       int
	Title       string
	Description string

	// TimerSeconds is nil when the step has no timer.
	TimerSeconds *int

	SafetyCritical bool
	SafetyNote     string
}

func (s StepDefinition) HasTimer() bool {
	return s.TimerSeconds != nil
}

func (s StepDefinition) TimerDuration() time.Duration {
	if s.TimerSeconds == nil {
		return 0
	}
	return time.Duration(*s.TimerSeconds) * time.Second
}

// DisplaySafetyNote returns the note only for safety-critical steps.
func (s StepDefinition) DisplaySafetyNote() string {
	if !s.SafetyCritical {
		return ""
	}
	return s.SafetyNote
}

// NewChecklist validates the steps and returns a checklist with steps sorted
// by order.
func NewChecklist(id, name, deviceType, repairType string, estimatedMinutes int, steps []StepDefinition) (*Checklist, error) {
	if id == "" {
		return nil, ErrEmptyChecklistID
	}

	sorted := make([]StepDefinition, len(steps))
	copy(sorted, steps)

	seen := make(map[int]struct{}, len(sorted))
	for i := range sorted {
		st := &sorted[i]
		if st.Order <= 0 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidStepOrder, st.Order)
		}
		if _, dup := seen[st.Order]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateStep, st.Order)
		}
		seen[st.Order] = struct{}{}

		if st.TimerSeconds != nil {
			if *st.TimerSeconds <= 0 {
				return nil, fmt.Errorf("step %d: %w", st.Order, ErrInvalidTimer)
			}
			secs := *st.TimerSeconds
			st.TimerSeconds = &secs
		}
		if !st.SafetyCritical {
			st.SafetyNote = ""
		}
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	return &Checklist{
		ID:               id,
		Name:             name,
		DeviceType:       deviceType,
		RepairType:       repairType,
		EstimatedMinutes: estimatedMinutes,
		Steps:            sorted,
	}, nil
}

// Step looks up a step by its order key.
func (c *Checklist) Step(order int) (StepDefinition, bool) {
	for _, st := range c.Steps {
		if st.Order == order {
			return st, true
		}
	}
	return StepDefinition{}, false
}

func (c *Checklist) HasStep(order int) bool {
	_, ok := c.Step(order)
	return ok
}

func (c *Checklist) SafetyCriticalCount() int {
	n := 0
	for _, st := range c.Steps {
		if st.SafetyCritical {
			n++
		}
	}
	return n
}

// Seconds is a convenience for building optional timer values.
func Seconds(n int) *int {
	return &n
}
