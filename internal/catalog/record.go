// Package catalog reads checklist definitions from the shop's data service
// or from a local directory of definition files.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hperssn/benchtop/internal/domain"
)

var (
	ErrNotFound          = errors.New("checklist not found")
	ErrInvalidDefinition = errors.New("invalid checklist definition")
)

// Source supplies checklist definitions.
type Source interface {
	List(ctx context.Context) ([]*domain.Checklist, error)
	Get(ctx context.Context, id string) (*domain.Checklist, error)
}

// Record is a checklist as served by the data service.
type Record struct {
	ID                   string       `json:"id" yaml:"id"`
	Name                 string       `json:"name" yaml:"name"`
	DeviceType           string       `json:"device_type" yaml:"device_type"`
	RepairType           string       `json:"repair_type" yaml:"repair_type"`
	EstimatedTimeMinutes int          `json:"estimated_time_minutes" yaml:"estimated_time_minutes"`
	Steps                []StepRecord `json:"steps" yaml:"steps"`
}

type StepRecord struct {
	Order        int    `json:"order" yaml:"order"`
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description" yaml:"description"`
	TimerSeconds *int   `json:"timer_seconds,omitempty" yaml:"timer_seconds,omitempty"`
	IsSafety     bool   `json:"is_safety" yaml:"is_safety"`
	SafetyNote   string `json:"safety_note,omitempty" yaml:"safety_note,omitempty"`
}

// Definition validates the record and converts it to a domain checklist.
func (r Record) Definition() (*domain.Checklist, error) {
	steps := make([]domain.StepDefinition, len(r.Steps))
	for i, st := range r.Steps {
		steps[i] = domain.StepDefinition{
			Order:          st.Order,
			Title:          st.Title,
			Description:    st.Description,
			TimerSeconds:   st.TimerSeconds,
			SafetyCritical: st.IsSafety,
			SafetyNote:     st.SafetyNote,
		}
	}

	def, err := domain.NewChecklist(r.ID, r.Name, r.DeviceType, r.RepairType, r.EstimatedTimeMinutes, steps)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidDefinition, r.ID, err)
	}
	return def, nil
}

func find(all []*domain.Checklist, id string) (*domain.Checklist, error) {
	for _, c := range all {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}
