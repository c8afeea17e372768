package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hperssn/benchtop/internal/runner"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

type Repository interface {
	SaveSession(ctx context.Context, record *SessionRecord) error

	GetSessionsByChecklist(ctx context.Context, checklistID string) ([]SessionRecord, error)

	GetRecentSessions(ctx context.Context, since time.Time, limit int) ([]SessionRecord, error)

	// GetChecklistStats aggregates all sessions, or one checklist's when
	// checklistID is not empty.
	GetChecklistStats(ctx context.Context, checklistID string) (*ChecklistStats, error)

	Close() error
}

type ChecklistStats struct {
	TotalSessions      int     `json:"totalSessions"`
	CompletedSessions  int     `json:"completedSessions"`
	CompletionRate     float64 `json:"completionRate"`
	AverageDurationSec float64 `json:"averageDurationSec"`
	TimersFinished     int     `json:"timersFinished"`
}

// Open returns the repository for driver, or nil for DriverNone.
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case DriverSQLite:
		repo, err := NewSQLiteRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case DriverPostgres:
		repo, err := NewPostgresRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case DriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// History adapts a Repository to runner.HistorySink.
type History struct {
	repo Repository
}

func NewHistory(repo Repository) *History {
	return &History{repo: repo}
}

func (h *History) RecordSession(ctx context.Context, s runner.Summary) error {
	return h.repo.SaveSession(ctx, FromSummary(s))
}

func completionRate(stats *ChecklistStats) {
	if stats.TotalSessions > 0 {
		stats.CompletionRate = float64(stats.CompletedSessions) / float64(stats.TotalSessions) * 100
	}
}
