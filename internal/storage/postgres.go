package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	repo := &PostgresRepository{db: db}
	if err := repo.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checklist_sessions (
		id TEXT PRIMARY KEY,
		checklist_id TEXT NOT NULL,
		checklist_name TEXT NOT NULL,
		technician TEXT,
		opened_at TIMESTAMPTZ NOT NULL,
		closed_at TIMESTAMPTZ NOT NULL,
		duration_sec BIGINT NOT NULL,
		completed_steps INTEGER NOT NULL,
		total_steps INTEGER NOT NULL,
		timers_finished INTEGER NOT NULL,
		all_complete BOOLEAN NOT NULL,
		close_reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checklist_id ON checklist_sessions(checklist_id);
	CREATE INDEX IF NOT EXISTS idx_closed_at ON checklist_sessions(closed_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *PostgresRepository) SaveSession(ctx context.Context, record *SessionRecord) error {
	query := `
		INSERT INTO checklist_sessions (id, checklist_id, checklist_name, technician, opened_at, closed_at,
			duration_sec, completed_steps, total_steps, timers_finished, all_complete, close_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		record.ID,
		record.ChecklistID,
		record.ChecklistName,
		record.Technician,
		record.OpenedAt,
		record.ClosedAt,
		int64(record.Duration().Seconds()),
		record.CompletedSteps,
		record.TotalSteps,
		record.TimersFinished,
		record.AllComplete,
		record.CloseReason,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", record.ID, err)
	}
	return nil
}

func (r *PostgresRepository) GetSessionsByChecklist(ctx context.Context, checklistID string) ([]SessionRecord, error) {
	query := `
		SELECT id, checklist_id, checklist_name, technician, opened_at, closed_at,
			completed_steps, total_steps, timers_finished, all_complete, close_reason
		FROM checklist_sessions
		WHERE checklist_id = $1
		ORDER BY closed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, checklistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *PostgresRepository) GetRecentSessions(ctx context.Context, since time.Time, limit int) ([]SessionRecord, error) {
	query := `
		SELECT id, checklist_id, checklist_name, technician, opened_at, closed_at,
			completed_steps, total_steps, timers_finished, all_complete, close_reason
		FROM checklist_sessions
		WHERE closed_at >= $1
		ORDER BY closed_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *PostgresRepository) GetChecklistStats(ctx context.Context, checklistID string) (*ChecklistStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN all_complete THEN 1 ELSE 0 END) as completed,
			AVG(duration_sec) as avg_duration,
			SUM(timers_finished) as timers
		FROM checklist_sessions
		WHERE ($1 = '' OR checklist_id = $1)
	`

	var stats ChecklistStats
	var completed, timers sql.NullInt64
	var avgDuration sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, checklistID).Scan(
		&stats.TotalSessions,
		&completed,
		&avgDuration,
		&timers,
	)
	if err != nil {
		return nil, err
	}

	stats.CompletedSessions = int(completed.Int64)
	stats.TimersFinished = int(timers.Int64)
	stats.AverageDurationSec = avgDuration.Float64
	completionRate(&stats)

	return &stats, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
