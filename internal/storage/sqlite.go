package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens dbPath; ":memory:" gives a throwaway database.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection so ":memory:" is a single database
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{db: db}
	if err := repo.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checklist_sessions (
		id TEXT PRIMARY KEY,
		checklist_id TEXT NOT NULL,
		checklist_name TEXT NOT NULL,
		technician TEXT,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME NOT NULL,
		duration_sec INTEGER NOT NULL,
		completed_steps INTEGER NOT NULL,
		total_steps INTEGER NOT NULL,
		timers_finished INTEGER NOT NULL,
		all_complete INTEGER NOT NULL,
		close_reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checklist_id ON checklist_sessions(checklist_id);
	CREATE INDEX IF NOT EXISTS idx_closed_at ON checklist_sessions(closed_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepository) SaveSession(ctx context.Context, record *SessionRecord) error {
	query := `
		INSERT INTO checklist_sessions (id, checklist_id, checklist_name, technician, opened_at, closed_at,
			duration_sec, completed_steps, total_steps, timers_finished, all_complete, close_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

func (r *SQLiteRepository) GetSessionsByChecklist(ctx context.Context, checklistID string) ([]SessionRecord, error) {
	query := `
		SELECT id, checklist_id, checklist_name, technician, opened_at, closed_at,
			completed_steps, total_steps, timers_finished, all_complete, close_reason
		FROM checklist_sessions
		WHERE checklist_id = ?
		ORDER BY closed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, checklistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *SQLiteRepository) GetRecentSessions(ctx context.Context, since time.Time, limit int) ([]SessionRecord, error) {
	query := `
		SELECT id, checklist_id, checklist_name, technician, opened_at, closed_at,
			completed_steps, total_steps, timers_finished, all_complete, close_reason
		FROM checklist_sessions
		WHERE closed_at >= ?
		ORDER BY closed_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *SQLiteRepository) GetChecklistStats(ctx context.Context, checklistID string) (*ChecklistStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN all_complete THEN 1 ELSE 0 END) as completed,
			AVG(duration_sec) as avg_duration,
			SUM(timers_finished) as timers
		FROM checklist_sessions
		WHERE (? = '' OR checklist_id = ?)
	`

	var stats ChecklistStats
	var completed, timers sql.NullInt64
	var avgDuration sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, checklistID, checklistID).Scan(
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

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanSessions(rows *sql.Rows) ([]SessionRecord, error) {
	var records []SessionRecord

	for rows.Next() {
		var record SessionRecord
		var technician sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.ChecklistID,
			&record.ChecklistName,
			&technician,
			&record.OpenedAt,
			&record.ClosedAt,
			&record.CompletedSteps,
			&record.TotalSteps,
			&record.TimersFinished,
			&record.AllComplete,
			&record.CloseReason,
		)
		if err != nil {
			return nil, err
		}
		record.Technician = technician.String

		records = append(records, record)
	}

	return records, rows.Err()
}
