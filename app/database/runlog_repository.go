package database

import (
	"fmt"
	"time"
)

type runLogRepository struct {
	db *DB
}

// NewRunLogRepository creates a new ingest run log repository
func NewRunLogRepository(db *DB) RunLogRepository {
	return &runLogRepository{db: db}
}

// InsertRunLog appends one audit entry. Rows are never mutated afterwards.
func (r *runLogRepository) InsertRunLog(entry *IngestRunLog) error {
	if entry.RunAt.IsZero() {
		entry.RunAt = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO ingest_run_logs (run_at, status, found_count, new_count, skipped_count, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.RunAt, entry.Status, entry.FoundCount, entry.NewCount, entry.SkippedCount,
		entry.ErrorMessage, entry.DurationMs)

	if err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run log id: %w", err)
	}
	entry.ID = id

	return nil
}

// ListRuns returns the most recent run log entries
func (r *runLogRepository) ListRuns(limit int) ([]IngestRunLog, error) {
	var runs []IngestRunLog
	err := r.db.Select(&runs, `
		SELECT * FROM ingest_run_logs
		ORDER BY run_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return runs, nil
}

// GetRunCount returns the total number of recorded runs
func (r *runLogRepository) GetRunCount() (int, error) {
	var count int
	err := r.db.Get(&count, "SELECT COUNT(*) FROM ingest_run_logs")
	if err != nil {
		return 0, fmt.Errorf("failed to get run count: %w", err)
	}
	return count, nil
}
