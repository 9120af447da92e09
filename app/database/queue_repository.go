package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type queueRepository struct {
	db *DB
}

// NewQueueRepository creates a new pending message repository
func NewQueueRepository(db *DB) QueueRepository {
	return &queueRepository{db: db}
}

// InsertPending stores a captured message in the review queue
func (r *queueRepository) InsertPending(msg *PendingMessage) error {
	if msg.Status == "" {
		msg.Status = StatusPending
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO pending_messages (
			subject, from_address, from_name, body_text, body_html,
			external_message_id, external_thread_id, status, error_message,
			linked_article_id, received_at, processed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.Subject, msg.FromAddress, msg.FromName, msg.BodyText, msg.BodyHTML,
		msg.ExternalMessageID, msg.ExternalThreadID, msg.Status, msg.ErrorMessage,
		msg.LinkedArticleID, msg.ReceivedAt, msg.ProcessedAt, msg.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert pending message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted message id: %w", err)
	}
	msg.ID = id

	return nil
}

// GetPending returns a queue entry by ID, nil when absent
func (r *queueRepository) GetPending(id int64) (*PendingMessage, error) {
	var msg PendingMessage
	err := r.db.Get(&msg, "SELECT * FROM pending_messages WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending message: %w", err)
	}
	return &msg, nil
}

// ListPending returns queue entries, optionally restricted to one status
func (r *queueRepository) ListPending(status string, limit int) ([]PendingMessage, error) {
	builder := sq.Select("*").
		From("pending_messages").
		OrderBy("received_at DESC")

	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	if status != "" {
		builder = builder.Where(sq.Eq{"status": status})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build queue query: %w", err)
	}

	var messages []PendingMessage
	if err := r.db.Select(&messages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}

	return messages, nil
}

// FilterExistingExternalIDs returns the subset of candidate identifiers that
// already exist in the queue.
func (r *queueRepository) FilterExistingExternalIDs(ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	query, args, err := sqlx.In(
		"SELECT external_message_id FROM pending_messages WHERE external_message_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build identifier query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identifier rows: %w", err)
	}

	return existing, nil
}

// MarkApproved links the entry to its article and sets the terminal approved state
func (r *queueRepository) MarkApproved(id int64, articleID int64) error {
	return r.setStatus(id, StatusApproved, "", &articleID)
}

// MarkDiscarded sets the terminal discarded state
func (r *queueRepository) MarkDiscarded(id int64) error {
	return r.setStatus(id, StatusDiscarded, "", nil)
}

// MarkError records a retryable failure
func (r *queueRepository) MarkError(id int64, errorMessage string) error {
	return r.setStatus(id, StatusError, errorMessage, nil)
}

// MarkPending returns an errored entry to the review queue
func (r *queueRepository) MarkPending(id int64) error {
	_, err := r.db.Exec(`
		UPDATE pending_messages
		SET status = ?, error_message = '', processed_at = NULL
		WHERE id = ?
	`, StatusPending, id)
	if err != nil {
		return fmt.Errorf("failed to reset pending message: %w", err)
	}
	return nil
}

func (r *queueRepository) setStatus(id int64, status, errorMessage string, articleID *int64) error {
	now := time.Now().UTC()

	var err error
	if articleID != nil {
		_, err = r.db.Exec(`
			UPDATE pending_messages
			SET status = ?, error_message = ?, linked_article_id = ?, processed_at = ?
			WHERE id = ?
		`, status, errorMessage, *articleID, now, id)
	} else {
		_, err = r.db.Exec(`
			UPDATE pending_messages
			SET status = ?, error_message = ?, processed_at = ?
			WHERE id = ?
		`, status, errorMessage, now, id)
	}

	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	return nil
}

// GetQueueStats returns entry counts grouped by status
func (r *queueRepository) GetQueueStats() (map[string]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM pending_messages GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		stats[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue stats: %w", err)
	}

	return stats, nil
}
