package database

import (
	"fmt"
	"time"
)

type sourceRepository struct {
	db *DB
}

// NewSourceRepository creates a new monitored source repository
func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

// UpsertSource inserts or updates a monitored source keyed by email address
// and returns its database ID.
func (r *sourceRepository) UpsertSource(displayName, emailAddress, feedURL string, isActive bool, pollInterval int) (int64, error) {
	now := time.Now().UTC()

	var id int64
	err := r.db.QueryRow(`
		INSERT INTO monitored_sources (display_name, email_address, feed_url, is_active, poll_interval, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email_address) DO UPDATE SET
			display_name = excluded.display_name,
			feed_url = excluded.feed_url,
			is_active = excluded.is_active,
			poll_interval = excluded.poll_interval,
			updated_at = excluded.updated_at
		RETURNING id
	`, displayName, emailAddress, feedURL, isActive, pollInterval, now, now).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert source: %w", err)
	}

	return id, nil
}

// GetActiveSources returns all sources with is_active set
func (r *sourceRepository) GetActiveSources() ([]MonitoredSource, error) {
	var sources []MonitoredSource
	err := r.db.Select(&sources, `
		SELECT * FROM monitored_sources
		WHERE is_active = 1
		ORDER BY email_address
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active sources: %w", err)
	}
	return sources, nil
}

// GetSourcesDueForPoll returns active sources with an RSS mirror whose poll
// interval has elapsed.
func (r *sourceRepository) GetSourcesDueForPoll() ([]MonitoredSource, error) {
	var sources []MonitoredSource
	err := r.db.Select(&sources, `
		SELECT * FROM monitored_sources
		WHERE is_active = 1 AND feed_url != ''
		ORDER BY email_address
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get pollable sources: %w", err)
	}

	now := time.Now().UTC()
	due := sources[:0]
	for _, source := range sources {
		if source.LastPolledAt == nil || source.LastPolledAt.Add(time.Duration(source.PollInterval)*time.Second).Before(now) {
			due = append(due, source)
		}
	}

	return due, nil
}

// RecordIngested increments the usage counter and stamps the last ingested time
func (r *sourceRepository) RecordIngested(sourceID int64, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE monitored_sources
		SET total_ingested_count = total_ingested_count + 1, last_ingested_at = ?, updated_at = ?
		WHERE id = ?
	`, at, time.Now().UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to record ingested message: %w", err)
	}
	return nil
}

// UpdatePolledAt stamps the last RSS poll time
func (r *sourceRepository) UpdatePolledAt(sourceID int64, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE monitored_sources
		SET last_polled_at = ?, updated_at = ?
		WHERE id = ?
	`, at, time.Now().UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update poll time: %w", err)
	}
	return nil
}

// GetSourceCount returns the total number of monitored sources
func (r *sourceRepository) GetSourceCount() (int, error) {
	var count int
	err := r.db.Get(&count, "SELECT COUNT(*) FROM monitored_sources")
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}
