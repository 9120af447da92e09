package database

import (
	"time"
)

// Pending message statuses. Approved and discarded are terminal; error loops
// back through retry.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDiscarded = "discarded"
	StatusError     = "error"
)

// Ingest run statuses.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusError   = "error"
)

// MonitoredSource represents a newsletter sender the tool watches.
type MonitoredSource struct {
	ID                 int64      `db:"id"`
	DisplayName        string     `db:"display_name"`
	EmailAddress       string     `db:"email_address"`
	FeedURL            string     `db:"feed_url"`
	IsActive           bool       `db:"is_active"`
	PollInterval       int        `db:"poll_interval"`
	LastIngestedAt     *time.Time `db:"last_ingested_at"`
	LastPolledAt       *time.Time `db:"last_polled_at"`
	TotalIngestedCount int        `db:"total_ingested_count"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// PendingMessage is a captured email awaiting review.
type PendingMessage struct {
	ID                int64      `db:"id"`
	Subject           string     `db:"subject"`
	FromAddress       string     `db:"from_address"`
	FromName          string     `db:"from_name"`
	BodyText          string     `db:"body_text"`
	BodyHTML          string     `db:"body_html"`
	ExternalMessageID *string    `db:"external_message_id"`
	ExternalThreadID  string     `db:"external_thread_id"`
	Status            string     `db:"status"`
	ErrorMessage      string     `db:"error_message"`
	LinkedArticleID   *int64     `db:"linked_article_id"`
	ReceivedAt        time.Time  `db:"received_at"`
	ProcessedAt       *time.Time `db:"processed_at"`
	CreatedAt         time.Time  `db:"created_at"`
}

// IngestRunLog is an append-only record of one coordinator invocation.
type IngestRunLog struct {
	ID           int64     `db:"id"`
	RunAt        time.Time `db:"run_at"`
	Status       string    `db:"status"`
	FoundCount   int       `db:"found_count"`
	NewCount     int       `db:"new_count"`
	SkippedCount int       `db:"skipped_count"`
	ErrorMessage string    `db:"error_message"`
	DurationMs   int64     `db:"duration_ms"`
}

// Article is an approved, LLM-extracted library entry.
type Article struct {
	ID         int64     `db:"id"`
	Title      string    `db:"title"`
	Source     string    `db:"source"`
	Summary    string    `db:"summary"`
	KeyPoints  string    `db:"key_points"` // newline-separated
	Content    string    `db:"content"`
	ImportedAt time.Time `db:"imported_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// GeneratedDraft is one LLM-produced derivative. Many drafts per
// article+format are allowed.
type GeneratedDraft struct {
	ID        int64     `db:"id"`
	ArticleID int64     `db:"article_id"`
	Format    string    `db:"format"`
	Content   string    `db:"content"`
	Model     string    `db:"model"`
	CreatedAt time.Time `db:"created_at"`
}

// RepurposingStatus is an explicit per-article, per-format kanban status.
// Unique on (article_id, format).
type RepurposingStatus struct {
	ID        int64      `db:"id"`
	ArticleID int64      `db:"article_id"`
	Format    string     `db:"format"`
	Status    string     `db:"status"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// FocusTopic is one of the operator's fixed focus areas.
type FocusTopic struct {
	ID          int64  `db:"id"`
	Slug        string `db:"slug"`
	Name        string `db:"name"`
	Description string `db:"description"`
}
