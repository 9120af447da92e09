package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/mail"
)

// Bodies are fetched per thread in batches of this size.
const fetchBatchSize = 100

// Options control one coordinator run.
type Options struct {
	MaxPerSource int
	AfterDate    *time.Time
}

// Result is the structured outcome of a run. The coordinator never returns a
// Go error: callers distinguish failure by inspecting Errors and counts.
type Result struct {
	Found    int
	New      int
	Skipped  int
	Errors   []string
	Duration time.Duration
}

// Coordinator pulls candidate messages from the mail-search capability,
// deduplicates them against the queue by external identifier, and stores the
// new ones as pending review entries.
type Coordinator struct {
	searcher mail.Searcher
	sources  database.SourceRepository
	queue    database.QueueRepository
	runs     database.RunLogRepository
}

func NewCoordinator(searcher mail.Searcher, sources database.SourceRepository,
	queue database.QueueRepository, runs database.RunLogRepository) *Coordinator {
	return &Coordinator{
		searcher: searcher,
		sources:  sources,
		queue:    queue,
		runs:     runs,
	}
}

// Run executes one end-to-end ingestion pass. Re-running after a partial
// failure is safe: messages saved earlier are skipped by the identifier
// pre-check.
func (c *Coordinator) Run(ctx context.Context, opts Options) Result {
	start := time.Now()
	result := Result{}

	maxPerSource := opts.MaxPerSource
	if maxPerSource < 1 {
		maxPerSource = 1
	}

	activeSources, err := c.sources.GetActiveSources()
	if err != nil {
		// Cannot write an audit entry without the store
		result.Errors = append(result.Errors, fmt.Sprintf("store unavailable: %v", err))
		result.Duration = time.Since(start)
		return result
	}

	if len(activeSources) == 0 {
		slog.Debug("No active sources, skipping ingest run")
		result.Duration = time.Since(start)
		return result
	}

	query := buildQuery(activeSources, opts.AfterDate)

	found, err := c.searcher.Search(ctx, query, maxPerSource*len(activeSources))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("mail search failed: %v", err))
		result.Duration = time.Since(start)
		c.writeRunLog(start, database.RunStatusError, result)
		return result
	}
	result.Found = len(found)

	newMessages, err := c.dedup(found)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("identifier check failed: %v", err))
		result.Duration = time.Since(start)
		c.writeRunLog(start, database.RunStatusError, result)
		return result
	}
	result.New = len(newMessages)
	result.Skipped = result.Found - result.New

	if len(newMessages) == 0 {
		result.Duration = time.Since(start)
		c.writeRunLog(start, database.RunStatusSuccess, result)
		return result
	}

	fullBodies := c.fetchBodies(ctx, newMessages)

	saved := 0
	for _, msg := range newMessages {
		if err := c.saveMessage(msg, fullBodies[msg.ID]); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", msg.ID, err))
			continue
		}
		saved++
		c.attributeToSource(activeSources, msg)
	}

	status := database.RunStatusSuccess
	if len(result.Errors) > 0 {
		if saved > 0 {
			status = database.RunStatusPartial
		} else {
			status = database.RunStatusError
		}
	}

	result.Duration = time.Since(start)
	c.writeRunLog(start, status, result)

	slog.Info("Ingest run completed",
		"status", status,
		"found", result.Found,
		"new", result.New,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
		"duration", result.Duration)

	return result
}

// buildQuery ORs one from-clause per active source, optionally bounded below
// by a date clause.
func buildQuery(sources []database.MonitoredSource, afterDate *time.Time) string {
	clauses := make([]string, 0, len(sources))
	for _, source := range sources {
		clauses = append(clauses, "from:"+source.EmailAddress)
	}

	query := strings.Join(clauses, " OR ")
	if afterDate != nil {
		query = fmt.Sprintf("(%s) after:%s", query, afterDate.Format("2006/01/02"))
	}

	return query
}

// dedup returns the subset of found messages whose external identifier is not
// already stored. Messages without an identifier cannot be deduplicated and
// are treated as new.
func (c *Coordinator) dedup(found []mail.Message) ([]mail.Message, error) {
	ids := make([]string, 0, len(found))
	for _, msg := range found {
		if msg.ID != "" {
			ids = append(ids, msg.ID)
		}
	}

	existing, err := c.queue.FilterExistingExternalIDs(ids)
	if err != nil {
		return nil, err
	}

	newMessages := make([]mail.Message, 0, len(found))
	for _, msg := range found {
		if msg.ID != "" && existing[msg.ID] {
			continue
		}
		newMessages = append(newMessages, msg)
	}

	return newMessages, nil
}

// fetchBodies retrieves full message bodies grouped by thread, in batches.
// Batch failures are non-fatal: affected messages fall back to their
// search-time snippet.
func (c *Coordinator) fetchBodies(ctx context.Context, messages []mail.Message) map[string]mail.Message {
	threadIDs := make([]string, 0, len(messages))
	seen := make(map[string]bool)
	for _, msg := range messages {
		if msg.ThreadID == "" || seen[msg.ThreadID] {
			continue
		}
		seen[msg.ThreadID] = true
		threadIDs = append(threadIDs, msg.ThreadID)
	}

	full := make(map[string]mail.Message)

	for i := 0; i < len(threadIDs); i += fetchBatchSize {
		end := min(i+fetchBatchSize, len(threadIDs))
		batch := threadIDs[i:end]

		byThread, err := c.searcher.FetchBodies(ctx, batch, true)
		if err != nil {
			slog.Warn("Body fetch failed, falling back to snippets",
				"threads", len(batch), "error", err)
			continue
		}

		for _, threadMessages := range byThread {
			for _, msg := range threadMessages {
				if msg.ID != "" {
					full[msg.ID] = msg
				}
			}
		}
	}

	return full
}

// saveMessage resolves the richest available fields and inserts one queue row
func (c *Coordinator) saveMessage(msg mail.Message, full mail.Message) error {
	bodyText := full.Body
	if bodyText == "" {
		bodyText = msg.Snippet
	}

	subject := msg.Subject
	if subject == "" {
		subject = full.Subject
	}
	if subject == "" {
		subject = "(no subject)"
	}

	fromHeader := msg.From
	if fromHeader == "" {
		fromHeader = full.From
	}
	fromName, fromAddress := mail.ParseFrom(fromHeader)

	receivedAt, ok := mail.ParseDate(msg.Date)
	if !ok {
		receivedAt, ok = mail.ParseDate(full.Date)
	}
	if !ok {
		receivedAt = time.Now().UTC()
	}

	var externalID *string
	if msg.ID != "" {
		id := msg.ID
		externalID = &id
	}

	return c.queue.InsertPending(&database.PendingMessage{
		Subject:           subject,
		FromAddress:       fromAddress,
		FromName:          fromName,
		BodyText:          bodyText,
		BodyHTML:          full.BodyHTML,
		ExternalMessageID: externalID,
		ExternalThreadID:  msg.ThreadID,
		Status:            database.StatusPending,
		ReceivedAt:        receivedAt,
	})
}

// attributeToSource bumps the usage counter on the matching source, by exact
// address match or substring containment. No match is silent.
func (c *Coordinator) attributeToSource(sources []database.MonitoredSource, msg mail.Message) {
	_, fromAddress := mail.ParseFrom(msg.From)
	if fromAddress == "" {
		return
	}

	for _, source := range sources {
		if fromAddress == source.EmailAddress || strings.Contains(fromAddress, source.EmailAddress) {
			if err := c.sources.RecordIngested(source.ID, time.Now().UTC()); err != nil {
				slog.Warn("Failed to update source counters",
					"source", source.EmailAddress, "error", err)
			}
			return
		}
	}
}

// writeRunLog appends the audit entry. A failed write is diagnostic only and
// never surfaces to the caller.
func (c *Coordinator) writeRunLog(runAt time.Time, status string, result Result) {
	entry := &database.IngestRunLog{
		RunAt:        runAt.UTC(),
		Status:       status,
		FoundCount:   result.Found,
		NewCount:     result.New,
		SkippedCount: result.Skipped,
		ErrorMessage: strings.Join(result.Errors, "; "),
		DurationMs:   result.Duration.Milliseconds(),
	}

	if err := c.runs.InsertRunLog(entry); err != nil {
		slog.Error("Failed to write ingest run log", "error", err)
	}
}
