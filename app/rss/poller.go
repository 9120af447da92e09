package rss

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/mail"
)

const (
	fetchTimeout    = 30 * time.Second
	maxFeedSize     = 10 << 20
	maxItemsPerPoll = 20
)

// Poller mirrors a newsletter's public web feed into the review queue. Items
// already captured (by a previous poll or the email path) are skipped by
// external ID.
type Poller struct {
	httpClient *http.Client
	parser     *Parser
	htmlText   *mail.HTMLText
	sources    database.SourceRepository
	queue      database.QueueRepository
	userAgent  string
}

func NewPoller(httpClient *http.Client, sources database.SourceRepository,
	queue database.QueueRepository, userAgent string) *Poller {
	return &Poller{
		httpClient: httpClient,
		parser:     NewParser(),
		htmlText:   mail.NewHTMLText(),
		sources:    sources,
		queue:      queue,
		userAgent:  userAgent,
	}
}

// PollSource fetches one source's feed and queues unseen items. Returns the
// number of new queue entries.
func (p *Poller) PollSource(ctx context.Context, source database.MonitoredSource) (int, error) {
	if source.FeedURL == "" {
		return 0, fmt.Errorf("source %q has no feed URL", source.DisplayName)
	}

	data, err := p.fetchFeed(ctx, source.FeedURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch feed for %q: %w", source.DisplayName, err)
	}

	_, items, err := p.parser.Run(data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse feed for %q: %w", source.DisplayName, err)
	}

	if len(items) > maxItemsPerPoll {
		items = items[:maxItemsPerPoll]
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.GUID != "" {
			ids = append(ids, item.GUID)
		}
	}

	existing, err := p.queue.FilterExistingExternalIDs(ids)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing items: %w", err)
	}

	now := time.Now().UTC()
	saved := 0

	for _, item := range items {
		if item.GUID == "" || existing[item.GUID] {
			continue
		}

		msg := p.buildMessage(source, item, now)
		if err := p.queue.InsertPending(msg); err != nil {
			slog.Warn("Failed to queue feed item",
				"source", source.DisplayName, "guid", item.GUID, "error", err)
			continue
		}

		if err := p.sources.RecordIngested(source.ID, now); err != nil {
			slog.Warn("Failed to update source counters",
				"source", source.DisplayName, "error", err)
		}

		saved++
	}

	if err := p.sources.UpdatePolledAt(source.ID, now); err != nil {
		slog.Warn("Failed to record poll time", "source", source.DisplayName, "error", err)
	}

	slog.Debug("Feed poll finished",
		"source", source.DisplayName, "items", len(items), "new", saved)

	return saved, nil
}

func (p *Poller) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	return data, nil
}

func (p *Poller) buildMessage(source database.MonitoredSource, item Item, now time.Time) *database.PendingMessage {
	guid := item.GUID

	bodyHTML := item.Content
	if bodyHTML == "" {
		bodyHTML = item.Description
	}

	bodyText := ""
	if text, err := p.htmlText.Run(bodyHTML); err == nil {
		bodyText = text
	}

	subject := item.Title
	if subject == "" {
		subject = "(no subject)"
	}

	receivedAt := item.PublishedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	return &database.PendingMessage{
		Subject:           subject,
		FromAddress:       source.EmailAddress,
		FromName:          source.DisplayName,
		BodyText:          bodyText,
		BodyHTML:          bodyHTML,
		ExternalMessageID: &guid,
		Status:            database.StatusPending,
		ReceivedAt:        receivedAt,
	}
}
