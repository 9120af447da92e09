package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability"
	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/llm"
	"github.com/mlipovsky/lettermill/app/mail"
)

// Extractor is the LLM capability the review flow needs.
type Extractor interface {
	ExtractArticle(ctx context.Context, subject, from, body string, topicSlugs []string) (*llm.Extraction, error)
}

// Service moves queue entries through review: approval extracts an article
// via the LLM and links it; discard and retry flip statuses.
type Service struct {
	queue    database.QueueRepository
	articles database.ArticleRepository
	topics   database.TopicRepository
	extract  Extractor
	htmlText *mail.HTMLText
}

func NewService(queue database.QueueRepository, articles database.ArticleRepository,
	topics database.TopicRepository, extract Extractor) *Service {
	return &Service{
		queue:    queue,
		articles: articles,
		topics:   topics,
		extract:  extract,
		htmlText: mail.NewHTMLText(),
	}
}

// Approve extracts structured article data from a queue entry and files it in
// the library. A failed extraction leaves the entry in the retryable error
// state.
func (s *Service) Approve(ctx context.Context, messageID int64) (*database.Article, error) {
	msg, err := s.queue.GetPending(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue entry: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("queue entry %d not found", messageID)
	}
	if msg.Status == database.StatusApproved || msg.Status == database.StatusDiscarded {
		return nil, fmt.Errorf("queue entry %d already processed (%s)", messageID, msg.Status)
	}

	topics, err := s.topics.ListTopics()
	if err != nil {
		return nil, fmt.Errorf("failed to load focus topics: %w", err)
	}
	slugs := make([]string, 0, len(topics))
	for _, topic := range topics {
		slugs = append(slugs, topic.Slug)
	}

	body := s.bodyForExtraction(msg)

	extraction, err := s.extract.ExtractArticle(ctx, msg.Subject, msg.FromAddress, body, slugs)
	if err != nil {
		if markErr := s.queue.MarkError(messageID, err.Error()); markErr != nil {
			slog.Error("Failed to record extraction error", "id", messageID, "error", markErr)
		}
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	source := msg.FromName
	if source == "" {
		source = msg.FromAddress
	}

	article := &database.Article{
		Title:      extraction.Title,
		Source:     source,
		Summary:    extraction.Summary,
		KeyPoints:  strings.Join(extraction.KeyPoints, "\n"),
		Content:    body,
		ImportedAt: time.Now().UTC(),
	}

	if err := s.articles.InsertArticle(article); err != nil {
		if markErr := s.queue.MarkError(messageID, err.Error()); markErr != nil {
			slog.Error("Failed to record insert error", "id", messageID, "error", markErr)
		}
		return nil, fmt.Errorf("failed to store article: %w", err)
	}

	s.tagArticle(article.ID, topics, extraction.Topics)

	if err := s.queue.MarkApproved(messageID, article.ID); err != nil {
		return nil, fmt.Errorf("failed to mark entry approved: %w", err)
	}

	slog.Info("Queue entry approved",
		"id", messageID, "article_id", article.ID, "title", article.Title)

	return article, nil
}

// Discard marks a queue entry as not worth keeping
func (s *Service) Discard(ctx context.Context, messageID int64) error {
	msg, err := s.queue.GetPending(messageID)
	if err != nil {
		return fmt.Errorf("failed to load queue entry: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("queue entry %d not found", messageID)
	}
	if msg.Status == database.StatusApproved {
		return fmt.Errorf("queue entry %d is already approved", messageID)
	}

	return s.queue.MarkDiscarded(messageID)
}

// Retry returns an errored entry to the pending queue
func (s *Service) Retry(ctx context.Context, messageID int64) error {
	msg, err := s.queue.GetPending(messageID)
	if err != nil {
		return fmt.Errorf("failed to load queue entry: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("queue entry %d not found", messageID)
	}
	if msg.Status != database.StatusError {
		return fmt.Errorf("queue entry %d is not in the error state (%s)", messageID, msg.Status)
	}

	return s.queue.MarkPending(messageID)
}

// bodyForExtraction resolves the richest text available for the LLM: readable
// extraction of the HTML body, then a plain markup strip, then the stored
// text.
func (s *Service) bodyForExtraction(msg *database.PendingMessage) string {
	if msg.BodyHTML != "" {
		if article, err := readability.FromReader(strings.NewReader(msg.BodyHTML), nil); err == nil && article.Content != "" {
			if text, err := s.htmlText.Run(article.Content); err == nil && text != "" {
				return text
			}
		}

		if text, err := s.htmlText.Run(msg.BodyHTML); err == nil && text != "" {
			return text
		}
	}

	return msg.BodyText
}

// tagArticle stores topic tags for the slugs the model picked. Slugs outside
// the focus set are ignored.
func (s *Service) tagArticle(articleID int64, topics []database.FocusTopic, picked []string) {
	if len(picked) == 0 {
		return
	}

	bySlug := make(map[string]int64, len(topics))
	for _, topic := range topics {
		bySlug[topic.Slug] = topic.ID
	}

	var ids []int64
	for _, slug := range picked {
		if id, ok := bySlug[strings.ToLower(strings.TrimSpace(slug))]; ok {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return
	}

	if err := s.topics.SetArticleTopics(articleID, ids); err != nil {
		slog.Warn("Failed to tag article topics", "article_id", articleID, "error", err)
	}
}
