package review

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/llm"
)

type fakeQueueRepo struct {
	messages map[int64]*database.PendingMessage
}

func newFakeQueueRepo(msgs ...*database.PendingMessage) *fakeQueueRepo {
	repo := &fakeQueueRepo{messages: map[int64]*database.PendingMessage{}}
	for _, m := range msgs {
		repo.messages[m.ID] = m
	}
	return repo
}

func (r *fakeQueueRepo) InsertPending(msg *database.PendingMessage) error { return nil }

func (r *fakeQueueRepo) GetPending(id int64) (*database.PendingMessage, error) {
	msg, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (r *fakeQueueRepo) ListPending(status string, limit int) ([]database.PendingMessage, error) {
	return nil, nil
}

func (r *fakeQueueRepo) FilterExistingExternalIDs(ids []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (r *fakeQueueRepo) MarkApproved(id int64, articleID int64) error {
	r.messages[id].Status = database.StatusApproved
	r.messages[id].LinkedArticleID = &articleID
	return nil
}

func (r *fakeQueueRepo) MarkDiscarded(id int64) error {
	r.messages[id].Status = database.StatusDiscarded
	return nil
}

func (r *fakeQueueRepo) MarkError(id int64, errorMessage string) error {
	r.messages[id].Status = database.StatusError
	r.messages[id].ErrorMessage = errorMessage
	return nil
}

func (r *fakeQueueRepo) MarkPending(id int64) error {
	r.messages[id].Status = database.StatusPending
	r.messages[id].ErrorMessage = ""
	return nil
}

func (r *fakeQueueRepo) GetQueueStats() (map[string]int, error) { return nil, nil }

type fakeArticleRepo struct {
	database.ArticleRepository

	nextID    int64
	inserted  []*database.Article
	insertErr error
}

func (r *fakeArticleRepo) InsertArticle(article *database.Article) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.nextID++
	article.ID = r.nextID
	r.inserted = append(r.inserted, article)
	return nil
}

type fakeTopicRepo struct {
	database.TopicRepository

	topics map[int64][]int64
}

func (r *fakeTopicRepo) ListTopics() ([]database.FocusTopic, error) {
	return []database.FocusTopic{
		{ID: 1, Slug: "ai-tooling", Name: "AI Tooling"},
		{ID: 2, Slug: "product-strategy", Name: "Product Strategy"},
	}, nil
}

func (r *fakeTopicRepo) SetArticleTopics(articleID int64, topicIDs []int64) error {
	if r.topics == nil {
		r.topics = map[int64][]int64{}
	}
	r.topics[articleID] = topicIDs
	return nil
}

type fakeExtractor struct {
	extraction *llm.Extraction
	err        error
	lastBody   string
	lastSlugs  []string
}

func (e *fakeExtractor) ExtractArticle(ctx context.Context, subject, from, body string, topicSlugs []string) (*llm.Extraction, error) {
	e.lastBody = body
	e.lastSlugs = topicSlugs
	if e.err != nil {
		return nil, e.err
	}
	return e.extraction, nil
}

func pendingMessage(id int64) *database.PendingMessage {
	return &database.PendingMessage{
		ID:          id,
		Subject:     "Issue #42",
		FromAddress: "lenny@substack.com",
		FromName:    "Lenny's Newsletter",
		BodyText:    "plain body",
		Status:      database.StatusPending,
		ReceivedAt:  time.Now(),
	}
}

func TestApprove_CreatesArticleAndLinksIt(t *testing.T) {
	queue := newFakeQueueRepo(pendingMessage(7))
	articles := &fakeArticleRepo{}
	topics := &fakeTopicRepo{}
	extractor := &fakeExtractor{extraction: &llm.Extraction{
		Title:     "The Real Title",
		Summary:   "A summary.",
		KeyPoints: []string{"first", "second"},
		Topics:    []string{"ai-tooling", "unknown-slug"},
	}}

	service := NewService(queue, articles, topics, extractor)

	article, err := service.Approve(context.Background(), 7)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if article.Title != "The Real Title" {
		t.Errorf("Unexpected title: %q", article.Title)
	}
	if article.Source != "Lenny's Newsletter" {
		t.Errorf("Expected sender name as source, got %q", article.Source)
	}
	if article.KeyPoints != "first\nsecond" {
		t.Errorf("Expected newline-joined key points, got %q", article.KeyPoints)
	}

	msg := queue.messages[7]
	if msg.Status != database.StatusApproved {
		t.Errorf("Expected approved status, got %q", msg.Status)
	}
	if msg.LinkedArticleID == nil || *msg.LinkedArticleID != article.ID {
		t.Errorf("Expected linked article %d, got %v", article.ID, msg.LinkedArticleID)
	}

	if got := topics.topics[article.ID]; len(got) != 1 || got[0] != 1 {
		t.Errorf("Expected only the known topic to be tagged, got %v", got)
	}
	if len(extractor.lastSlugs) != 2 {
		t.Errorf("Expected focus slugs passed to extractor, got %v", extractor.lastSlugs)
	}
}

func TestApprove_ExtractionFailureMarksError(t *testing.T) {
	queue := newFakeQueueRepo(pendingMessage(3))
	extractor := &fakeExtractor{err: fmt.Errorf("model unavailable")}

	service := NewService(queue, &fakeArticleRepo{}, &fakeTopicRepo{}, extractor)

	if _, err := service.Approve(context.Background(), 3); err == nil {
		t.Fatal("Expected Approve to fail")
	}

	msg := queue.messages[3]
	if msg.Status != database.StatusError {
		t.Errorf("Expected error status, got %q", msg.Status)
	}
	if !strings.Contains(msg.ErrorMessage, "model unavailable") {
		t.Errorf("Expected stored error message, got %q", msg.ErrorMessage)
	}
}

func TestApprove_RetryableAfterError(t *testing.T) {
	msg := pendingMessage(5)
	msg.Status = database.StatusError
	msg.ErrorMessage = "earlier failure"
	queue := newFakeQueueRepo(msg)
	extractor := &fakeExtractor{extraction: &llm.Extraction{Title: "t", Summary: "s"}}

	service := NewService(queue, &fakeArticleRepo{}, &fakeTopicRepo{}, extractor)

	if _, err := service.Approve(context.Background(), 5); err != nil {
		t.Fatalf("Approve of errored entry failed: %v", err)
	}
	if queue.messages[5].Status != database.StatusApproved {
		t.Errorf("Expected approved status, got %q", queue.messages[5].Status)
	}
}

func TestApprove_AlreadyProcessed(t *testing.T) {
	msg := pendingMessage(2)
	msg.Status = database.StatusApproved
	queue := newFakeQueueRepo(msg)

	service := NewService(queue, &fakeArticleRepo{}, &fakeTopicRepo{}, &fakeExtractor{})

	if _, err := service.Approve(context.Background(), 2); err == nil {
		t.Error("Expected error for already approved entry")
	}
}

func TestApprove_NotFound(t *testing.T) {
	service := NewService(newFakeQueueRepo(), &fakeArticleRepo{}, &fakeTopicRepo{}, &fakeExtractor{})

	if _, err := service.Approve(context.Background(), 99); err == nil {
		t.Error("Expected error for missing entry")
	}
}

func TestApprove_InsertFailureMarksError(t *testing.T) {
	queue := newFakeQueueRepo(pendingMessage(4))
	articles := &fakeArticleRepo{insertErr: fmt.Errorf("disk full")}
	extractor := &fakeExtractor{extraction: &llm.Extraction{Title: "t"}}

	service := NewService(queue, articles, &fakeTopicRepo{}, extractor)

	if _, err := service.Approve(context.Background(), 4); err == nil {
		t.Fatal("Expected Approve to fail")
	}
	if queue.messages[4].Status != database.StatusError {
		t.Errorf("Expected error status, got %q", queue.messages[4].Status)
	}
}

func TestApprove_PrefersHTMLBody(t *testing.T) {
	msg := pendingMessage(8)
	msg.BodyHTML = "<html><body><p>rich html body with actual content</p></body></html>"
	queue := newFakeQueueRepo(msg)
	extractor := &fakeExtractor{extraction: &llm.Extraction{Title: "t"}}

	service := NewService(queue, &fakeArticleRepo{}, &fakeTopicRepo{}, extractor)

	if _, err := service.Approve(context.Background(), 8); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !strings.Contains(extractor.lastBody, "rich html body") {
		t.Errorf("Expected text from HTML body, got %q", extractor.lastBody)
	}
	if strings.Contains(extractor.lastBody, "<p>") {
		t.Errorf("Expected markup stripped, got %q", extractor.lastBody)
	}
}

func TestDiscard(t *testing.T) {
	queue := newFakeQueueRepo(pendingMessage(1))
	service := NewService(queue, &fakeArticleRepo{}, &fakeTopicRepo{}, &fakeExtractor{})

	if err := service.Discard(context.Background(), 1); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if queue.messages[1].Status != database.StatusDiscarded {
		t.Errorf("Expected discarded status, got %q", queue.messages[1].Status)
	}
}

func TestDiscard_ApprovedEntryRefused(t *testing.T) {
	msg := pendingMessage(1)
	msg.Status = database.StatusApproved
	queue := newFakeQueueRepo(msg)
	service := NewService(queue, &fakeArticleRepo{}, &fakeTopicRepo{}, &fakeExtractor{})

	if err := service.Discard(context.Background(), 1); err == nil {
		t.Error("Expected error discarding an approved entry")
	}
}

func TestRetry(t *testing.T) {
	msg := pendingMessage(6)
	msg.Status = database.StatusError
	msg.ErrorMessage = "boom"
	queue := newFakeQueueRepo(msg)
	service := NewService(queue, &fakeArticleRepo{}, &fakeTopicRepo{}, &fakeExtractor{})

	if err := service.Retry(context.Background(), 6); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if queue.messages[6].Status != database.StatusPending {
		t.Errorf("Expected pending status, got %q", queue.messages[6].Status)
	}
	if queue.messages[6].ErrorMessage != "" {
		t.Errorf("Expected error message cleared, got %q", queue.messages[6].ErrorMessage)
	}
}

func TestRetry_OnlyErrorEntries(t *testing.T) {
	queue := newFakeQueueRepo(pendingMessage(6))
	service := NewService(queue, &fakeArticleRepo{}, &fakeTopicRepo{}, &fakeExtractor{})

	if err := service.Retry(context.Background(), 6); err == nil {
		t.Error("Expected error retrying a pending entry")
	}
}
