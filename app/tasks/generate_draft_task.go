package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlipovsky/lettermill/app/database"
)

// Drafter is the LLM capability draft generation needs.
type Drafter interface {
	GenerateDraft(ctx context.Context, format, title, summary, content string) (string, error)
	Model() string
}

// DraftObserver counts generated drafts, for metrics.
type DraftObserver interface {
	ObserveDraftGenerated(format string)
}

// GenerateDraftTask produces one derivative draft for an article.
type GenerateDraftTask struct {
	Task
	drafter  Drafter
	articles database.ArticleRepository
	observer DraftObserver

	articleID int64
	format    string
}

func NewGenerateDraftTask(drafter Drafter, articles database.ArticleRepository,
	observer DraftObserver, articleID int64, format string) *GenerateDraftTask {
	task := NewTask(TaskTypeGenerateDraft, fmt.Sprintf("article-%d/%s", articleID, format))
	task.MaxRetries = 2

	return &GenerateDraftTask{
		Task:      task,
		drafter:   drafter,
		articles:  articles,
		observer:  observer,
		articleID: articleID,
		format:    format,
	}
}

func (t *GenerateDraftTask) Execute(ctx context.Context) error {
	article, err := t.articles.GetArticle(t.articleID)
	if err != nil {
		return fmt.Errorf("load article %d: %w", t.articleID, err)
	}
	if article == nil {
		return fmt.Errorf("article %d not found", t.articleID)
	}

	content, err := t.drafter.GenerateDraft(ctx, t.format, article.Title, article.Summary, article.Content)
	if err != nil {
		return fmt.Errorf("generate %s draft for article %d: %w", t.format, t.articleID, err)
	}

	draft := &database.GeneratedDraft{
		ArticleID: t.articleID,
		Format:    t.format,
		Content:   content,
		Model:     t.drafter.Model(),
	}

	if err := t.articles.InsertDraft(draft); err != nil {
		return fmt.Errorf("store %s draft for article %d: %w", t.format, t.articleID, err)
	}

	if t.observer != nil {
		t.observer.ObserveDraftGenerated(t.format)
	}

	slog.Info("Draft generated",
		"article_id", t.articleID, "format", t.format, "length", len(content))

	return nil
}
