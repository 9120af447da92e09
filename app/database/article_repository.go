package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type articleRepository struct {
	db *DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *DB) ArticleRepository {
	return &articleRepository{db: db}
}

// InsertArticle stores a new library article
func (r *articleRepository) InsertArticle(article *Article) error {
	if article.ImportedAt.IsZero() {
		article.ImportedAt = time.Now().UTC()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO articles (title, source, summary, key_points, content, imported_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, article.Title, article.Source, article.Summary, article.KeyPoints,
		article.Content, article.ImportedAt, article.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get article id: %w", err)
	}
	article.ID = id

	return nil
}

// GetArticle returns an article by ID, nil when absent
func (r *articleRepository) GetArticle(id int64) (*Article, error) {
	var article Article
	err := r.db.Get(&article, "SELECT * FROM articles WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &article, nil
}

// ListArticles returns articles newest first. A non-positive limit returns
// everything.
func (r *articleRepository) ListArticles(limit int) ([]Article, error) {
	builder := sq.Select("*").
		From("articles").
		OrderBy("imported_at DESC")

	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	var articles []Article
	if err := r.db.Select(&articles, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

// GetArticleCount returns the total number of articles
func (r *articleRepository) GetArticleCount() (int, error) {
	var count int
	err := r.db.Get(&count, "SELECT COUNT(*) FROM articles")
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

// InsertDraft stores one generated derivative
func (r *articleRepository) InsertDraft(draft *GeneratedDraft) error {
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO generated_drafts (article_id, format, content, model, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, draft.ArticleID, draft.Format, draft.Content, draft.Model, draft.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get draft id: %w", err)
	}
	draft.ID = id

	return nil
}

// ListDrafts returns drafts for one article, newest first
func (r *articleRepository) ListDrafts(articleID int64) ([]GeneratedDraft, error) {
	var drafts []GeneratedDraft
	err := r.db.Select(&drafts, `
		SELECT * FROM generated_drafts
		WHERE article_id = ?
		ORDER BY created_at DESC
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, nil
}

// ListAllDrafts returns every draft; input for calendar derivation
func (r *articleRepository) ListAllDrafts() ([]GeneratedDraft, error) {
	var drafts []GeneratedDraft
	err := r.db.Select(&drafts, "SELECT * FROM generated_drafts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list all drafts: %w", err)
	}
	return drafts, nil
}

// UpsertStatus writes the explicit status for (article, format)
func (r *articleRepository) UpsertStatus(status *RepurposingStatus) error {
	if status.UpdatedAt == nil {
		now := time.Now().UTC()
		status.UpdatedAt = &now
	}

	_, err := r.db.Exec(`
		INSERT INTO repurposing_statuses (article_id, format, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (article_id, format) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`, status.ArticleID, status.Format, status.Status, status.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert status: %w", err)
	}
	return nil
}

// ListAllStatuses returns every explicit status; input for calendar derivation
func (r *articleRepository) ListAllStatuses() ([]RepurposingStatus, error) {
	var statuses []RepurposingStatus
	err := r.db.Select(&statuses, "SELECT * FROM repurposing_statuses ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	return statuses, nil
}
