package database

import (
	"fmt"
)

type topicRepository struct {
	db *DB
}

// NewTopicRepository creates a new focus topic repository
func NewTopicRepository(db *DB) TopicRepository {
	return &topicRepository{db: db}
}

// UpsertTopic inserts or updates a focus topic keyed by slug and returns its ID
func (r *topicRepository) UpsertTopic(slug, name, description string) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO focus_topics (slug, name, description)
		VALUES (?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			name = excluded.name,
			description = excluded.description
		RETURNING id
	`, slug, name, description).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert topic: %w", err)
	}
	return id, nil
}

// ListTopics returns all focus topics
func (r *topicRepository) ListTopics() ([]FocusTopic, error) {
	var topics []FocusTopic
	err := r.db.Select(&topics, "SELECT * FROM focus_topics ORDER BY slug")
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// SetArticleTopics replaces the topic tags on an article
func (r *topicRepository) SetArticleTopics(articleID int64, topicIDs []int64) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM article_topics WHERE article_id = ?", articleID); err != nil {
		return fmt.Errorf("failed to clear article topics: %w", err)
	}

	for _, topicID := range topicIDs {
		if _, err := tx.Exec(
			"INSERT INTO article_topics (article_id, topic_id) VALUES (?, ?)",
			articleID, topicID); err != nil {
			return fmt.Errorf("failed to tag article with topic %d: %w", topicID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit article topics: %w", err)
	}
	return nil
}

// GetArticleTopics returns the topics tagged on an article
func (r *topicRepository) GetArticleTopics(articleID int64) ([]FocusTopic, error) {
	var topics []FocusTopic
	err := r.db.Select(&topics, `
		SELECT t.* FROM focus_topics t
		JOIN article_topics at ON at.topic_id = t.id
		WHERE at.article_id = ?
		ORDER BY t.slug
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get article topics: %w", err)
	}
	return topics, nil
}
