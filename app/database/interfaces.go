package database

import (
	"time"
)

type SourceRepository interface {
	UpsertSource(displayName, emailAddress, feedURL string, isActive bool, pollInterval int) (int64, error)
	GetActiveSources() ([]MonitoredSource, error)
	GetSourcesDueForPoll() ([]MonitoredSource, error)
	RecordIngested(sourceID int64, at time.Time) error
	UpdatePolledAt(sourceID int64, at time.Time) error
	GetSourceCount() (int, error)
}

type QueueRepository interface {
	InsertPending(msg *PendingMessage) error
	GetPending(id int64) (*PendingMessage, error)
	ListPending(status string, limit int) ([]PendingMessage, error)
	FilterExistingExternalIDs(ids []string) (map[string]bool, error)

	MarkApproved(id int64, articleID int64) error
	MarkDiscarded(id int64) error
	MarkError(id int64, errorMessage string) error
	MarkPending(id int64) error

	GetQueueStats() (map[string]int, error)
}

type RunLogRepository interface {
	InsertRunLog(entry *IngestRunLog) error
	ListRuns(limit int) ([]IngestRunLog, error)
	GetRunCount() (int, error)
}

type ArticleRepository interface {
	InsertArticle(article *Article) error
	GetArticle(id int64) (*Article, error)
	ListArticles(limit int) ([]Article, error)
	GetArticleCount() (int, error)

	InsertDraft(draft *GeneratedDraft) error
	ListDrafts(articleID int64) ([]GeneratedDraft, error)
	ListAllDrafts() ([]GeneratedDraft, error)

	UpsertStatus(status *RepurposingStatus) error
	ListAllStatuses() ([]RepurposingStatus, error)
}

type TopicRepository interface {
	UpsertTopic(slug, name, description string) (int64, error)
	ListTopics() ([]FocusTopic, error)
	SetArticleTopics(articleID int64, topicIDs []int64) error
	GetArticleTopics(articleID int64) ([]FocusTopic, error)
}
