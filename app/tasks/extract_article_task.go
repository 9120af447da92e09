package tasks

import (
	"context"
	"fmt"

	"github.com/mlipovsky/lettermill/app/review"
)

// ExtractArticleTask approves one queue entry in the background. No scheduler
// retries: a failed extraction parks the entry in the error state, and
// re-queueing it is an operator decision.
type ExtractArticleTask struct {
	Task
	service   *review.Service
	messageID int64
}

func NewExtractArticleTask(service *review.Service, messageID int64) *ExtractArticleTask {
	task := NewTask(TaskTypeExtractArticle, fmt.Sprintf("queue-%d", messageID))
	task.MaxRetries = 0

	return &ExtractArticleTask{
		Task:      task,
		service:   service,
		messageID: messageID,
	}
}

func (t *ExtractArticleTask) Execute(ctx context.Context) error {
	if _, err := t.service.Approve(ctx, t.messageID); err != nil {
		return fmt.Errorf("approve queue entry %d: %w", t.messageID, err)
	}

	return nil
}
