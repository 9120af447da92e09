package api

import (
	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/ingest"
	"github.com/mlipovsky/lettermill/app/review"
	"github.com/mlipovsky/lettermill/app/tasks"
)

// WebhookObserver counts direct-ingestion traffic.
type WebhookObserver interface {
	ObserveWebhookMessage(status string)
}

type Handler struct {
	sources  database.SourceRepository
	queue    database.QueueRepository
	runs     database.RunLogRepository
	articles database.ArticleRepository
	topics   database.TopicRepository

	review      *review.Service
	coordinator *ingest.Coordinator
	drafter     tasks.Drafter
	observer    tasks.RunObserver
	notifier    tasks.RunNotifier
	scheduler   tasks.TaskSchedulerInterface

	draftObserver   tasks.DraftObserver
	webhookObserver WebhookObserver
	version         string
}

// WebhookEmailRequest is the payload of the direct ingestion path: a manually
// forwarded email posted by an external automation.
type WebhookEmailRequest struct {
	Subject     string `json:"subject" binding:"required"`
	FromAddress string `json:"from_address" binding:"required"`
	FromName    string `json:"from_name"`
	BodyText    string `json:"body_text"`
	BodyHTML    string `json:"body_html"`
}

// StatusUpdateRequest moves one article+format cell on the kanban calendar.
type StatusUpdateRequest struct {
	Format string `json:"format" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// DraftRequest asks for draft generation. Format "all" fans out one background
// task per known format.
type DraftRequest struct {
	Format string `json:"format" binding:"required"`
}
