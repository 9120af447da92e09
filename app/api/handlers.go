package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mlipovsky/lettermill/app/calendar"
	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/ingest"
	"github.com/mlipovsky/lettermill/app/mail"
	"github.com/mlipovsky/lettermill/app/review"
	"github.com/mlipovsky/lettermill/app/tasks"
)

func NewHandler(sources database.SourceRepository, queue database.QueueRepository,
	runs database.RunLogRepository, articles database.ArticleRepository,
	topics database.TopicRepository, reviewService *review.Service,
	coordinator *ingest.Coordinator, drafter tasks.Drafter,
	observer tasks.RunObserver, notifier tasks.RunNotifier,
	draftObserver tasks.DraftObserver, webhookObserver WebhookObserver,
	scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		sources:         sources,
		queue:           queue,
		runs:            runs,
		articles:        articles,
		topics:          topics,
		review:          reviewService,
		coordinator:     coordinator,
		drafter:         drafter,
		observer:        observer,
		notifier:        notifier,
		draftObserver:   draftObserver,
		webhookObserver: webhookObserver,
		scheduler:       scheduler,
		version:         version,
	}
}

var webhookHTMLText = mail.NewHTMLText()

func (h *Handler) countWebhook(status string) {
	if h.webhookObserver != nil {
		h.webhookObserver.ObserveWebhookMessage(status)
	}
}

// PostWebhookEmail is the manual/forwarded-email entry point. It shares the
// queue table with the coordinator path but performs no dedup: forwarded
// emails carry no external identifier.
func (h *Handler) PostWebhookEmail(c *gin.Context) {
	var req WebhookEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.countWebhook("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}

	bodyText := req.BodyText
	if bodyText == "" && req.BodyHTML != "" {
		if text, err := webhookHTMLText.Run(req.BodyHTML); err == nil {
			bodyText = text
		}
	}

	msg := &database.PendingMessage{
		Subject:     req.Subject,
		FromAddress: strings.ToLower(strings.TrimSpace(req.FromAddress)),
		FromName:    req.FromName,
		BodyText:    bodyText,
		BodyHTML:    req.BodyHTML,
		Status:      database.StatusPending,
		ReceivedAt:  time.Now().UTC(),
	}

	if err := h.queue.InsertPending(msg); err != nil {
		slog.Error("Database error", "operation", "webhook_insert", "error", err)
		h.countWebhook("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue message"})
		return
	}

	h.countWebhook("accepted")
	slog.Info("Webhook message queued", "id", msg.ID, "from", msg.FromAddress, "subject", msg.Subject)

	c.JSON(http.StatusCreated, gin.H{
		"id":     msg.ID,
		"status": msg.Status,
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sources.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	if articleCount, err := h.articles.GetArticleCount(); err == nil {
		health["articles"] = articleCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if queueStats, err := h.queue.GetQueueStats(); err == nil {
		stats["queue"] = queueStats
	}

	if sourceCount, err := h.sources.GetSourceCount(); err == nil {
		stats["sources"] = sourceCount
	}

	if articleCount, err := h.articles.GetArticleCount(); err == nil {
		stats["articles"] = articleCount
	}

	if runCount, err := h.runs.GetRunCount(); err == nil {
		stats["ingest_runs"] = runCount
	}

	c.JSON(http.StatusOK, stats)
}

// RunIngest triggers one coordinator pass in the background.
func (h *Handler) RunIngest(c *gin.Context) {
	var opts ingest.Options
	if maxStr := c.Query("max_per_source"); maxStr != "" {
		maxPerSource, err := strconv.Atoi(maxStr)
		if err != nil || maxPerSource < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max_per_source parameter"})
			return
		}
		opts.MaxPerSource = maxPerSource
	}
	if afterStr := c.Query("after"); afterStr != "" {
		after, err := time.Parse("2006-01-02", afterStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid after parameter, expected YYYY-MM-DD"})
			return
		}
		opts.AfterDate = &after
	}

	task := tasks.NewIngestTask(h.coordinator, opts, h.observer, h.notifier)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing ingest task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue ingest task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit := parseLimit(c, 50)

	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	entries := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, map[string]interface{}{
			"id":          run.ID,
			"run_at":      run.RunAt,
			"status":      run.Status,
			"found":       run.FoundCount,
			"new":         run.NewCount,
			"skipped":     run.SkippedCount,
			"error":       run.ErrorMessage,
			"duration_ms": run.DurationMs,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  entries,
		"total": len(entries),
	})
}

func (h *Handler) ListQueue(c *gin.Context) {
	status := c.Query("status")
	if status != "" && status != database.StatusPending && status != database.StatusApproved &&
		status != database.StatusDiscarded && status != database.StatusError {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status parameter"})
		return
	}

	limit := parseLimit(c, 100)

	messages, err := h.queue.ListPending(status, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_queue", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	entries := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		entry := map[string]interface{}{
			"id":           msg.ID,
			"subject":      msg.Subject,
			"from_address": msg.FromAddress,
			"from_name":    msg.FromName,
			"status":       msg.Status,
			"received_at":  msg.ReceivedAt,
		}
		if msg.ErrorMessage != "" {
			entry["error"] = msg.ErrorMessage
		}
		if msg.LinkedArticleID != nil {
			entry["linked_article_id"] = *msg.LinkedArticleID
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"messages": entries,
		"total":    len(entries),
	})
}

// ApproveQueueEntry runs extraction synchronously by default; with ?async=1
// the work is handed to the task queue and the entry's status is the way to
// observe the outcome.
func (h *Handler) ApproveQueueEntry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if c.Query("async") == "1" {
		task := tasks.NewExtractArticleTask(h.review, id)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing extract task", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue extraction"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"task":    gin.H{"id": task.ID, "type": task.Type},
		})
		return
	}

	article, err := h.review.Approve(c.Request.Context(), id)
	if err != nil {
		slog.Error("Approve failed", "id", id, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"article": articleJSON(article),
	})
}

func (h *Handler) DiscardQueueEntry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.review.Discard(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) RetryQueueEntry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.review.Retry(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ListArticles(c *gin.Context) {
	limit := parseLimit(c, 100)

	articles, err := h.articles.ListArticles(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	entries := make([]map[string]interface{}, 0, len(articles))
	for i := range articles {
		entries = append(entries, articleJSON(&articles[i]))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"articles": entries,
		"total":    len(entries),
	})
}

func (h *Handler) GetArticle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	article, err := h.articles.GetArticle(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	details := articleJSON(article)
	details["content"] = article.Content

	if topics, err := h.topics.GetArticleTopics(id); err == nil {
		slugs := make([]string, 0, len(topics))
		for _, topic := range topics {
			slugs = append(slugs, topic.Slug)
		}
		details["topics"] = slugs
	}

	c.JSON(http.StatusOK, details)
}

// CreateDraft generates one draft synchronously, or fans out one background
// task per format when format is "all".
func (h *Handler) CreateDraft(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}

	article, err := h.articles.GetArticle(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	if req.Format == "all" {
		queued := make([]gin.H, 0, len(calendar.Formats))
		for _, format := range calendar.Formats {
			task := tasks.NewGenerateDraftTask(h.drafter, h.articles, h.draftObserver, id, format)
			if err := h.scheduler.EnqueueTask(task); err != nil {
				slog.Error("Error enqueueing draft task", "article_id", id, "format", format, "error", err)
				continue
			}
			queued = append(queued, gin.H{"id": task.ID, "format": format})
		}

		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"tasks":   queued,
		})
		return
	}

	format := calendar.NormalizeFormat(req.Format)
	if !calendar.IsKnownFormat(format) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown format"})
		return
	}

	content, err := h.drafter.GenerateDraft(c.Request.Context(), format, article.Title, article.Summary, article.Content)
	if err != nil {
		slog.Error("Draft generation failed", "article_id", id, "format", format, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Draft generation failed", "details": err.Error()})
		return
	}

	draft := &database.GeneratedDraft{
		ArticleID: id,
		Format:    format,
		Content:   content,
		Model:     h.drafter.Model(),
	}

	if err := h.articles.InsertDraft(draft); err != nil {
		slog.Error("Database error", "operation", "insert_draft", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store draft"})
		return
	}

	if h.draftObserver != nil {
		h.draftObserver.ObserveDraftGenerated(format)
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         draft.ID,
		"article_id": draft.ArticleID,
		"format":     draft.Format,
		"content":    draft.Content,
		"model":      draft.Model,
	})
}

func (h *Handler) ListArticleDrafts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	drafts, err := h.articles.ListDrafts(id)
	if err != nil {
		slog.Error("Database error", "operation", "list_drafts", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	entries := make([]map[string]interface{}, 0, len(drafts))
	for _, draft := range drafts {
		entries = append(entries, map[string]interface{}{
			"id":         draft.ID,
			"format":     draft.Format,
			"content":    draft.Content,
			"model":      draft.Model,
			"created_at": draft.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"drafts": entries,
		"total":  len(entries),
	})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}

	format := calendar.NormalizeFormat(req.Format)
	if !calendar.IsKnownFormat(format) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown format"})
		return
	}

	if req.Status != calendar.StatusUntouched && req.Status != calendar.StatusInProgress &&
		req.Status != calendar.StatusDone {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	article, err := h.articles.GetArticle(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	now := time.Now().UTC()
	status := &database.RepurposingStatus{
		ArticleID: id,
		Format:    format,
		Status:    req.Status,
		UpdatedAt: &now,
	}

	if err := h.articles.UpsertStatus(status); err != nil {
		slog.Error("Database error", "operation", "upsert_status", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"article_id": id,
		"format":     format,
		"status":     req.Status,
	})
}

// GetCalendar assembles the three input collections from the store and runs
// the pure derivation.
func (h *Handler) GetCalendar(c *gin.Context) {
	articles, err := h.articles.ListArticles(0)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	statuses, err := h.articles.ListAllStatuses()
	if err != nil {
		slog.Error("Database error", "operation", "list_statuses", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	drafts, err := h.articles.ListAllDrafts()
	if err != nil {
		slog.Error("Database error", "operation", "list_drafts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	inputs := make([]calendar.ArticleInput, 0, len(articles))
	for _, article := range articles {
		inputs = append(inputs, calendar.ArticleInput{
			ID:         article.ID,
			Title:      article.Title,
			Source:     article.Source,
			ImportedAt: article.ImportedAt,
		})
	}

	statusRecords := make([]calendar.StatusRecord, 0, len(statuses))
	for _, status := range statuses {
		statusRecords = append(statusRecords, calendar.StatusRecord{
			ArticleID: status.ArticleID,
			Format:    status.Format,
			Status:    status.Status,
			UpdatedAt: status.UpdatedAt,
		})
	}

	draftRecords := make([]calendar.DraftRecord, 0, len(drafts))
	for _, draft := range drafts {
		draftRecords = append(draftRecords, calendar.DraftRecord{
			ArticleID: draft.ArticleID,
			Format:    draft.Format,
		})
	}

	entries := calendar.Derive(inputs, statusRecords, draftRecords)

	rows := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]interface{}{
			"id":           entry.ID,
			"title":        entry.Title,
			"source":       entry.Source,
			"imported_at":  entry.ImportedAt,
			"statuses":     entry.Statuses,
			"draft_counts": entry.DraftCounts,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"calendar": rows,
		"formats":  calendar.Formats,
		"total":    len(rows),
	})
}

func (h *Handler) ListTopics(c *gin.Context) {
	topics, err := h.topics.ListTopics()
	if err != nil {
		slog.Error("Database error", "operation", "list_topics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	entries := make([]map[string]interface{}, 0, len(topics))
	for _, topic := range topics {
		entries = append(entries, map[string]interface{}{
			"slug":        topic.Slug,
			"name":        topic.Name,
			"description": topic.Description,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"topics": entries,
		"total":  len(entries),
	})
}

func articleJSON(article *database.Article) map[string]interface{} {
	keyPoints := []string{}
	if article.KeyPoints != "" {
		keyPoints = strings.Split(article.KeyPoints, "\n")
	}

	return map[string]interface{}{
		"id":          article.ID,
		"title":       article.Title,
		"source":      article.Source,
		"summary":     article.Summary,
		"key_points":  keyPoints,
		"imported_at": article.ImportedAt,
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id parameter"})
		return 0, false
	}
	return id, true
}

func parseLimit(c *gin.Context, fallback int) int {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return fallback
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}
