package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlipovsky/lettermill/app/ingest"
)

// RunObserver receives the outcome of each ingest run, for metrics.
type RunObserver interface {
	ObserveIngestRun(result ingest.Result)
}

// RunNotifier pushes an operator notification after an ingest run.
type RunNotifier interface {
	NotifyIngestRun(ctx context.Context, result ingest.Result)
}

// IngestTask runs one coordinator pass. It never retries: the coordinator
// reports failures in its result and the next scheduled run (or a manual
// trigger) is the retry.
type IngestTask struct {
	Task
	coordinator *ingest.Coordinator
	opts        ingest.Options
	observer    RunObserver
	notifier    RunNotifier
}

func NewIngestTask(coordinator *ingest.Coordinator, opts ingest.Options,
	observer RunObserver, notifier RunNotifier) *IngestTask {
	task := NewTask(TaskTypeIngest, "ingest")
	task.MaxRetries = 0

	return &IngestTask{
		Task:        task,
		coordinator: coordinator,
		opts:        opts,
		observer:    observer,
		notifier:    notifier,
	}
}

func (t *IngestTask) Execute(ctx context.Context) error {
	result := t.coordinator.Run(ctx, t.opts)

	if t.observer != nil {
		t.observer.ObserveIngestRun(result)
	}

	if t.notifier != nil && result.New > 0 {
		t.notifier.NotifyIngestRun(ctx, result)
	}

	if result.Found == 0 && len(result.Errors) > 0 {
		return fmt.Errorf("ingest run failed: %s", result.Errors[0])
	}

	slog.Debug("Ingest task finished",
		"found", result.Found, "new", result.New, "skipped", result.Skipped)

	return nil
}
