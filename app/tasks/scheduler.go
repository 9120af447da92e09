package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mlipovsky/lettermill/app/cfg"
	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/ingest"
	"github.com/mlipovsky/lettermill/app/rss"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	coordinator *ingest.Coordinator
	poller      *rss.Poller
	sources     database.SourceRepository
	observer    RunObserver
	notifier    RunNotifier

	maxPerSource   int
	ingestInterval time.Duration
	pollInterval   time.Duration
	workerCount    int

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(coordinator *ingest.Coordinator, poller *rss.Poller,
	sources database.SourceRepository, observer RunObserver, notifier RunNotifier) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		coordinator:    coordinator,
		poller:         poller,
		sources:        sources,
		observer:       observer,
		notifier:       notifier,
		maxPerSource:   cfg.IngestMaxPerSource,
		ingestInterval: time.Duration(cfg.IngestInterval) * time.Second,
		pollInterval:   time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:    cfg.WorkerCount,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// A zero ingest interval disables scheduled runs; a nil channel
		// never fires.
		var ingestTick <-chan time.Time
		if s.ingestInterval > 0 {
			ingestTicker := time.NewTicker(s.ingestInterval)
			defer ingestTicker.Stop()
			ingestTick = ingestTicker.C

			s.enqueueIngestTask()
		}

		pollTicker := time.NewTicker(s.pollInterval)
		defer pollTicker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ingestTick:
				s.enqueueIngestTask()
			case <-pollTicker.C:
				s.enqueuePollTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueIngestTask() {
	task := NewIngestTask(s.coordinator, ingest.Options{MaxPerSource: s.maxPerSource}, s.observer, s.notifier)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue IngestTask", "error", err)
	}
}

func (s *Scheduler) enqueuePollTasks() {
	due, err := s.sources.GetSourcesDueForPoll()
	if err != nil {
		slog.Warn("Failed to get pollable sources", "error", err)
		return
	}

	if len(due) == 0 {
		slog.Debug("No sources due for feed poll")
		return
	}

	for _, source := range due {
		task := NewPollFeedTask(s.poller, source)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue PollFeedTask", "source", source.DisplayName, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
