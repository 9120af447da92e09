package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API layer to manage background task
// processing. Example usage:
//
//	scheduler := NewScheduler(coordinator, poller, sourceRepo, observer, notifier)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewIngestTask(coordinator, opts, observer, notifier))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
