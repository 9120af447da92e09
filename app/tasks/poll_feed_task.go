package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/rss"
)

// PollFeedTask mirrors one source's web feed into the review queue.
type PollFeedTask struct {
	Task
	poller *rss.Poller
	source database.MonitoredSource
}

func NewPollFeedTask(poller *rss.Poller, source database.MonitoredSource) *PollFeedTask {
	return &PollFeedTask{
		Task:   NewTask(TaskTypePollFeed, source.DisplayName),
		poller: poller,
		source: source,
	}
}

func (t *PollFeedTask) Execute(ctx context.Context) error {
	saved, err := t.poller.PollSource(ctx, t.source)
	if err != nil {
		return fmt.Errorf("poll %q: %w", t.source.DisplayName, err)
	}

	if saved > 0 {
		slog.Info("Feed poll queued new entries",
			"source", t.source.DisplayName, "new", saved)
	}

	return nil
}
