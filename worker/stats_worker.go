package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"meetsync/utils"
)

// StatsWorker enqueues the periodic full stats sweep on a cron schedule, so
// scheduled work flows through the same queue as event-driven work.
type StatsWorker struct {
	Queue    Queue
	Schedule string
	Logger   *logrus.Logger
}

func NewStatsWorker(queue Queue, schedule string, logger *logrus.Logger) *StatsWorker {
	return &StatsWorker{Queue: queue, Schedule: schedule, Logger: logger}
}

func (sw *StatsWorker) Start(ctx context.Context) {
	c := cron.New()
	_, err := c.AddFunc(sw.Schedule, func() {
		task, err := NewTask(TaskSyncAllStats, struct{}{})
		if err != nil {
			utils.LogError("stats_sweep_enqueue_failed", err, map[string]interface{}{})
			return
		}
		if err := sw.Queue.Enqueue(task); err != nil {
			utils.LogError("stats_sweep_enqueue_failed", err, map[string]interface{}{
				"task_id": task.ID,
			})
			return
		}
		sw.Logger.WithField("task_id", task.ID).Info("stats sweep enqueued")
	})
	if err != nil {
		sw.Logger.Fatalf("invalid stats sync schedule %q: %v", sw.Schedule, err)
	}

	c.Start()
	sw.Logger.WithField("schedule", sw.Schedule).Info("stats worker started")

	<-ctx.Done()
	sw.Logger.Info("stats worker shutting down...")
	<-c.Stop().Done()
}
