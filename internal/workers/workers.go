// Package workers hosts the three worker processes: the cron-driven
// scheduler and repeater, and the queue-bound former.
package workers

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/sentryx"
)

// Task type identifiers.
const (
	TypeSendPeriodic  = "notification:send_periodic"
	TypeSendScheduled = "notification:send_scheduled"
	TypeRepeater      = "notification:repeater"
)

// uniqueTickTTL bounds how long a pending tick blocks duplicates. It must
// stay below the tightest one-minute cron interval or the next tick would
// be rejected as a duplicate of the previous one.
const uniqueTickTTL = 30 * time.Second

// TickFunc is one cron tick of a worker.
type TickFunc func(ctx context.Context) error

// CronWorker pairs an asynq scheduler with a server so a single process
// both enqueues and runs its ticks. Tasks are registered unique, so
// overlapping ticks of the same name collapse into one.
type CronWorker struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
	mux       *asynq.ServeMux
	log       *logrus.Logger
	timeout   time.Duration
	keep      time.Duration
}

// NewCronWorker builds the pair against one Redis URL. concurrency bounds
// in-process parallel ticks; timeout cancels a tick that overruns.
func NewCronWorker(redisURL string, concurrency int, timeout, keepResult time.Duration, log *logrus.Logger) (*CronWorker, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	server := asynq.NewServer(redisOpt, asynq.Config{Concurrency: concurrency})

	return &CronWorker{
		scheduler: scheduler,
		server:    server,
		mux:       asynq.NewServeMux(),
		log:       log,
		timeout:   timeout,
		keep:      keepResult,
	}, nil
}

// Register schedules a tick on cronSpec and binds its handler.
func (w *CronWorker) Register(taskType, cronSpec string, tick TickFunc) error {
	task := asynq.NewTask(taskType, nil)
	if _, err := w.scheduler.Register(cronSpec, task, w.taskOptions()...); err != nil {
		return err
	}

	w.mux.HandleFunc(taskType, func(ctx context.Context, _ *asynq.Task) error {
		start := time.Now()
		if err := tick(ctx); err != nil {
			w.log.WithError(err).WithField("task", taskType).Error("Tick failed")
			sentryx.CaptureError(err, map[string]string{"task": taskType}, nil)
			return err
		}
		w.log.WithFields(logrus.Fields{
			"task":     taskType,
			"duration": time.Since(start).String(),
		}).Info("Tick completed")
		return nil
	})

	w.log.WithFields(logrus.Fields{"task": taskType, "schedule": cronSpec}).Info("Registered cron task")
	return nil
}

// taskOptions returns the enqueue options shared by all ticks. Uniqueness
// is time-bounded rather than ID-based: a fixed task ID would live on in
// the retained result and reject every later tick until retention expired.
func (w *CronWorker) taskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Unique(uniqueTickTTL),
		asynq.Timeout(w.timeout),
		asynq.Retention(w.keep),
	}
}

// Run starts the scheduler loop; blocks until Shutdown.
func (w *CronWorker) Run() error {
	return w.scheduler.Run()
}

// Serve starts the tick processor; blocks until Shutdown.
func (w *CronWorker) Serve() error {
	return w.server.Run(w.mux)
}

func (w *CronWorker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}
