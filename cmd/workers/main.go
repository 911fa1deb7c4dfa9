// Package main is the entry point for the worker processes. The worker
// type is picked on the command line:
//
//	workers scheduler
//	workers repeater
//	workers former <queue_name>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/moviehub/notify/internal/auth"
	"github.com/moviehub/notify/internal/broker"
	"github.com/moviehub/notify/internal/config"
	"github.com/moviehub/notify/internal/database"
	"github.com/moviehub/notify/internal/dedup"
	"github.com/moviehub/notify/internal/former"
	"github.com/moviehub/notify/internal/logging"
	"github.com/moviehub/notify/internal/models"
	"github.com/moviehub/notify/internal/render"
	"github.com/moviehub/notify/internal/repeater"
	"github.com/moviehub/notify/internal/repository"
	"github.com/moviehub/notify/internal/routing"
	"github.com/moviehub/notify/internal/scheduler"
	"github.com/moviehub/notify/internal/sender"
	"github.com/moviehub/notify/internal/sentryx"
	"github.com/moviehub/notify/internal/shortener"
	"github.com/moviehub/notify/internal/subscribers"
	"github.com/moviehub/notify/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logging.New()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: workers <scheduler|repeater|former> [queue_name]")
		os.Exit(1)
	}
	workerType := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := sentryx.Init(cfg.SentryDSN, "worker-"+workerType); err != nil {
		log.Fatalf("Failed to initialize sentry: %v", err)
	}
	defer sentryx.Flush(2 * time.Second)

	switch workerType {
	case "scheduler":
		runScheduler(cfg, log)
	case "repeater":
		runRepeater(cfg, log)
	case "former":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: workers former <queue_name>")
			os.Exit(1)
		}
		queue := os.Args[2]
		if !routing.KnownQueue(queue) {
			fmt.Fprintf(os.Stderr, "unknown queue name: %s\n", queue)
			os.Exit(1)
		}
		runFormer(cfg, queue, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown worker type: %s\n", workerType)
		os.Exit(1)
	}
}

func runScheduler(cfg *config.Settings, log *logrus.Logger) {
	db, err := database.NewConnection(database.Config{DSN: cfg.DatabaseDSN()}, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	brokerClient, err := broker.Connect(cfg.RabbitMQURL(), log)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer func() { _ = brokerClient.Close() }()

	scheduled := repository.NewScheduledRepository(db.DB)
	periodic := repository.NewPeriodicRepository(db.DB)
	registry := subscribers.NewDefaultRegistry(userService(cfg))

	sched := scheduler.New(
		scheduled, periodic, registry, brokerClient, log,
		cfg.ScheduledBatchSize, subscribers.DefaultBatchSize,
	)

	cron, err := workers.NewCronWorker(cfg.RedisURL(), cfg.MaxJobs, cfg.JobTimeout, cfg.JobKeepResult, log)
	if err != nil {
		log.Fatalf("Failed to create cron worker: %v", err)
	}
	if err := cron.Register(workers.TypeSendPeriodic, cfg.PeriodicSchedule, sched.SendPeriodic); err != nil {
		log.Fatalf("Failed to register periodic task: %v", err)
	}
	if err := cron.Register(workers.TypeSendScheduled, cfg.ScheduledSchedule, sched.SendScheduled); err != nil {
		log.Fatalf("Failed to register scheduled task: %v", err)
	}

	runCron(cron, log, "scheduler")
}

func runRepeater(cfg *config.Settings, log *logrus.Logger) {
	store, err := dedup.NewRedisStore(cfg.RedisAddr(), "", cfg.RedisDB, cfg.RedisMessageTTL, log)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer func() { _ = store.Close() }()

	brokerClient, err := broker.Connect(cfg.RabbitMQURL(), log)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer func() { _ = brokerClient.Close() }()

	rep := repeater.New(store, brokerClient, log, cfg.RepeaterBatchSize)

	cron, err := workers.NewCronWorker(cfg.RedisURL(), cfg.MaxJobs, cfg.JobTimeout, cfg.JobKeepResult, log)
	if err != nil {
		log.Fatalf("Failed to create cron worker: %v", err)
	}
	if err := cron.Register(workers.TypeRepeater, cfg.RepeaterSchedule, rep.Tick); err != nil {
		log.Fatalf("Failed to register repeater task: %v", err)
	}

	runCron(cron, log, "repeater")
}

func runFormer(cfg *config.Settings, queue string, log *logrus.Logger) {
	db, err := database.NewConnection(database.Config{DSN: cfg.DatabaseDSN()}, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	store, err := dedup.NewRedisStore(cfg.RedisAddr(), "", cfg.RedisDB, cfg.RedisMessageTTL, log)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer func() { _ = store.Close() }()

	brokerClient, err := broker.Connect(cfg.RabbitMQURL(), log)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer func() { _ = brokerClient.Close() }()

	short, err := shortener.New(shortener.Provider(cfg.ShortenerService))
	if err != nil {
		log.Fatalf("Failed to build shortener: %v", err)
	}

	senders := sender.NewRegistry(log)
	senders.Register(models.ChannelEmail, sender.NewEmailSender(sender.EmailConfig{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	}, log))
	senders.Register(models.ChannelSMS, nil)
	senders.Register(models.ChannelPush, nil)

	f := former.New(
		former.Config{
			Queue:          queue,
			DefaultSubject: cfg.DefaultNotificationSubject,
			OnPanic: func(queue string, raw []byte, recovered any) {
				sentryx.CapturePanic(recovered,
					map[string]string{"queue": queue},
					map[string]any{"raw_body": string(raw)},
				)
			},
		},
		repository.NewTemplateRepository(db.DB, render.Validate),
		repository.NewScheduledRepository(db.DB),
		repository.NewPeriodicRepository(db.DB),
		store,
		userService(cfg),
		render.New(short, log),
		senders,
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := workers.NewFormerWorker(queue, brokerClient, f, log)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Former stopped: %v", err)
	}
	log.Info("Former stopped")
}

func runCron(cron *workers.CronWorker, log *logrus.Logger, name string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, _ := errgroup.WithContext(ctx)
	g.Go(cron.Run)
	g.Go(cron.Serve)

	<-ctx.Done()
	log.Infof("Shutting down %s...", name)
	cron.Shutdown()

	if err := g.Wait(); err != nil {
		log.Errorf("Worker exited with error: %v", err)
	}
	log.Infof("%s stopped", name)
}

func userService(cfg *config.Settings) auth.Service {
	if cfg.MockAuthService {
		return auth.NewMockService()
	}
	return auth.NewClient(cfg.AuthServiceURL)
}
