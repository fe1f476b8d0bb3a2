// The worker runs the periodic batch jobs (auto-kill, reminders, weekly
// scoring, reconcile) on an asynq server, with a co-located scheduler
// enqueueing them on their cron schedule. The API's /cron endpoints hit
// the same runner, so either entry point can drive a run.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesops_backend/internal/email"
	"salesops_backend/internal/events"
	"salesops_backend/internal/jobs"
	"salesops_backend/internal/meetings"
	"salesops_backend/internal/pipeline"
	pipelinerepo "salesops_backend/internal/pipeline/repository"
	"salesops_backend/internal/provisioning"
	"salesops_backend/internal/scoring"
	"salesops_backend/internal/sms"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/config"
	"salesops_backend/platform/db"
	"salesops_backend/platform/logger"
	"salesops_backend/platform/validator"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GetRedisURL() == "" {
		log.Error("REDIS_URL not configured; worker cannot run")
		panic("REDIS_URL not configured")
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}
	smsClient := sms.NewClient(cfg, log)

	// Auto-kill publishes status changes; the workflow mirror must hear
	// them from this process too.
	workflowSync := provisioning.NewWorkflowSync(cfg, log)
	provisioning.RegisterWorkflowSync(eventBus, workflowSync, log)

	val := validator.New()
	clk := clock.System{}

	// The jobs drive pipeline transitions through the same services the
	// API uses; no HTTP routes are registered here.
	pipelineModule := pipeline.NewModule(pipeline.Deps{
		Pool:          pool,
		Bus:           eventBus,
		Validator:     val,
		Clock:         clk,
		Logger:        log,
		FollowUpDelay: cfg.FollowUpDelay,
		Mailer:        sender,
	})
	meetingsModule := meetings.NewModule(meetings.Deps{
		Pool:      pool,
		Pipelines: pipelineModule.Service(),
		Bus:       eventBus,
		Validator: val,
		Clock:     clk,
		Logger:    log,
	})

	expectations, err := scoring.LoadExpectations(cfg.GetScoringExpectationsPath())
	if err != nil {
		log.Error("failed to load scoring expectations", "error", err, "path", cfg.GetScoringExpectationsPath())
		panic("failed to load scoring expectations: " + err.Error())
	}

	redisOpt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	var reminderSMS jobs.ReminderSMS
	if smsClient != nil {
		reminderSMS = smsClient
	}

	pipelineRepo := pipelinerepo.New(pool)
	runner := jobs.NewRunner(
		jobs.NewAutoKillJob(pipelineRepo, eventBus, clk, log),
		jobs.NewReminderJob(meetingsModule.Service(), pipelineRepo, sender, reminderSMS, cfg.GetReminderSendRate(), cfg.GetReminderSendBurst(), clk, log),
		jobs.NewScoringJob(scoring.NewRepository(pool), expectations, clk, log),
		jobs.NewReconcileJob(meetingsModule.Service(), log),
		jobs.NewRunLock(redisClient, log),
	)

	asynqOpt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}

	queue := cfg.GetSchedulerQueue()
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.GetSchedulerConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	scheduler := asynq.NewScheduler(asynqOpt, &asynq.SchedulerOpts{})
	for _, entry := range jobs.PeriodicEntries() {
		if _, err := scheduler.Register(entry.Spec, asynq.NewTask(entry.Type, nil), asynq.Queue(queue)); err != nil {
			log.Error("failed to register periodic task", "task", entry.Type, "error", err)
			panic("failed to register periodic task: " + err.Error())
		}
	}
	if err := scheduler.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		panic("failed to start scheduler: " + err.Error())
	}
	defer scheduler.Shutdown()

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, stopping worker")
		server.Shutdown()
	}()

	log.Info("worker listening", "queue", queue, "concurrency", concurrency)
	if err := server.Run(jobs.NewMux(runner)); err != nil {
		log.Error("worker stopped", "error", err)
		panic("worker stopped: " + err.Error())
	}
}

// withRetry runs fn up to attempts times with exponential backoff, so a
// cold start does not lose the race against the database container.
func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			log.Warn(name+" failed, retrying", "attempt", attempt, "error", err)
			delay := baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		return nil
	}
	return lastErr
}
