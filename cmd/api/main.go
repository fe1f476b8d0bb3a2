package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesops_backend/internal/email"
	"salesops_backend/internal/events"
	apphttp "salesops_backend/internal/http"
	"salesops_backend/internal/http/router"
	"salesops_backend/internal/jobs"
	"salesops_backend/internal/meetings"
	"salesops_backend/internal/pipeline"
	pipelinerepo "salesops_backend/internal/pipeline/repository"
	"salesops_backend/internal/provisioning"
	"salesops_backend/internal/scoring"
	"salesops_backend/internal/sms"
	"salesops_backend/migrations"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/config"
	"salesops_backend/platform/db"
	"salesops_backend/platform/logger"
	"salesops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	smsClient := sms.NewClient(cfg, log)

	// Shared validator instance for dependency injection
	val := validator.New()
	clk := clock.System{}

	// ========================================================================
	// External Product Integration
	// ========================================================================

	provClient := provisioning.NewClient(cfg, log)
	if provClient == nil {
		log.Warn("provisioning API not configured; trial accounts will not be created upstream")
	}
	workflowSync := provisioning.NewWorkflowSync(cfg, log)
	provisioning.RegisterWorkflowSync(eventBus, workflowSync, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	pipelineDeps := pipeline.Deps{
		Pool:          pool,
		Bus:           eventBus,
		Validator:     val,
		Clock:         clk,
		Logger:        log,
		FollowUpDelay: cfg.FollowUpDelay,
		Mailer:        sender,
	}
	if provClient != nil {
		pipelineDeps.Provisioner = provClient
		pipelineDeps.ContactSyncer = provClient
	}
	pipelineModule := pipeline.NewModule(pipelineDeps)

	meetingsModule := meetings.NewModule(meetings.Deps{
		Pool:      pool,
		Pipelines: pipelineModule.Service(),
		Bus:       eventBus,
		Validator: val,
		Clock:     clk,
		Logger:    log,
	})

	// ========================================================================
	// Batch Jobs
	// ========================================================================

	expectations, err := scoring.LoadExpectations(cfg.GetScoringExpectationsPath())
	if err != nil {
		log.Error("failed to load scoring expectations", "error", err, "path", cfg.GetScoringExpectationsPath())
		panic("failed to load scoring expectations: " + err.Error())
	}

	var redisClient *redis.Client
	if cfg.GetRedisURL() != "" {
		opt, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			log.Error("invalid REDIS_URL", "error", err)
			panic("invalid REDIS_URL: " + err.Error())
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
	} else {
		log.Warn("REDIS_URL not configured; job run locks disabled")
	}

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
	jobsModule := jobs.NewModule(runner)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			pipelineModule,
			meetingsModule,
			jobsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
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
				return errors.New(name + " aborted: " + ctx.Err().Error())
			case <-time.After(delay):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
