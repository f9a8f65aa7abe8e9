package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lumina-lms/lumina-authz/internal/app"
	"github.com/lumina-lms/lumina-authz/internal/authority"
	jobmetrics "github.com/lumina-lms/lumina-authz/internal/jobs"
	"github.com/lumina-lms/lumina-authz/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	authorityClient := authority.NewClient(cfg.AuthorityURL, cfg.AuthorityAPIKey, nil)
	metrics := jobmetrics.NewMetrics(nil)

	probeJob := jobs.NewPropagationProbeJob(authorityClient, logger, metrics)
	probeJob.Interval = cfg.PropagationInterval
	probeJob.MaxAttempts = cfg.PropagationMaxAttempts

	healthJob := &jobs.AuthorityHealthJob{Authority: authorityClient, Logger: logger, Metrics: metrics}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskClaimsPropagationProbe, Handler: probeJob.Handle},
			{Type: jobs.TaskAuthorityHealthProbe, Handler: healthJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/5 * * * *", Task: jobs.NewAuthorityHealthTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
