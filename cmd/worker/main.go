package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/clinicfinder/internal/auth"
	"github.com/geocoder89/clinicfinder/internal/config"
	"github.com/geocoder89/clinicfinder/internal/db"
	"github.com/geocoder89/clinicfinder/internal/notifications"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/geocoder89/clinicfinder/internal/queue/worker"
	"github.com/geocoder89/clinicfinder/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := observability.NewLogger(cfg.Env).With("component", "worker")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log, notifications.LogNotifierOptions{
			Delay: cfg.NotifierDelay,
			Fail:  cfg.NotifierFail,
		}),
		notifications.ProtectedNotifierConfig{},
	)
	links := auth.NewMagicLinks(cfg.MagicLinkSecret, cfg.MagicLinkTTL, cfg.PublicBaseURL)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:      workerID,
		PollInterval:  cfg.WorkerPoll,
		Concurrency:   4,
		LockTTL:       time.Minute,
		ShutdownGrace: 10 * time.Second,
		MaxAttempts:   cfg.WorkerMaxAttempts,
	}, jobsRepo, notifier, links, log, observability.NewJobMetrics(), prom)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(pool.Ping, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", workerID, "health_port", cfg.WorkerHealthPort)

	runErr := w.Run(ctx)

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	if runErr != nil {
		log.Error("worker stopped with error", "err", runErr)
		return runErr
	}

	log.Info("worker shutdown complete")
	return nil
}
