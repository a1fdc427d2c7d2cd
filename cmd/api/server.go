package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/clinicfinder/internal/auth"
	"github.com/geocoder89/clinicfinder/internal/cache"
	"github.com/geocoder89/clinicfinder/internal/config"
	"github.com/geocoder89/clinicfinder/internal/db"
	httpx "github.com/geocoder89/clinicfinder/internal/http"
	"github.com/geocoder89/clinicfinder/internal/http/handlers"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/geocoder89/clinicfinder/internal/redisclient"
	"github.com/geocoder89/clinicfinder/internal/repo/postgres"
	"github.com/geocoder89/clinicfinder/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func runServer() error {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: "clinicfinder-api",
		Env:         cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	if created, err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	} else if created {
		log.Info("bootstrap admin created", "email", cfg.AdminEmail)
	}

	rdb, err := redisclient.New(redisclient.Config{
		URL:      cfg.RedisURL,
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	defer rdb.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	err = rdb.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)
	if err := rdb.RegisterMetrics(reg); err != nil {
		return err
	}

	jobsRepo := postgres.NewJobsRepo(pool, prom)

	router := httpx.NewRouter(httpx.Deps{
		Log:          log,
		Config:       cfg,
		Users:        postgres.NewUsersRepo(pool, prom),
		Clinics:      postgres.NewClinicsRepo(pool, prom),
		Doctors:      postgres.NewDoctorsRepo(pool, prom),
		Services:     postgres.NewServicesRepo(pool, prom),
		Appointments: postgres.NewAppointmentsRepo(pool, prom, jobsRepo),
		Managers:     postgres.NewManagersRepo(pool, prom),
		Jobs:         jobsRepo,
		Sessions:     session.NewManager(session.NewRedisStore(rdb.Raw()), cfg.SessionTTL),
		MagicLinks:   auth.NewMagicLinks(cfg.MagicLinkSecret, cfg.MagicLinkTTL, cfg.PublicBaseURL),
		Cache:        cache.New(cfg.CacheTTL, cfg.CacheMaxEntries),
		Prom:         prom,
		Gatherer:     reg,
		Checks: map[string]handlers.Pinger{
			"db":    pool.Ping,
			"redis": rdb.Ping,
		},
		Now:  time.Now,
		Stop: ctx.Done(),
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "timezone", cfg.Timezone.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}
