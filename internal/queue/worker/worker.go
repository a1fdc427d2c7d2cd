// Package worker drains the appointment notification outbox.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/job"
	"github.com/geocoder89/clinicfinder/internal/notifications"
	"github.com/geocoder89/clinicfinder/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// LinkIssuer mints the magic link sent with a booking confirmation.
type LinkIssuer interface {
	Issue(appointmentID int64, email string) (string, time.Time, error)
	URL(token string) string
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	Concurrency   int
	LockTTL       time.Duration
	ShutdownGrace time.Duration
	// MaxAttempts caps retries below a job's own limit when set.
	MaxAttempts int
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	links    LinkIssuer
	log      *slog.Logger
	metrics  *observability.JobMetrics
	prom     *observability.Prom
	backoff  func(attempt int) time.Duration
	now      func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, links LinkIssuer, log *slog.Logger, metrics *observability.JobMetrics, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		links:    links,
		log:      log.With("worker_id", cfg.WorkerID),
		metrics:  metrics,
		prom:     prom,
		backoff:  ExponentialBackoff,
		now:      time.Now,
		ready:    true,
	}
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Metrics() *observability.JobMetrics { return w.metrics }

// Run polls until ctx is cancelled, then waits up to ShutdownGrace for the
// jobs in hand to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.requeueStale(ctx)

	// in-flight jobs keep running after ctx is cancelled
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, jobCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(w.cfg.LockTTL)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				w.requeueStale(ctx)
			}
		}
	}()

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		cancelJobs()
		return errors.New("worker shutdown grace exceeded")
	}
}

func (w *Worker) loop(ctx, jobCtx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessOne(jobCtx)
		if err != nil {
			w.log.Error("process job failed", "err", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) requeueStale(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	n, err := w.repo.RequeueStaleProcessing(cctx, w.cfg.LockTTL)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("requeue stale jobs failed", "err", err)
		}
		return
	}
	if n > 0 {
		w.log.Info("requeued stale jobs", "count", n)
	}
}
