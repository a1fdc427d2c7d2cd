package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/domain/job"
	"github.com/geocoder89/clinicfinder/internal/jobs"
	"github.com/geocoder89/clinicfinder/internal/notifications"
	"github.com/geocoder89/clinicfinder/internal/observability"
)

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent job failure")

// ProcessOne claims and runs a single due job. It reports false when the
// queue had nothing to claim.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := w.now()
	err = w.execute(ctx, j)
	elapsed := w.now().Sub(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.observe(j.Type, result, elapsed)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.observe(j.Type, "failed", elapsed)
		return true, err
	}

	w.metrics.IncDone()
	w.observe(j.Type, "done", elapsed)
	w.log.Info("job done", "job_id", j.ID, "job_type", j.Type, "duration_ms", elapsed.Milliseconds())
	return true, nil
}

func (w *Worker) observe(jobType, result string, d time.Duration) {
	if w.prom == nil {
		return
	}
	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(d.Seconds())
}

// handleFailure reschedules with backoff or fails the job for good, and
// returns the metric result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	attempt := j.Attempts + 1
	limit := j.MaxAttempts
	if w.cfg.MaxAttempts > 0 && (limit <= 0 || w.cfg.MaxAttempts < limit) {
		limit = w.cfg.MaxAttempts
	}

	if errors.Is(cause, errPermanent) || attempt >= limit {
		w.metrics.IncFailed()
		w.metrics.IncDeadLettered()
		if err := w.repo.MarkFailed(ctx, j.ID, cause.Error()); err != nil {
			w.log.Error("mark failed failed", "job_id", j.ID, "err", err)
		}
		w.log.Warn("job failed", "job_id", j.ID, "job_type", j.Type, "attempt", attempt, "err", cause)
		return "failed"
	}

	delay := w.backoff(j.Attempts)
	w.metrics.IncRetried()
	if err := w.repo.Reschedule(ctx, j.ID, w.now().Add(delay), cause.Error()); err != nil {
		w.log.Error("reschedule failed", "job_id", j.ID, "err", err)
	}
	w.log.Warn("job retry scheduled", "job_id", j.ID, "job_type", j.Type, "attempt", attempt, "delay_ms", delay.Milliseconds(), "err", cause)
	return "retry"
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	t := jobs.JobType(j.Type)
	payload, err := jobs.DecodePayload(t, j.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	switch p := payload.(type) {
	case jobs.AppointmentBookedPayload:
		return w.sendBooked(ctx, p)
	case jobs.AppointmentStatusChangedPayload:
		err := w.notifier.SendStatusChange(ctx, notifications.StatusChangeInput{
			AppointmentID: p.AppointmentID,
			Email:         p.Email,
			PatientName:   p.PatientName,
			ClinicName:    p.ClinicName,
			Date:          p.Date,
			Time:          appointment.Format12Hour(p.Time),
			From:          appointment.Status(p.From).Display(),
			To:            appointment.Status(p.To).Display(),
		})
		if err == nil {
			w.metrics.IncNotified(observability.NotifyStatusChange)
		}
		return err
	default:
		return fmt.Errorf("%w: unhandled job type %q", errPermanent, j.Type)
	}
}

func (w *Worker) sendBooked(ctx context.Context, p jobs.AppointmentBookedPayload) error {
	in := notifications.BookingConfirmationInput{
		AppointmentID: p.AppointmentID,
		Email:         p.Email,
		PatientName:   p.PatientName,
		ClinicName:    p.ClinicName,
		Date:          p.Date,
		Time:          appointment.Format12Hour(p.Time),
		Rescheduled:   p.Rescheduled,
	}

	if w.links != nil {
		token, _, err := w.links.Issue(p.AppointmentID, p.Email)
		if err != nil {
			return fmt.Errorf("issue magic link: %w", err)
		}
		in.MagicLink = w.links.URL(token)
	}

	if err := w.notifier.SendBookingConfirmation(ctx, in); err != nil {
		return err
	}
	kind := observability.NotifyConfirmation
	if p.Rescheduled {
		kind = observability.NotifyReschedule
	}
	w.metrics.IncNotified(kind)
	return nil
}
