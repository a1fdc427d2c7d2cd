package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrProviderDown = errors.New("provider down (simulated)")

// LogNotifier writes messages to the structured log instead of sending mail.
type LogNotifier struct {
	log   *slog.Logger
	delay time.Duration
	fail  bool
}

type LogNotifierOptions struct {
	// Delay simulates a slow provider.
	Delay time.Duration
	// Fail simulates a provider outage.
	Fail bool
}

func NewLogNotifier(log *slog.Logger, opts LogNotifierOptions) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log, delay: opts.Delay, fail: opts.Fail}
}

func (n *LogNotifier) simulate(ctx context.Context) error {
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n.fail {
		return ErrProviderDown
	}
	return nil
}

func (n *LogNotifier) SendBookingConfirmation(ctx context.Context, in BookingConfirmationInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.booking_confirmation",
		"appointment_id", in.AppointmentID,
		"email", in.Email,
		"patient", in.PatientName,
		"clinic", in.ClinicName,
		"date", in.Date,
		"time", in.Time,
		"rescheduled", in.Rescheduled,
		"magic_link", in.MagicLink,
	)
	return nil
}

func (n *LogNotifier) SendStatusChange(ctx context.Context, in StatusChangeInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.status_change",
		"appointment_id", in.AppointmentID,
		"email", in.Email,
		"clinic", in.ClinicName,
		"date", in.Date,
		"time", in.Time,
		"from", in.From,
		"to", in.To,
	)
	return nil
}
