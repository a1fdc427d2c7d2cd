package notifications

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) SendBookingConfirmation(ctx context.Context, in BookingConfirmationInput) error {
	s.calls++
	return s.err
}

func (s *stubNotifier) SendStatusChange(ctx context.Context, in StatusChangeInput) error {
	s.calls++
	return s.err
}

func TestProtectedNotifier_OpensAfterThresholdAndRecovers(t *testing.T) {
	inner := &stubNotifier{err: errors.New("smtp down")}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 2, Cooldown: time.Minute})

	clock := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	ctx := context.Background()
	in := BookingConfirmationInput{AppointmentID: 1, Email: "ana@example.com"}

	assert.Error(t, n.SendBookingConfirmation(ctx, in))
	assert.Equal(t, "closed", n.State())
	assert.Error(t, n.SendBookingConfirmation(ctx, in))
	assert.Equal(t, "open", n.State())

	// open circuit fails fast without calling the provider
	assert.ErrorIs(t, n.SendStatusChange(ctx, StatusChangeInput{}), ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)

	// after cooldown one trial call goes through and closes the circuit
	clock = clock.Add(time.Minute)
	inner.err = nil
	require.NoError(t, n.SendBookingConfirmation(ctx, in))
	assert.Equal(t, "closed", n.State())
	assert.Equal(t, 3, inner.calls)
}

func TestProtectedNotifier_HalfOpenFailureReopens(t *testing.T) {
	inner := &stubNotifier{err: errors.New("smtp down")}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 1, Cooldown: time.Second})

	clock := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	ctx := context.Background()
	assert.Error(t, n.SendStatusChange(ctx, StatusChangeInput{}))
	assert.Equal(t, "open", n.State())

	clock = clock.Add(time.Second)
	assert.Error(t, n.SendStatusChange(ctx, StatusChangeInput{}))
	assert.Equal(t, "open", n.State())
	assert.ErrorIs(t, n.SendStatusChange(ctx, StatusChangeInput{}), ErrCircuitOpen)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	n := NewLogNotifier(log, LogNotifierOptions{})
	require.NoError(t, n.SendBookingConfirmation(context.Background(), BookingConfirmationInput{
		AppointmentID: 12,
		Email:         "ana@example.com",
		MagicLink:     "http://localhost/appointments/magic/tok",
	}))
	assert.True(t, strings.Contains(buf.String(), "notification.booking_confirmation"))

	failing := NewLogNotifier(log, LogNotifierOptions{Fail: true})
	assert.ErrorIs(t, failing.SendStatusChange(context.Background(), StatusChangeInput{}), ErrProviderDown)

	slow := NewLogNotifier(log, LogNotifierOptions{Delay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, slow.SendStatusChange(ctx, StatusChangeInput{}), context.DeadlineExceeded)
}
