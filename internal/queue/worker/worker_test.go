package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/domain/job"
	"github.com/geocoder89/clinicfinder/internal/jobs"
	"github.com/geocoder89/clinicfinder/internal/notifications"
	"github.com/geocoder89/clinicfinder/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	bookings []notifications.BookingConfirmationInput
	changes  []notifications.StatusChangeInput
}

func (f *fakeNotifier) SendBookingConfirmation(ctx context.Context, in notifications.BookingConfirmationInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings = append(f.bookings, in)
	return f.err
}

func (f *fakeNotifier) SendStatusChange(ctx context.Context, in notifications.StatusChangeInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, in)
	return f.err
}

type fakeLinks struct{}

func (fakeLinks) Issue(appointmentID int64, email string) (string, time.Time, error) {
	return "tok", time.Now().Add(time.Hour), nil
}

func (fakeLinks) URL(token string) string { return "http://localhost/appointments/magic/" + token }

func sampleAppointment() appointment.Appointment {
	return appointment.Appointment{
		ID:         7,
		ClinicID:   3,
		ClinicName: "Harbor Clinic",
		Date:       "2026-10-20",
		Time:       "14:30",
		Status:     appointment.StatusApproved,
		FirstName:  "Ana",
		LastName:   "Cruz",
		Email:      "ana@example.com",
	}
}

func newTestWorker(t *testing.T, n notifications.Notifier) (*Worker, *memory.JobsRepo) {
	t.Helper()
	repo := memory.NewDB().Jobs()
	w := New(Config{WorkerID: "test"}, repo, n, fakeLinks{}, nil, nil, nil)
	w.backoff = func(int) time.Duration { return time.Hour }
	return w, repo
}

func enqueue(t *testing.T, repo *memory.JobsRepo, req job.CreateRequest, err error) job.Job {
	t.Helper()
	require.NoError(t, err)
	j, err := repo.Create(context.Background(), req)
	require.NoError(t, err)
	return j
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	w, _ := newTestWorker(t, &fakeNotifier{})

	processed, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessOne_BookedSendsConfirmationWithMagicLink(t *testing.T) {
	n := &fakeNotifier{}
	w, repo := newTestWorker(t, n)

	req, err := jobs.BookedJob(sampleAppointment())
	j := enqueue(t, repo, req, err)

	processed, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, n.bookings, 1)
	got := n.bookings[0]
	assert.Equal(t, int64(7), got.AppointmentID)
	assert.Equal(t, "2:30 PM", got.Time)
	assert.Equal(t, "Ana Cruz", got.PatientName)
	assert.Equal(t, "http://localhost/appointments/magic/tok", got.MagicLink)

	stored, err := repo.GetByID(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusDone, stored.Status)
	stats := w.Metrics().Snapshot()
	assert.Equal(t, uint64(1), stats.Done)
	assert.Equal(t, uint64(1), stats.Confirmations)
	assert.Zero(t, stats.Reschedules)
}

func TestProcessOne_StatusChangeUsesDisplayLabels(t *testing.T) {
	n := &fakeNotifier{}
	w, repo := newTestWorker(t, n)

	req, err := jobs.StatusChangedJob(sampleAppointment(), appointment.StatusPendingApproval, 1)
	enqueue(t, repo, req, err)

	_, err = w.ProcessOne(context.Background())
	require.NoError(t, err)

	require.Len(t, n.changes, 1)
	assert.Equal(t, "scheduled", n.changes[0].From)
	assert.Equal(t, "approved", n.changes[0].To)
	assert.Equal(t, uint64(1), w.Metrics().Snapshot().StatusChanges)
}

func TestProcessOne_FailureReschedulesWithBackoff(t *testing.T) {
	n := &fakeNotifier{err: errors.New("provider down")}
	w, repo := newTestWorker(t, n)

	req, err := jobs.BookedJob(sampleAppointment())
	req.MaxAttempts = 2
	j := enqueue(t, repo, req, err)

	processed, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := repo.GetByID(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.True(t, stored.RunAt.After(time.Now().Add(30*time.Minute)))
	require.NotNil(t, stored.LastError)

	// rescheduled into the future, so nothing is due
	processed, err = w.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessOne_LastAttemptMarksFailed(t *testing.T) {
	n := &fakeNotifier{err: errors.New("provider down")}
	w, repo := newTestWorker(t, n)

	req, err := jobs.BookedJob(sampleAppointment())
	req.MaxAttempts = 1
	j := enqueue(t, repo, req, err)

	_, err = w.ProcessOne(context.Background())
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, stored.Status)
	assert.Equal(t, uint64(1), w.Metrics().Snapshot().DeadLettered)
}

func TestProcessOne_BadPayloadFailsPermanently(t *testing.T) {
	n := &fakeNotifier{}
	w, repo := newTestWorker(t, n)

	j := enqueue(t, repo, job.CreateRequest{
		Type:    string(jobs.JobAppointmentBooked),
		Payload: []byte(`{"appointmentId":0}`),
	}, nil)

	_, err := w.ProcessOne(context.Background())
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, stored.Status)
	assert.Empty(t, n.bookings)
}

func TestRun_DrainsAndStops(t *testing.T) {
	n := &fakeNotifier{}
	w, repo := newTestWorker(t, n)
	w.cfg.PollInterval = 5 * time.Millisecond

	req, err := jobs.BookedJob(sampleAppointment())
	j := enqueue(t, repo, req, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		stored, err := repo.GetByID(context.Background(), j.ID)
		return err == nil && stored.Status == job.StatusDone
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.False(t, w.Ready())
}

func TestHealthHandler_Readiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w, _ := newTestWorker(t, &fakeNotifier{})
	dbDown := false
	h := w.HealthHandler(func(ctx context.Context) error {
		if dbDown {
			return errors.New("down")
		}
		return nil
	}, nil)

	get := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/healthz"))
	assert.Equal(t, http.StatusOK, get("/readyz"))

	dbDown = true
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz"))

	dbDown = false
	w.setReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz"))
	assert.Equal(t, http.StatusOK, get("/stats"))
}

func TestExponentialBackoff(t *testing.T) {
	d := ExponentialBackoff(0)
	assert.GreaterOrEqual(t, d, 2*time.Second)
	assert.Less(t, d, 2*time.Second+250*time.Millisecond)

	d = ExponentialBackoff(3)
	assert.GreaterOrEqual(t, d, 16*time.Second)

	d = ExponentialBackoff(40)
	assert.GreaterOrEqual(t, d, 5*time.Minute)
	assert.Less(t, d, 5*time.Minute+250*time.Millisecond)
}
