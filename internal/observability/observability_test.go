package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no rows", pgx.ErrNoRows, "no_rows"},
		{"wrapped no rows", fmt.Errorf("get clinic: %w", pgx.ErrNoRows), "no_rows"},
		{"slot taken", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_uniq"}, "slot_taken"},
		{"email taken", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_uniq"}, "email_taken"},
		{"other unique", &pgconn.PgError{Code: "23505", ConstraintName: "services_clinic_name_uniq"}, "unique_violation"},
		{"fk", &pgconn.PgError{Code: "23503"}, "foreign_key_violation"},
		{"unknown code", &pgconn.PgError{Code: "22001"}, "pg_22001"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"connection", errors.New("failed to connect: connection refused"), "connection"},
		{"other", errors.New("boom"), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyDBErr(tc.err))
		})
	}
}

func TestObserveDB_CountsErrorsByClass(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("appointments.book", func() error {
		return &pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_uniq"}
	})
	require.Error(t, err)
	require.NoError(t, p.ObserveDB("appointments.book", func() error { return nil }))

	assert.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("appointments.book", "slot_taken")))
}

func TestObserveDB_NilPromRunsFn(t *testing.T) {
	var p *Prom
	called := false
	require.NoError(t, p.ObserveDB("x", func() error { called = true; return nil }))
	assert.True(t, called)
}

func TestJobMetrics_Snapshot(t *testing.T) {
	m := NewJobMetrics()

	var wg sync.WaitGroup
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(d time.Duration) {
			defer wg.Done()
			m.IncClaimed()
			m.ObserveDuration(d)
		}(time.Duration(i) * 10 * time.Millisecond)
	}
	wg.Wait()

	m.IncDone()
	m.IncRetried()
	m.IncNotified(NotifyConfirmation)
	m.IncNotified(NotifyReschedule)
	m.IncNotified(NotifyStatusChange)
	m.IncNotified(NotifyStatusChange)

	s := m.Snapshot()
	assert.Equal(t, uint64(4), s.Claimed)
	assert.Equal(t, uint64(1), s.Done)
	assert.Equal(t, uint64(1), s.Retried)
	assert.Equal(t, uint64(1), s.Confirmations)
	assert.Equal(t, uint64(1), s.Reschedules)
	assert.Equal(t, uint64(2), s.StatusChanges)
	assert.Equal(t, uint64(4), s.Runs)
	assert.Equal(t, 25*time.Millisecond, s.AvgRun)
	assert.Equal(t, 40*time.Millisecond, s.SlowestRun)
}

func TestContextHandler_AddsPrincipalAndSpan(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "test")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithLogAttrs(ctx, slog.Int64("principal_id", 7))
	ctx = WithLogAttrs(ctx, slog.String("role", "clinic_manager"))

	log.InfoContext(ctx, "appointment_approved", "appointment_id", 42)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), buf.String())
	assert.Equal(t, "clinicfinder", rec["service"])
	assert.Equal(t, sc.TraceID().String(), rec["trace_id"])
	assert.Equal(t, sc.SpanID().String(), rec["span_id"])
	assert.Equal(t, float64(7), rec["principal_id"])
	assert.Equal(t, "clinic_manager", rec["role"])
	assert.Equal(t, float64(42), rec["appointment_id"])
}

func TestContextHandler_PlainContext(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "test").InfoContext(context.Background(), "worker_started")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "trace_id")
	assert.NotContains(t, rec, "principal_id")
}

func TestWithLogAttrs_DoesNotLeakIntoParent(t *testing.T) {
	parent := WithLogAttrs(context.Background(), slog.String("a", "1"))
	_ = WithLogAttrs(parent, slog.String("b", "2"))

	attrs, _ := parent.Value(logAttrsKey{}).([]slog.Attr)
	require.Len(t, attrs, 1)
	assert.Equal(t, "a", attrs[0].Key)
}

func TestTracerConfig_Sampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "ParentBased{root:AlwaysOffSampler"},
		{1, "ParentBased{root:AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tc := range tests {
		got := TracerConfig{SampleRatio: tc.ratio}.sampler().Description()
		assert.Contains(t, got, tc.want)
	}
}

func TestInitTracer_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracerConfig{ServiceName: "clinicfinder-api"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
