package observability

import (
	"sync/atomic"
	"time"
)

// NotificationKind labels what a finished job told the patient.
type NotificationKind string

const (
	NotifyConfirmation NotificationKind = "confirmation"
	NotifyReschedule   NotificationKind = "reschedule"
	NotifyStatusChange NotificationKind = "status_change"
)

// JobMetrics are in-process worker counters served on /stats. They reset
// when the worker restarts; Prometheus holds the durable series.
type JobMetrics struct {
	claimed      atomic.Uint64
	done         atomic.Uint64
	failed       atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64

	confirmations atomic.Uint64
	reschedules   atomic.Uint64
	statusChanges atomic.Uint64

	runs    atomic.Uint64
	totalNs atomic.Int64
	slowNs  atomic.Int64
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed()      { m.claimed.Add(1) }
func (m *JobMetrics) IncDone()         { m.done.Add(1) }
func (m *JobMetrics) IncFailed()       { m.failed.Add(1) }
func (m *JobMetrics) IncRetried()      { m.retried.Add(1) }
func (m *JobMetrics) IncDeadLettered() { m.deadLettered.Add(1) }

// IncNotified counts a delivered patient notification.
func (m *JobMetrics) IncNotified(kind NotificationKind) {
	switch kind {
	case NotifyConfirmation:
		m.confirmations.Add(1)
	case NotifyReschedule:
		m.reschedules.Add(1)
	case NotifyStatusChange:
		m.statusChanges.Add(1)
	}
}

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.runs.Add(1)
	m.totalNs.Add(ns)

	for {
		slowest := m.slowNs.Load()
		if ns <= slowest || m.slowNs.CompareAndSwap(slowest, ns) {
			return
		}
	}
}

type JobStats struct {
	Claimed      uint64 `json:"claimed"`
	Done         uint64 `json:"done"`
	Failed       uint64 `json:"failed"`
	Retried      uint64 `json:"retried"`
	DeadLettered uint64 `json:"deadLettered"`

	Confirmations uint64 `json:"confirmationsSent"`
	Reschedules   uint64 `json:"rescheduleNoticesSent"`
	StatusChanges uint64 `json:"statusNoticesSent"`

	Runs       uint64        `json:"runs"`
	AvgRun     time.Duration `json:"avgRunNs"`
	SlowestRun time.Duration `json:"slowestRunNs"`
}

func (m *JobMetrics) Snapshot() JobStats {
	runs := m.runs.Load()

	var avg time.Duration
	if runs > 0 {
		avg = time.Duration(m.totalNs.Load() / int64(runs))
	}

	return JobStats{
		Claimed:       m.claimed.Load(),
		Done:          m.done.Load(),
		Failed:        m.failed.Load(),
		Retried:       m.retried.Load(),
		DeadLettered:  m.deadLettered.Load(),
		Confirmations: m.confirmations.Load(),
		Reschedules:   m.reschedules.Load(),
		StatusChanges: m.statusChanges.Load(),
		Runs:          runs,
		AvgRun:        avg,
		SlowestRun:    time.Duration(m.slowNs.Load()),
	}
}
