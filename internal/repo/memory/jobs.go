package memory

import (
	"context"
	"sort"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/job"
)

type JobsRepo struct {
	db *DB
}

func (r *JobsRepo) Create(_ context.Context, req job.CreateRequest) (job.Job, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	j := job.New(req)
	r.db.jobs[j.ID] = j
	return j, nil
}

func (r *JobsRepo) ClaimNext(_ context.Context, workerID string) (job.Job, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()
	var next *job.Job
	for _, j := range r.db.jobs {
		if j.Status != job.StatusPending || j.RunAt.After(now) || j.Attempts >= j.MaxAttempts {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) || (j.RunAt.Equal(next.RunAt) && j.CreatedAt.Before(next.CreatedAt)) {
			jj := j
			next = &jj
		}
	}
	if next == nil {
		return job.Job{}, job.ErrJobNotFound
	}

	lockedAt := now.UTC()
	next.Status = job.StatusProcessing
	next.LockedAt = &lockedAt
	next.LockedBy = &workerID
	next.UpdatedAt = lockedAt
	r.db.jobs[next.ID] = *next
	return *next, nil
}

func (r *JobsRepo) update(id string, fn func(*job.Job)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	j, ok := r.db.jobs[id]
	if !ok {
		return job.ErrJobNotFound
	}
	fn(&j)
	j.LockedAt = nil
	j.LockedBy = nil
	j.UpdatedAt = r.db.now().UTC()
	r.db.jobs[id] = j
	return nil
}

func (r *JobsRepo) MarkDone(_ context.Context, id string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusDone
		j.Attempts++
		j.LastError = nil
	})
}

func (r *JobsRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Attempts++
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) Reschedule(_ context.Context, id string, runAt time.Time, errMsg string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusPending
		j.Attempts++
		j.RunAt = runAt
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) RequeueStaleProcessing(_ context.Context, lockTTL time.Duration) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cutoff := r.db.now().Add(-lockTTL)
	var n int64
	for id, j := range r.db.jobs {
		if j.Status == job.StatusProcessing && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
			j.Status = job.StatusPending
			j.LockedAt = nil
			j.LockedBy = nil
			r.db.jobs[id] = j
			n++
		}
	}
	return n, nil
}

func (r *JobsRepo) List(_ context.Context, f job.ListFilter) ([]job.Job, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]job.Job, 0)
	for _, j := range r.db.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, f.Limit, f.Offset, 50), nil
}

func (r *JobsRepo) GetByID(_ context.Context, id string) (job.Job, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	j, ok := r.db.jobs[id]
	if !ok {
		return job.Job{}, job.ErrJobNotFound
	}
	return j, nil
}

func (r *JobsRepo) Retry(_ context.Context, id string) (job.Job, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	j, ok := r.db.jobs[id]
	if !ok {
		return job.Job{}, job.ErrJobNotFound
	}
	if j.Status != job.StatusFailed {
		return job.Job{}, job.ErrJobNotFailed
	}
	now := r.db.now().UTC()
	j.Status = job.StatusPending
	j.Attempts = 0
	j.RunAt = now
	j.LastError = nil
	j.LockedAt = nil
	j.LockedBy = nil
	j.UpdatedAt = now
	r.db.jobs[id] = j
	return j, nil
}
