package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/job"
	"github.com/geocoder89/clinicfinder/internal/jobs"
)

type AppointmentsRepo struct {
	db *DB
}

// slotHolder must be called with mu held.
func (db *DB) slotHolder(s appointment.Slot) (int64, bool) {
	for id, a := range db.appointments {
		if a.Status.HoldsSlot() && a.Slot() == s {
			return id, true
		}
	}
	return 0, false
}

// bookLocked mirrors the Postgres booking transaction; mu must be held.
func (db *DB) bookLocked(n appointment.New) (appointment.Appointment, error) {
	c, ok := db.clinics[n.ClinicID]
	if !ok {
		return appointment.Appointment{}, clinic.ErrNotFound
	}
	if !c.Open() {
		return appointment.Appointment{}, clinic.ErrClosed
	}
	if _, taken := db.slotHolder(n.Slot()); taken {
		return appointment.Appointment{}, &appointment.SlotConflictError{Slot: n.Slot()}
	}

	now := db.now().UTC()
	a := appointment.Appointment{
		ID:              db.nextID(),
		UserID:          n.UserID,
		ClinicID:        n.ClinicID,
		ClinicName:      c.Name,
		ServiceName:     n.ServiceName,
		Date:            n.Date,
		Time:            n.Time,
		Status:          appointment.StatusPendingApproval,
		DisplayStatus:   appointment.StatusPendingApproval.Display(),
		FirstName:       n.FirstName,
		LastName:        n.LastName,
		Email:           n.Email,
		Phone:           n.Phone,
		DateOfBirth:     n.DateOfBirth,
		Reason:          n.Reason,
		Insurance:       n.Insurance,
		RescheduledFrom: n.RescheduledFrom,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	db.appointments[a.ID] = a
	return a, nil
}

// enqueueLocked mirrors JobsRepo.CreateTx, idempotency key included.
func (db *DB) enqueueLocked(req job.CreateRequest, err error) error {
	if err != nil {
		return err
	}
	if req.IdempotencyKey != nil {
		for _, j := range db.jobs {
			if j.IdempotencyKey != nil && *j.IdempotencyKey == *req.IdempotencyKey {
				return nil
			}
		}
	}
	j := job.New(req)
	db.jobs[j.ID] = j
	return nil
}

func (r *AppointmentsRepo) Book(_ context.Context, n appointment.New) (appointment.Appointment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, err := r.db.bookLocked(n)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if err := r.db.enqueueLocked(jobs.BookedJob(a)); err != nil {
		delete(r.db.appointments, a.ID)
		return appointment.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentsRepo) GetByID(_ context.Context, id int64) (appointment.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.appointments[id]
	if !ok {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	return a, nil
}

func (r *AppointmentsRepo) List(_ context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]appointment.Appointment, 0)
	if f.Scoped && len(f.ClinicIDs) == 0 {
		return out, nil
	}
	for _, a := range r.db.appointments {
		if f.UserID != nil && a.UserID != *f.UserID {
			continue
		}
		if f.Scoped && !containsID(f.ClinicIDs, a.ClinicID) {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != "" && a.Date != f.Date {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		return out[i].ID > out[j].ID
	})
	return page(out, f.Limit, f.Offset, 100), nil
}

func (r *AppointmentsRepo) Transition(_ context.Context, id int64, to appointment.Status, guard appointment.Guard, actorID int64) (appointment.Appointment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cur, ok := r.db.appointments[id]
	if !ok {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	if guard != nil {
		if err := guard(cur); err != nil {
			return appointment.Appointment{}, err
		}
	}
	if !appointment.CanTransition(cur.Status, to) {
		return appointment.Appointment{}, appointment.ErrInvalidTransition
	}

	next := cur
	next.Status = to
	next.DisplayStatus = to.Display()
	next.UpdatedAt = r.db.now().UTC()

	if err := r.db.enqueueLocked(jobs.StatusChangedJob(next, cur.Status, actorID)); err != nil {
		return appointment.Appointment{}, err
	}
	r.db.appointments[id] = next
	return next, nil
}

func (r *AppointmentsRepo) Reschedule(_ context.Context, id int64, guard appointment.Guard, date, tm string) (appointment.Appointment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cur, ok := r.db.appointments[id]
	if !ok {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	if guard != nil {
		if err := guard(cur); err != nil {
			return appointment.Appointment{}, err
		}
	}
	if !appointment.CanTransition(cur.Status, appointment.StatusCancelled) {
		return appointment.Appointment{}, appointment.ErrInvalidTransition
	}

	cancelled := cur
	cancelled.Status = appointment.StatusCancelled
	cancelled.DisplayStatus = cancelled.Status.Display()
	cancelled.UpdatedAt = r.db.now().UTC()
	r.db.appointments[id] = cancelled

	from := cur.ID
	n := appointment.New{
		UserID:          cur.UserID,
		ClinicID:        cur.ClinicID,
		ServiceName:     cur.ServiceName,
		Date:            date,
		Time:            tm,
		FirstName:       cur.FirstName,
		LastName:        cur.LastName,
		Email:           cur.Email,
		Phone:           cur.Phone,
		DateOfBirth:     cur.DateOfBirth,
		Reason:          cur.Reason,
		Insurance:       cur.Insurance,
		RescheduledFrom: &from,
	}

	a, err := r.db.bookLocked(n)
	if err != nil {
		// roll back the cancellation
		r.db.appointments[id] = cur
		return appointment.Appointment{}, err
	}
	if err := r.db.enqueueLocked(jobs.BookedJob(a)); err != nil {
		delete(r.db.appointments, a.ID)
		r.db.appointments[id] = cur
		return appointment.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentsRepo) TakenTimes(_ context.Context, clinicID int64, date string) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]string, 0)
	for _, a := range r.db.appointments {
		if a.ClinicID == clinicID && a.Date == date && a.Status.HoldsSlot() {
			out = append(out, a.Time)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *AppointmentsRepo) Stats(_ context.Context, clinicIDs []int64, today string) (appointment.Stats, error) {
	var st appointment.Stats
	if len(clinicIDs) == 0 {
		return st, nil
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, a := range r.db.appointments {
		if !containsID(clinicIDs, a.ClinicID) {
			continue
		}
		st.Add(a.Status, 1)
		if a.Date == today && a.Status.HoldsSlot() {
			st.Today++
		}
	}
	return st, nil
}
