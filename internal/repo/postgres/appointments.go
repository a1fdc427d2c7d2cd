package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/job"
	"github.com/geocoder89/clinicfinder/internal/jobs"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activeSlotConstraint = "appointments_active_slot_uniq"

const appointmentSelect = `
	SELECT a.id, a.user_id, a.clinic_id, c.name, a.service_name,
	       to_char(a.appointment_date, 'YYYY-MM-DD'), a.appointment_time, a.status,
	       a.first_name, a.last_name, a.email, a.phone,
	       to_char(a.date_of_birth, 'YYYY-MM-DD'), a.reason, a.insurance,
	       a.rescheduled_from, a.created_at, a.updated_at
	FROM appointments a
	JOIN clinics c ON c.id = a.clinic_id`

// Outbox receives notification jobs inside the same transaction as the
// appointment change that caused them.
type Outbox interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error)
}

type AppointmentsRepo struct {
	base
	outbox Outbox
}

func NewAppointmentsRepo(pool *pgxpool.Pool, prom *observability.Prom, outbox Outbox) *AppointmentsRepo {
	return &AppointmentsRepo{base: base{pool: pool, prom: prom}, outbox: outbox}
}

func scanAppointment(row pgx.Row) (appointment.Appointment, error) {
	var a appointment.Appointment
	var status string

	err := row.Scan(
		&a.ID, &a.UserID, &a.ClinicID, &a.ClinicName, &a.ServiceName,
		&a.Date, &a.Time, &status,
		&a.FirstName, &a.LastName, &a.Email, &a.Phone,
		&a.DateOfBirth, &a.Reason, &a.Insurance,
		&a.RescheduledFrom, &a.CreatedAt, &a.UpdatedAt,
	)
	a.Status = appointment.Status(status)
	a.DisplayStatus = a.Status.Display()
	return a, err
}

// Book stores a new pending appointment. The clinic row is share-locked so a
// concurrent close cannot slip between the status check and the insert; the
// partial unique index decides slot conflicts.
func (r *AppointmentsRepo) Book(ctx context.Context, n appointment.New) (appointment.Appointment, error) {
	var a appointment.Appointment

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		a, err = r.bookTx(ctx, tx, n)
		if err != nil {
			return err
		}
		return r.enqueue(ctx, tx, func() (job.CreateRequest, error) { return jobs.BookedJob(a) })
	})
	if err != nil {
		return appointment.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentsRepo) bookTx(ctx context.Context, tx pgx.Tx, n appointment.New) (appointment.Appointment, error) {
	var status string
	err := r.observe("appointments.book.clinic_lock", func() error {
		return tx.QueryRow(ctx, `SELECT status FROM clinics WHERE id = $1 FOR SHARE`, n.ClinicID).Scan(&status)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return appointment.Appointment{}, clinic.ErrNotFound
		}
		return appointment.Appointment{}, err
	}
	if clinic.Status(status) != clinic.StatusOpen {
		return appointment.Appointment{}, clinic.ErrClosed
	}

	var id int64
	err = r.observe("appointments.book.insert", func() error {
		return tx.QueryRow(ctx, `
		INSERT INTO appointments (
			user_id, clinic_id, service_name, appointment_date, appointment_time, status,
			first_name, last_name, email, phone, date_of_birth, reason, insurance, rescheduled_from
		) VALUES (
			$1, $2, $3, to_date($4, 'YYYY-MM-DD'), $5, $6,
			$7, $8, $9, $10, to_date($11, 'YYYY-MM-DD'), $12, $13, $14
		)
		RETURNING id`,
			n.UserID, n.ClinicID, n.ServiceName, n.Date, n.Time, string(appointment.StatusPendingApproval),
			n.FirstName, n.LastName, n.Email, n.Phone, n.DateOfBirth, n.Reason, n.Insurance, n.RescheduledFrom,
		).Scan(&id)
	})
	if err != nil {
		if violatesConstraint(err, "23505", activeSlotConstraint) {
			return appointment.Appointment{}, &appointment.SlotConflictError{Slot: n.Slot()}
		}
		return appointment.Appointment{}, err
	}

	return r.getTx(ctx, tx, id, false)
}

func (r *AppointmentsRepo) getTx(ctx context.Context, tx pgx.Tx, id int64, forUpdate bool) (appointment.Appointment, error) {
	q := appointmentSelect + ` WHERE a.id = $1`
	if forUpdate {
		q += ` FOR UPDATE OF a`
	}

	var a appointment.Appointment
	err := r.observe("appointments.get_tx", func() error {
		var err error
		a, err = scanAppointment(tx.QueryRow(ctx, q, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	return a, err
}

func (r *AppointmentsRepo) GetByID(ctx context.Context, id int64) (appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.observe("appointments.get_by_id", func() error {
		var err error
		a, err = scanAppointment(r.pool.QueryRow(ctx, appointmentSelect+` WHERE a.id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	return a, err
}

func (r *AppointmentsRepo) List(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	if f.Scoped && len(f.ClinicIDs) == 0 {
		return []appointment.Appointment{}, nil
	}

	var (
		conds []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		conds = append(conds, fmt.Sprintf("a.user_id = $%d", len(args)))
	}
	if f.Scoped {
		args = append(args, f.ClinicIDs)
		conds = append(conds, fmt.Sprintf("a.clinic_id = ANY($%d)", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if f.Date != "" {
		args = append(args, f.Date)
		conds = append(conds, fmt.Sprintf("a.appointment_date = to_date($%d, 'YYYY-MM-DD')", len(args)))
	}

	q := appointmentSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, max(f.Offset, 0))
	q += fmt.Sprintf(" ORDER BY a.appointment_date DESC, a.appointment_time DESC, a.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows pgx.Rows
	err := r.observe("appointments.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, q, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]appointment.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Transition moves an appointment to a new status after guard approves the
// locked row. actorID is recorded on the notification job.
func (r *AppointmentsRepo) Transition(ctx context.Context, id int64, to appointment.Status, guard appointment.Guard, actorID int64) (appointment.Appointment, error) {
	var out appointment.Appointment

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := r.getTx(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(cur); err != nil {
				return err
			}
		}
		if !appointment.CanTransition(cur.Status, to) {
			return appointment.ErrInvalidTransition
		}

		if err := r.setStatusTx(ctx, tx, id, to); err != nil {
			return err
		}

		out = cur
		out.Status = to
		out.DisplayStatus = to.Display()

		return r.enqueue(ctx, tx, func() (job.CreateRequest, error) {
			return jobs.StatusChangedJob(out, cur.Status, actorID)
		})
	})
	if err != nil {
		return appointment.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentsRepo) setStatusTx(ctx context.Context, tx pgx.Tx, id int64, to appointment.Status) error {
	return r.observe("appointments.set_status", func() error {
		_, err := tx.Exec(ctx,
			`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`,
			id, string(to),
		)
		return err
	})
}

// Reschedule cancels the appointment and books the same visit at date/time in
// one transaction. A conflict on the new slot rolls everything back.
func (r *AppointmentsRepo) Reschedule(ctx context.Context, id int64, guard appointment.Guard, date, tm string) (appointment.Appointment, error) {
	var out appointment.Appointment

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := r.getTx(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(cur); err != nil {
				return err
			}
		}
		if !appointment.CanTransition(cur.Status, appointment.StatusCancelled) {
			return appointment.ErrInvalidTransition
		}

		if err := r.setStatusTx(ctx, tx, id, appointment.StatusCancelled); err != nil {
			return err
		}

		out, err = r.bookTx(ctx, tx, rebooking(cur, date, tm))
		if err != nil {
			return err
		}
		return r.enqueue(ctx, tx, func() (job.CreateRequest, error) { return jobs.BookedJob(out) })
	})
	if err != nil {
		return appointment.Appointment{}, err
	}
	return out, nil
}

func rebooking(cur appointment.Appointment, date, tm string) appointment.New {
	from := cur.ID
	return appointment.New{
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
}

// TakenTimes lists the times on date that are held by a non-cancelled appointment.
func (r *AppointmentsRepo) TakenTimes(ctx context.Context, clinicID int64, date string) ([]string, error) {
	var rows pgx.Rows
	err := r.observe("appointments.taken_times", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE clinic_id = $1
		  AND appointment_date = to_date($2, 'YYYY-MM-DD')
		  AND status <> 'cancelled'
		ORDER BY appointment_time ASC`, clinicID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Stats counts appointments of the given clinics by status. No clinics, no query.
func (r *AppointmentsRepo) Stats(ctx context.Context, clinicIDs []int64, today string) (appointment.Stats, error) {
	var st appointment.Stats
	if len(clinicIDs) == 0 {
		return st, nil
	}

	var rows pgx.Rows
	err := r.observe("appointments.stats", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
		SELECT status,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE appointment_date = to_date($2, 'YYYY-MM-DD') AND status <> 'cancelled')
		FROM appointments
		WHERE clinic_id = ANY($1)
		GROUP BY status`, clinicIDs, today)
		return err
	})
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n, todayN int
		if err := rows.Scan(&status, &n, &todayN); err != nil {
			return appointment.Stats{}, err
		}
		st.Add(appointment.Status(status), n)
		st.Today += todayN
	}
	return st, rows.Err()
}

func (r *AppointmentsRepo) enqueue(ctx context.Context, tx pgx.Tx, build func() (job.CreateRequest, error)) error {
	if r.outbox == nil {
		return nil
	}
	req, err := build()
	if err != nil {
		return err
	}
	_, err = r.outbox.CreateTx(ctx, tx, req)
	return err
}
