package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/doctor"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const doctorColumns = `id, clinic_id, first_name, last_name, specialization, status, consultation_fee, years_experience, created_at, updated_at`

type DoctorsRepo struct {
	base
}

func NewDoctorsRepo(pool *pgxpool.Pool, prom *observability.Prom) *DoctorsRepo {
	return &DoctorsRepo{base{pool: pool, prom: prom}}
}

func scanDoctor(row pgx.Row) (doctor.Doctor, error) {
	var d doctor.Doctor
	var status string
	err := row.Scan(
		&d.ID, &d.ClinicID, &d.FirstName, &d.LastName, &d.Specialization,
		&status, &d.ConsultationFee, &d.YearsExperience, &d.CreatedAt, &d.UpdatedAt,
	)
	d.Status = doctor.Status(status)
	return d, err
}

func (r *DoctorsRepo) Create(ctx context.Context, req doctor.CreateRequest) (doctor.Doctor, error) {
	status := req.Status
	if status == "" {
		status = doctor.StatusActive
	}

	var d doctor.Doctor
	err := r.observe("doctors.create", func() error {
		var err error
		d, err = scanDoctor(r.pool.QueryRow(ctx, `
		INSERT INTO doctors (clinic_id, first_name, last_name, specialization, status, consultation_fee, years_experience)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+doctorColumns,
			req.ClinicID, req.FirstName, req.LastName, req.Specialization, string(status), req.ConsultationFee, req.YearsExperience,
		))
		return err
	})
	if isForeignKeyViolation(err) {
		return doctor.Doctor{}, clinic.ErrNotFound
	}
	return d, err
}

func (r *DoctorsRepo) GetByID(ctx context.Context, id int64) (doctor.Doctor, error) {
	var d doctor.Doctor
	err := r.observe("doctors.get_by_id", func() error {
		var err error
		d, err = scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return doctor.Doctor{}, doctor.ErrNotFound
	}
	return d, err
}

// List returns doctors of the given clinics, or every doctor when ClinicIDs is nil.
func (r *DoctorsRepo) List(ctx context.Context, f doctor.ListFilter) ([]doctor.Doctor, error) {
	q := `SELECT ` + doctorColumns + ` FROM doctors`
	var args []any
	if f.ClinicIDs != nil {
		q += ` WHERE clinic_id = ANY($1)`
		args = append(args, f.ClinicIDs)
	}
	q += ` ORDER BY last_name ASC, first_name ASC, id ASC`

	var rows pgx.Rows
	err := r.observe("doctors.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, q, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]doctor.Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DoctorsRepo) Update(ctx context.Context, id int64, req doctor.UpdateRequest) (doctor.Doctor, error) {
	var status *string
	if req.Status != nil {
		s := string(*req.Status)
		status = &s
	}

	var d doctor.Doctor
	err := r.observe("doctors.update", func() error {
		var err error
		d, err = scanDoctor(r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET first_name       = COALESCE($2, first_name),
		    last_name        = COALESCE($3, last_name),
		    specialization   = COALESCE($4, specialization),
		    status           = COALESCE($5, status),
		    consultation_fee = COALESCE($6, consultation_fee),
		    years_experience = COALESCE($7, years_experience),
		    updated_at       = NOW()
		WHERE id = $1
		RETURNING `+doctorColumns,
			id, req.FirstName, req.LastName, req.Specialization, status, req.ConsultationFee, req.YearsExperience,
		))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return doctor.Doctor{}, doctor.ErrNotFound
	}
	return d, err
}

func (r *DoctorsRepo) Delete(ctx context.Context, id int64) error {
	return r.observe("doctors.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return doctor.ErrNotFound
		}
		return nil
	})
}
