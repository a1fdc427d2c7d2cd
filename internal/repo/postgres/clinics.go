package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/doctor"
	"github.com/geocoder89/clinicfinder/internal/domain/service"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const clinicColumns = `id, name, address, phone, email, description, status, latitude, longitude, created_at, updated_at`

type ClinicsRepo struct {
	base
	doctors  *DoctorsRepo
	services *ServicesRepo
}

func NewClinicsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ClinicsRepo {
	return &ClinicsRepo{
		base:     base{pool: pool, prom: prom},
		doctors:  NewDoctorsRepo(pool, prom),
		services: NewServicesRepo(pool, prom),
	}
}

func scanClinic(row pgx.Row) (clinic.Clinic, error) {
	var c clinic.Clinic
	var status string

	err := row.Scan(
		&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.Description,
		&status, &c.Latitude, &c.Longitude, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Status = clinic.Status(status)
	return c, err
}

func (r *ClinicsRepo) Create(ctx context.Context, req clinic.CreateRequest) (clinic.Clinic, error) {
	status := req.Status
	if status == "" {
		status = clinic.StatusOpen
	}

	var c clinic.Clinic
	err := r.observe("clinics.create", func() error {
		var err error
		c, err = scanClinic(r.pool.QueryRow(ctx, `
		INSERT INTO clinics (name, address, phone, email, description, status, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+clinicColumns,
			req.Name, req.Address, req.Phone, req.Email, req.Description, string(status), req.Latitude, req.Longitude,
		))
		return err
	})
	return c, err
}

// GetByID returns the clinic with its services and doctors.
func (r *ClinicsRepo) GetByID(ctx context.Context, id int64) (clinic.Clinic, error) {
	var c clinic.Clinic

	err := r.observe("clinics.get_by_id", func() error {
		var err error
		c, err = scanClinic(r.pool.QueryRow(ctx, `SELECT `+clinicColumns+` FROM clinics WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return clinic.Clinic{}, clinic.ErrNotFound
		}
		return clinic.Clinic{}, err
	}

	ids := []int64{id}
	if c.Services, err = r.services.List(ctx, service.ListFilter{ClinicIDs: ids}); err != nil {
		return clinic.Clinic{}, err
	}
	if c.Doctors, err = r.doctors.List(ctx, doctor.ListFilter{ClinicIDs: ids}); err != nil {
		return clinic.Clinic{}, err
	}
	return c, nil
}

func (r *ClinicsRepo) List(ctx context.Context, f clinic.ListFilter) ([]clinic.Clinic, error) {
	var (
		conds []string
		args  []any
	)

	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR address ILIKE $%d)", len(args), len(args)))
	}
	if f.IDs != nil {
		args = append(args, f.IDs)
		conds = append(conds, fmt.Sprintf("id = ANY($%d)", len(args)))
	}

	q := `SELECT ` + clinicColumns + ` FROM clinics`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY name ASC, id ASC"

	var rows pgx.Rows
	err := r.observe("clinics.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, q, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]clinic.Clinic, 0)
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClinicsRepo) Update(ctx context.Context, id int64, req clinic.UpdateRequest) (clinic.Clinic, error) {
	var c clinic.Clinic

	err := r.observe("clinics.update", func() error {
		var err error
		c, err = scanClinic(r.pool.QueryRow(ctx, `
		UPDATE clinics
		SET name        = COALESCE($2, name),
		    address     = COALESCE($3, address),
		    phone       = COALESCE($4, phone),
		    email       = COALESCE($5, email),
		    description = COALESCE($6, description),
		    latitude    = COALESCE($7, latitude),
		    longitude   = COALESCE($8, longitude),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING `+clinicColumns,
			id, req.Name, req.Address, req.Phone, req.Email, req.Description, req.Latitude, req.Longitude,
		))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return clinic.Clinic{}, clinic.ErrNotFound
	}
	return c, err
}

func (r *ClinicsRepo) SetStatus(ctx context.Context, id int64, status clinic.Status) (clinic.Clinic, error) {
	var c clinic.Clinic

	err := r.observe("clinics.set_status", func() error {
		var err error
		c, err = scanClinic(r.pool.QueryRow(ctx, `
		UPDATE clinics SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+clinicColumns, id, string(status)))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return clinic.Clinic{}, clinic.ErrNotFound
	}
	return c, err
}

// Delete removes the clinic with its doctors, services and manager links.
// Clinics referenced by appointments are kept for history.
func (r *ClinicsRepo) Delete(ctx context.Context, id int64) error {
	return r.observe("clinics.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM clinics WHERE id = $1`, id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return clinic.ErrInUse
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return clinic.ErrNotFound
		}
		return nil
	})
}
