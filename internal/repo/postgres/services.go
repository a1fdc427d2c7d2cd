package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/service"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const serviceColumns = `id, clinic_id, name, description, created_at, updated_at`

type ServicesRepo struct {
	base
}

func NewServicesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ServicesRepo {
	return &ServicesRepo{base{pool: pool, prom: prom}}
}

func scanService(row pgx.Row) (service.Service, error) {
	var s service.Service
	err := row.Scan(&s.ID, &s.ClinicID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *ServicesRepo) Create(ctx context.Context, req service.CreateRequest) (service.Service, error) {
	var s service.Service
	err := r.observe("services.create", func() error {
		var err error
		s, err = scanService(r.pool.QueryRow(ctx, `
		INSERT INTO services (clinic_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING `+serviceColumns,
			req.ClinicID, req.Name, req.Description,
		))
		return err
	})
	switch {
	case violatesConstraint(err, "23505", "services_clinic_name_uniq"):
		return service.Service{}, service.ErrDuplicate
	case isForeignKeyViolation(err):
		return service.Service{}, clinic.ErrNotFound
	}
	return s, err
}

func (r *ServicesRepo) GetByID(ctx context.Context, id int64) (service.Service, error) {
	var s service.Service
	err := r.observe("services.get_by_id", func() error {
		var err error
		s, err = scanService(r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Service{}, service.ErrNotFound
	}
	return s, err
}

func (r *ServicesRepo) List(ctx context.Context, f service.ListFilter) ([]service.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services`
	var args []any
	if f.ClinicIDs != nil {
		q += ` WHERE clinic_id = ANY($1)`
		args = append(args, f.ClinicIDs)
	}
	q += ` ORDER BY name ASC, id ASC`

	var rows pgx.Rows
	err := r.observe("services.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, q, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]service.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ServicesRepo) Update(ctx context.Context, id int64, req service.UpdateRequest) (service.Service, error) {
	var s service.Service
	err := r.observe("services.update", func() error {
		var err error
		s, err = scanService(r.pool.QueryRow(ctx, `
		UPDATE services
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING `+serviceColumns,
			id, req.Name, req.Description,
		))
		return err
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return service.Service{}, service.ErrNotFound
	case violatesConstraint(err, "23505", "services_clinic_name_uniq"):
		return service.Service{}, service.ErrDuplicate
	}
	return s, err
}

func (r *ServicesRepo) Delete(ctx context.Context, id int64) error {
	return r.observe("services.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return service.ErrNotFound
		}
		return nil
	})
}
