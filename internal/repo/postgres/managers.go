package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/manager"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// managerRoles covers the legacy spelling still present in older rows.
var managerRoles = []string{string(user.RoleClinicManager), "manager"}

type ManagersRepo struct {
	base
}

func NewManagersRepo(pool *pgxpool.Pool, prom *observability.Prom) *ManagersRepo {
	return &ManagersRepo{base{pool: pool, prom: prom}}
}

// Create inserts the manager principal and its first assignment together.
func (r *ManagersRepo) Create(ctx context.Context, u user.User, clinicIDs []int64) (manager.Manager, error) {
	var id int64

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := r.observe("managers.create.insert_user", func() error {
			return tx.QueryRow(ctx, `
			INSERT INTO users (email, password_hash, first_name, last_name, phone, role, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
				user.NormalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName, u.Phone,
				string(user.RoleClinicManager), string(user.StatusActive),
			).Scan(&id)
		})
		if err != nil {
			if violatesConstraint(err, "23505", "users_email_lower_uniq") {
				return user.ErrEmailTaken
			}
			return err
		}
		return r.replaceAssignmentsTx(ctx, tx, id, clinicIDs)
	})
	if err != nil {
		return manager.Manager{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *ManagersRepo) GetByID(ctx context.Context, id int64) (manager.Manager, error) {
	var m manager.Manager
	var status string

	err := r.observe("managers.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, phone, status, created_at, updated_at
		FROM users
		WHERE id = $1 AND role = ANY($2)`, id, managerRoles,
		).Scan(&m.ID, &m.Email, &m.FirstName, &m.LastName, &m.Phone, &status, &m.CreatedAt, &m.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return manager.Manager{}, manager.ErrNotFound
		}
		return manager.Manager{}, err
	}
	m.Status = user.Status(status)

	refs, err := r.clinicRefs(ctx, []int64{id})
	if err != nil {
		return manager.Manager{}, err
	}
	m.Clinics = refs[id]
	if m.Clinics == nil {
		m.Clinics = []manager.ClinicRef{}
	}
	return m, nil
}

func (r *ManagersRepo) List(ctx context.Context) ([]manager.Manager, error) {
	var rows pgx.Rows
	err := r.observe("managers.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
		SELECT id, email, first_name, last_name, phone, status, created_at, updated_at
		FROM users
		WHERE role = ANY($1)
		ORDER BY last_name ASC, first_name ASC, id ASC`, managerRoles)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]manager.Manager, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var m manager.Manager
		var status string
		if err := rows.Scan(&m.ID, &m.Email, &m.FirstName, &m.LastName, &m.Phone, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Status = user.Status(status)
		out = append(out, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs, err := r.clinicRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Clinics = refs[out[i].ID]
		if out[i].Clinics == nil {
			out[i].Clinics = []manager.ClinicRef{}
		}
	}
	return out, nil
}

func (r *ManagersRepo) clinicRefs(ctx context.Context, managerIDs []int64) (map[int64][]manager.ClinicRef, error) {
	out := make(map[int64][]manager.ClinicRef, len(managerIDs))
	if len(managerIDs) == 0 {
		return out, nil
	}

	var rows pgx.Rows
	err := r.observe("managers.clinic_refs", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
		SELECT mc.manager_id, c.id, c.name, c.status
		FROM manager_clinics mc
		JOIN clinics c ON c.id = mc.clinic_id
		WHERE mc.manager_id = ANY($1)
		ORDER BY c.name ASC, c.id ASC`, managerIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var managerID int64
		var ref manager.ClinicRef
		if err := rows.Scan(&managerID, &ref.ID, &ref.Name, &ref.Status); err != nil {
			return nil, err
		}
		out[managerID] = append(out[managerID], ref)
	}
	return out, rows.Err()
}

// Update applies profile changes and, when clinicIDs is non-nil, replaces the
// assignment set in the same transaction.
func (r *ManagersRepo) Update(ctx context.Context, id int64, ch manager.Changes) (manager.Manager, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var found int64
		err := r.observe("managers.update.user", func() error {
			return tx.QueryRow(ctx, `
			UPDATE users
			SET email         = COALESCE($2, email),
			    first_name    = COALESCE($3, first_name),
			    last_name     = COALESCE($4, last_name),
			    phone         = COALESCE($5, phone),
			    password_hash = COALESCE($6, password_hash),
			    updated_at    = NOW()
			WHERE id = $1 AND role = ANY($7)
			RETURNING id`,
				id, normalizeEmailPtr(ch.Email), ch.FirstName, ch.LastName, ch.Phone, ch.PasswordHash, managerRoles,
			).Scan(&found)
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return manager.ErrNotFound
			}
			if violatesConstraint(err, "23505", "users_email_lower_uniq") {
				return user.ErrEmailTaken
			}
			return err
		}

		if ch.ClinicIDs != nil {
			return r.replaceAssignmentsTx(ctx, tx, id, ch.ClinicIDs)
		}
		return nil
	})
	if err != nil {
		return manager.Manager{}, err
	}
	return r.GetByID(ctx, id)
}

// AssignClinics replaces the manager's clinic set. clinicIDs must already be
// validated as non-empty.
func (r *ManagersRepo) AssignClinics(ctx context.Context, id int64, clinicIDs []int64) (manager.Manager, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := r.lockManagerTx(ctx, tx, id); err != nil {
			return err
		}
		return r.replaceAssignmentsTx(ctx, tx, id, clinicIDs)
	})
	if err != nil {
		return manager.Manager{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *ManagersRepo) lockManagerTx(ctx context.Context, tx pgx.Tx, id int64) error {
	var found int64
	err := r.observe("managers.lock", func() error {
		return tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 AND role = ANY($2) FOR UPDATE`, id, managerRoles).Scan(&found)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return manager.ErrNotFound
	}
	return err
}

func (r *ManagersRepo) replaceAssignmentsTx(ctx context.Context, tx pgx.Tx, id int64, clinicIDs []int64) error {
	var known int
	err := r.observe("managers.assign.check_clinics", func() error {
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM clinics WHERE id = ANY($1)`, clinicIDs).Scan(&known)
	})
	if err != nil {
		return err
	}
	if known != len(clinicIDs) {
		return manager.ErrUnknownClinic
	}

	return r.observe("managers.assign.replace", func() error {
		if _, err := tx.Exec(ctx, `DELETE FROM manager_clinics WHERE manager_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
		INSERT INTO manager_clinics (manager_id, clinic_id)
		SELECT $1, unnest($2::bigint[])`, id, clinicIDs)
		return err
	})
}

// SetStatus activates or deactivates a manager. Deactivation also drops every
// clinic assignment; reactivation does not restore them.
func (r *ManagersRepo) SetStatus(ctx context.Context, id int64, status user.Status) (manager.Manager, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := r.lockManagerTx(ctx, tx, id); err != nil {
			return err
		}

		return r.observe("managers.set_status", func() error {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status),
			); err != nil {
				return err
			}
			if status == user.StatusInactive {
				_, err := tx.Exec(ctx, `DELETE FROM manager_clinics WHERE manager_id = $1`, id)
				return err
			}
			return nil
		})
	})
	if err != nil {
		return manager.Manager{}, err
	}
	return r.GetByID(ctx, id)
}

// ClinicIDs is the manager's current scope.
func (r *ManagersRepo) ClinicIDs(ctx context.Context, managerID int64) ([]int64, error) {
	var rows pgx.Rows
	err := r.observe("managers.clinic_ids", func() error {
		var err error
		rows, err = r.pool.Query(ctx,
			`SELECT clinic_id FROM manager_clinics WHERE manager_id = $1 ORDER BY clinic_id`, managerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ManagersRepo) ManagedClinics(ctx context.Context, managerID int64) ([]clinic.Clinic, error) {
	var rows pgx.Rows
	err := r.observe("managers.managed_clinics", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
		SELECT `+prefixColumns("c.", clinicColumns)+`
		FROM clinics c
		JOIN manager_clinics mc ON mc.clinic_id = c.id
		WHERE mc.manager_id = $1
		ORDER BY c.name ASC, c.id ASC`, managerID)
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

func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
