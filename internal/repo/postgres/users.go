package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, first_name, last_name, phone, role, status, created_at, updated_at`

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{base{pool: pool, prom: prom}}
}

// scanUser normalizes the stored role; an unknown value leaves Role empty,
// which every guard treats as "no role".
func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var role, status string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&role,
		&status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return user.User{}, err
	}

	u.Role, _ = user.NormalizeRole(role)
	u.Status = user.Status(status)
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	var out user.User

	err := r.observe("users.create", func() error {
		var err error
		out, err = scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, phone, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
			user.NormalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), string(u.Status),
		))
		return err
	})

	if err != nil {
		if violatesConstraint(err, "23505", "users_email_lower_uniq") {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}
	return out, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`,
			user.NormalizeEmail(email),
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id int64, req user.UpdateProfileRequest) (user.User, error) {
	return r.AdminUpdate(ctx, id, user.AdminUpdateRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
}

// AdminUpdate writes only the non-nil fields.
func (r *UsersRepo) AdminUpdate(ctx context.Context, id int64, req user.AdminUpdateRequest) (user.User, error) {
	var u user.User

	err := r.observe("users.update", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET email      = COALESCE($2, email),
		    first_name = COALESCE($3, first_name),
		    last_name  = COALESCE($4, last_name),
		    phone      = COALESCE($5, phone),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
			id, normalizeEmailPtr(req.Email), req.FirstName, req.LastName, req.Phone,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if violatesConstraint(err, "23505", "users_email_lower_uniq") {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.observe("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, hash,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UsersRepo) List(ctx context.Context, f user.ListFilter) ([]user.User, error) {
	var (
		conds []string
		args  []any
	)

	if f.Role != nil {
		roles := []string{string(*f.Role)}
		if *f.Role == user.RoleClinicManager {
			roles = append(roles, "manager")
		}
		args = append(args, roles)
		conds = append(conds, fmt.Sprintf("role = ANY($%d)", len(args)))
	}

	q := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, max(f.Offset, 0))
	q += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows pgx.Rows
	err := r.observe("users.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, q, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func normalizeEmailPtr(p *string) *string {
	if p == nil {
		return nil
	}
	e := user.NormalizeEmail(*p)
	return &e
}
