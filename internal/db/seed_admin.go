package db

import (
	"context"
	"errors"

	"github.com/geocoder89/clinicfinder/internal/config"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/geocoder89/clinicfinder/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser creates the bootstrap admin from ADMIN_EMAIL/ADMIN_PASSWORD
// when no principal with that email exists. It reports whether a row was inserted.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	email := user.NormalizeEmail(cfg.AdminEmail)

	var dummy int64

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE lower(email) = $1`, email).Scan(&dummy)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return false, err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`,
		email, hash, cfg.AdminFirstName, cfg.AdminLastName, string(user.RoleAdmin), string(user.StatusActive),
	)
	if err != nil {
		return false, err
	}

	return true, nil
}
