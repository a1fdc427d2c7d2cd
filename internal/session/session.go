// Package session keeps server-side login sessions keyed by an opaque cookie value.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/user"
)

// Scope separates the patient login from the admin/manager login. A session
// created by one login is never accepted by the other.
type Scope string

const (
	ScopePatient Scope = "patient"
	ScopeAdmin   Scope = "admin"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	// ID is the raw cookie value. It is only known right after Create; stores
	// see the hashed key.
	ID          string    `json:"-"`
	Scope       Scope     `json:"scope"`
	PrincipalID int64     `json:"principalId"`
	Role        user.Role `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Store interface {
	Save(ctx context.Context, key string, s Session) error
	Get(ctx context.Context, key string) (Session, error)
	Delete(ctx context.Context, key string) error
	DeleteForPrincipal(ctx context.Context, scope Scope, principalID int64) error
}

type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) Create(ctx context.Context, scope Scope, principalID int64, role user.Role) (Session, error) {
	raw, err := newID()
	if err != nil {
		return Session{}, err
	}

	now := m.now().UTC()
	s := Session{
		ID:          raw,
		Scope:       scope,
		PrincipalID: principalID,
		Role:        role,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}

	if err := m.store.Save(ctx, hashID(raw), s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Lookup resolves a cookie value. Sessions from another scope or past their
// expiry are reported as ErrNotFound.
func (m *Manager) Lookup(ctx context.Context, scope Scope, raw string) (Session, error) {
	if raw == "" {
		return Session{}, ErrNotFound
	}

	s, err := m.store.Get(ctx, hashID(raw))
	if err != nil {
		return Session{}, err
	}
	if s.Scope != scope {
		return Session{}, ErrNotFound
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, hashID(raw))
		return Session{}, ErrNotFound
	}

	s.ID = raw
	return s, nil
}

func (m *Manager) Destroy(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return m.store.Delete(ctx, hashID(raw))
}

// RevokeAll ends every session the principal holds in scope.
func (m *Manager) RevokeAll(ctx context.Context, scope Scope, principalID int64) error {
	return m.store.DeleteForPrincipal(ctx, scope, principalID)
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// stores never see the raw cookie value
func hashID(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
