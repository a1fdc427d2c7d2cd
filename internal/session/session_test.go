package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateLookupDestroy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, time.Hour)

	s, err := m.Create(ctx, ScopePatient, 42, user.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	got, err := m.Lookup(ctx, ScopePatient, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.PrincipalID)
	assert.Equal(t, user.RoleUser, got.Role)

	// stores are keyed by hash, never by the cookie value
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Lookup(ctx, ScopeAdmin, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Destroy(ctx, s.ID))
	_, err = m.Lookup(ctx, ScopePatient, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_LookupExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, time.Minute)

	s, err := m.Create(ctx, ScopeAdmin, 1, user.RoleAdmin)
	require.NoError(t, err)

	later := time.Now().Add(2 * time.Minute)
	m.now = func() time.Time { return later }
	store.now = func() time.Time { return later }

	_, err = m.Lookup(ctx, ScopeAdmin, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_RevokeAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, time.Hour)

	a, err := m.Create(ctx, ScopeAdmin, 5, user.RoleClinicManager)
	require.NoError(t, err)
	b, err := m.Create(ctx, ScopeAdmin, 5, user.RoleClinicManager)
	require.NoError(t, err)
	other, err := m.Create(ctx, ScopeAdmin, 6, user.RoleClinicManager)
	require.NoError(t, err)

	require.NoError(t, m.RevokeAll(ctx, ScopeAdmin, 5))

	_, err = m.Lookup(ctx, ScopeAdmin, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Lookup(ctx, ScopeAdmin, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Lookup(ctx, ScopeAdmin, other.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestCookies_WriteReadClear(t *testing.T) {
	c := Cookies{Secure: true}
	s := Session{ID: "raw-id", Scope: ScopeAdmin, ExpiresAt: time.Now().Add(time.Hour)}

	w := httptest.NewRecorder()
	c.Write(w, s)

	res := w.Result()
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AdminCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	assert.Equal(t, "raw-id", c.Read(r, ScopeAdmin))
	assert.Equal(t, "", c.Read(r, ScopePatient))

	w = httptest.NewRecorder()
	c.Clear(w, ScopePatient)
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, PatientCookie, cleared[0].Name)
	assert.True(t, cleared[0].MaxAge < 0)
}
