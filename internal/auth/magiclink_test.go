package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagicLinks_IssueVerify(t *testing.T) {
	m := NewMagicLinks("secret", time.Hour, "http://localhost:5173/")

	token, exp, err := m.Issue(42, "Ana@Example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AppointmentID)
	assert.Equal(t, "ana@example.com", claims.Email)

	assert.Equal(t, "http://localhost:5173/appointments/magic/"+token, m.URL(token))
}

func TestMagicLinks_RejectsTamperedAndExpired(t *testing.T) {
	m := NewMagicLinks("secret", time.Hour, "http://localhost")

	token, _, err := m.Issue(1, "a@example.com")
	require.NoError(t, err)

	other := NewMagicLinks("other-secret", time.Hour, "http://localhost")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify(token[:len(token)-2] + "xx")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, strings.Contains(token, "a@example.com"))
}
