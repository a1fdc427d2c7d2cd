package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{raw: "user", want: RoleUser, ok: true},
		{raw: "ADMIN", want: RoleAdmin, ok: true},
		{raw: " clinic_manager ", want: RoleClinicManager, ok: true},
		{raw: "manager", want: RoleClinicManager, ok: true},
		{raw: "superuser"},
		{raw: ""},
	}

	for _, tt := range tests {
		got, ok := NormalizeRole(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
}
