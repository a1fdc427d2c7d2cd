package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		hasSession bool
		surface    Surface
		want       Decision
	}{
		{"anonymous patient", "", false, SurfacePatient, Decision{Outcome: RedirectLogin, Redirect: "/login"}},
		{"anonymous admin", "", false, SurfaceAdmin, Decision{Outcome: RedirectAdminLogin, Redirect: "/admin"}},
		{"anonymous manager", "", false, SurfaceClinicManager, Decision{Outcome: RedirectAdminLogin, Redirect: "/admin"}},

		{"patient on patient", "user", true, SurfacePatient, Decision{Outcome: Allow}},
		{"patient on admin", "user", true, SurfaceAdmin, Decision{Outcome: RedirectAdminLogin, Redirect: "/admin"}},
		{"patient on manager", "user", true, SurfaceClinicManager, Decision{Outcome: RedirectAdminLogin, Redirect: "/admin"}},

		{"admin on admin", "admin", true, SurfaceAdmin, Decision{Outcome: Allow}},
		{"admin on patient", "admin", true, SurfacePatient, Decision{Outcome: RedirectOwnDashboard, Redirect: "/admin/dashboard"}},
		{"admin on manager", "admin", true, SurfaceClinicManager, Decision{Outcome: RedirectOwnDashboard, Redirect: "/admin/dashboard"}},

		{"manager on manager", "clinic_manager", true, SurfaceClinicManager, Decision{Outcome: Allow}},
		{"legacy manager role", "manager", true, SurfaceClinicManager, Decision{Outcome: Allow}},
		{"manager on admin", "clinic_manager", true, SurfaceAdmin, Decision{Outcome: RedirectOwnDashboard, Redirect: "/clinic-manager/dashboard"}},
		{"manager on patient", "clinic_manager", true, SurfacePatient, Decision{Outcome: RedirectOwnDashboard, Redirect: "/clinic-manager/dashboard"}},

		{"unknown role", "root", true, SurfaceAdmin, Decision{Outcome: RedirectAdminLogin, Redirect: "/admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.role, tt.hasSession, tt.surface)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Outcome == Allow, got.Allowed())
		})
	}
}

func TestParseSurface(t *testing.T) {
	s, ok := ParseSurface("clinic-manager")
	assert.True(t, ok)
	assert.Equal(t, SurfaceClinicManager, s)

	_, ok = ParseSurface("doctor")
	assert.False(t, ok)
}
