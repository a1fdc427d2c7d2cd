// Package access decides which frontend surface a principal may enter.
package access

import "github.com/geocoder89/clinicfinder/internal/domain/user"

type Surface string

const (
	SurfacePatient       Surface = "patient"
	SurfaceClinicManager Surface = "clinic_manager"
	SurfaceAdmin         Surface = "admin"
)

func ParseSurface(s string) (Surface, bool) {
	switch Surface(s) {
	case SurfacePatient, SurfaceClinicManager, SurfaceAdmin:
		return Surface(s), true
	case "clinic-manager":
		return SurfaceClinicManager, true
	}
	return "", false
}

type Outcome string

const (
	Allow                Outcome = "allow"
	RedirectLogin        Outcome = "redirect_login"
	RedirectAdminLogin   Outcome = "redirect_admin_login"
	RedirectOwnDashboard Outcome = "redirect_dashboard"
)

const (
	LoginPath      = "/login"
	AdminLoginPath = "/admin"
)

type Decision struct {
	Outcome  Outcome `json:"decision"`
	Redirect string  `json:"redirect,omitempty"`
}

func (d Decision) Allowed() bool { return d.Outcome == Allow }

// NeedsLogin is true when the caller must authenticate (as opposed to being
// authenticated on the wrong surface).
func (d Decision) NeedsLogin() bool {
	return d.Outcome == RedirectLogin || d.Outcome == RedirectAdminLogin
}

// Dashboard is the landing page for a role.
func Dashboard(r user.Role) string {
	switch r {
	case user.RoleUser:
		return "/dashboard"
	case user.RoleClinicManager:
		return "/clinic-manager/dashboard"
	case user.RoleAdmin:
		return "/admin/dashboard"
	}
	return LoginPath
}

// LoginFor is where an unauthenticated visitor of the surface is sent.
func LoginFor(s Surface) Decision {
	if s == SurfacePatient {
		return Decision{Outcome: RedirectLogin, Redirect: LoginPath}
	}
	return Decision{Outcome: RedirectAdminLogin, Redirect: AdminLoginPath}
}

// Decide applies the routing table. rawRole is normalized here, and an
// unknown role is treated the same as no session.
func Decide(rawRole string, hasSession bool, s Surface) Decision {
	role, ok := user.NormalizeRole(rawRole)
	if !hasSession || !ok {
		return LoginFor(s)
	}

	switch s {
	case SurfacePatient:
		if role == user.RoleUser {
			return Decision{Outcome: Allow}
		}
	case SurfaceClinicManager:
		if role == user.RoleClinicManager {
			return Decision{Outcome: Allow}
		}
		if role == user.RoleUser {
			return LoginFor(s)
		}
	case SurfaceAdmin:
		if role == user.RoleAdmin {
			return Decision{Outcome: Allow}
		}
		if role == user.RoleUser {
			return LoginFor(s)
		}
	default:
		return Decision{Outcome: RedirectLogin, Redirect: LoginPath}
	}

	return Decision{Outcome: RedirectOwnDashboard, Redirect: Dashboard(role)}
}
