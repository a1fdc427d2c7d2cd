package session

import (
	"net/http"
	"time"
)

const (
	PatientCookie = "cf_session"
	AdminCookie   = "cf_admin_session"
)

func CookieName(scope Scope) string {
	if scope == ScopeAdmin {
		return AdminCookie
	}
	return PatientCookie
}

// Cookies writes the HttpOnly session cookies.
type Cookies struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func (c Cookies) Write(w http.ResponseWriter, s Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(s.Scope),
		Value:    s.ID,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.sameSite(),
	})
}

func (c Cookies) Clear(w http.ResponseWriter, scope Scope) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(scope),
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.sameSite(),
	})
}

func (c Cookies) Read(r *http.Request, scope Scope) string {
	ck, err := r.Cookie(CookieName(scope))
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c Cookies) sameSite() http.SameSite {
	if c.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return c.SameSite
}
