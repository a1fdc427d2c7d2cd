package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/clinicfinder/internal/access"
	"github.com/geocoder89/clinicfinder/internal/actorctx"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/geocoder89/clinicfinder/internal/session"
	"github.com/gin-gonic/gin"
)

type SessionLookup interface {
	Lookup(ctx context.Context, scope session.Scope, raw string) (session.Session, error)
	Destroy(ctx context.Context, raw string) error
}

type PrincipalLoader interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

// Rejection reasons, also used as metric labels.
const (
	ReasonNoCookie    = "no_cookie"
	ReasonNoSession   = "no_session"
	ReasonStoreError  = "store_error"
	ReasonNoPrincipal = "no_principal"
	ReasonInactive    = "inactive"
	ReasonWrongRole   = "wrong_role"
)

// SessionGuard turns a session cookie into a principal on the request
// context. Every failure rejects the request.
type SessionGuard struct {
	Sessions SessionLookup
	Users    PrincipalLoader
	Cookies  session.Cookies
	Prom     *observability.Prom
	Log      *slog.Logger
}

// ScopeFor is the session scope that backs a surface.
func ScopeFor(s access.Surface) session.Scope {
	if s == access.SurfacePatient {
		return session.ScopePatient
	}
	return session.ScopeAdmin
}

func surfaceFor(scope session.Scope) access.Surface {
	if scope == session.ScopePatient {
		return access.SurfacePatient
	}
	return access.SurfaceAdmin
}

// Resolve loads the session and re-reads the principal behind it. The
// returned reason is empty on success.
func (g *SessionGuard) Resolve(c *gin.Context, scope session.Scope) (actorctx.Principal, string) {
	raw := g.Cookies.Read(c.Request, scope)
	if raw == "" {
		return actorctx.Principal{}, ReasonNoCookie
	}

	ctx := c.Request.Context()
	s, err := g.Sessions.Lookup(ctx, scope, raw)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return actorctx.Principal{}, ReasonNoSession
		}
		g.logger().ErrorContext(ctx, "session_lookup_failed", "err", err, "request_id", c.GetString(CtxRequestID))
		return actorctx.Principal{}, ReasonStoreError
	}

	u, err := g.Users.GetByID(ctx, s.PrincipalID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			g.logger().ErrorContext(ctx, "principal_load_failed", "err", err, "request_id", c.GetString(CtxRequestID))
			return actorctx.Principal{}, ReasonStoreError
		}
		return actorctx.Principal{}, ReasonNoPrincipal
	}

	if !u.Active() {
		if err := g.Sessions.Destroy(ctx, raw); err != nil {
			g.logger().WarnContext(ctx, "session_destroy_failed", "err", err)
		}
		return actorctx.Principal{}, ReasonInactive
	}

	return actorctx.Principal{User: u, Session: s}, ""
}

// RequireSession rejects requests without a valid session of the scope.
func (g *SessionGuard) RequireSession(scope session.Scope) gin.HandlerFunc {
	login := access.LoginFor(surfaceFor(scope))
	return func(c *gin.Context) {
		p, reason := g.Resolve(c, scope)
		if reason != "" {
			g.reject(c, scope, reason, login)
			return
		}
		c.Request = c.Request.WithContext(withPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// Require applies the surface routing table on top of RequireSession.
func (g *SessionGuard) Require(surface access.Surface) gin.HandlerFunc {
	scope := ScopeFor(surface)
	return func(c *gin.Context) {
		p, reason := g.Resolve(c, scope)
		if reason != "" {
			g.reject(c, scope, reason, access.LoginFor(surface))
			return
		}

		d := access.Decide(string(p.Role()), true, surface)
		if !d.Allowed() {
			if d.NeedsLogin() {
				g.reject(c, scope, ReasonWrongRole, d)
				return
			}
			g.Prom.ObserveSessionRejection(string(scope), ReasonWrongRole)
			abortError(c, http.StatusForbidden, "forbidden", "You do not have access to this area", gin.H{"redirect": d.Redirect})
			return
		}

		c.Request = c.Request.WithContext(withPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// withPrincipal stores p for handlers and tags the request's log records.
func withPrincipal(ctx context.Context, p actorctx.Principal) context.Context {
	ctx = actorctx.WithPrincipal(ctx, p)
	return observability.WithLogAttrs(ctx,
		slog.Int64("principal_id", p.ID()),
		slog.String("role", string(p.Role())),
	)
}

func (g *SessionGuard) reject(c *gin.Context, scope session.Scope, reason string, d access.Decision) {
	g.Prom.ObserveSessionRejection(string(scope), reason)
	if reason != ReasonNoCookie && reason != ReasonWrongRole {
		g.Cookies.Clear(c.Writer, scope)
	}
	abortError(c, http.StatusUnauthorized, "unauthorized", "Please log in to continue", gin.H{"redirect": d.Redirect})
}

func (g *SessionGuard) logger() *slog.Logger {
	if g.Log == nil {
		return slog.Default()
	}
	return g.Log
}
