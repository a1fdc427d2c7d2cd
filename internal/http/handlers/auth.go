package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/clinicfinder/internal/access"
	"github.com/geocoder89/clinicfinder/internal/actorctx"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/geocoder89/clinicfinder/internal/http/middlewares"
	"github.com/geocoder89/clinicfinder/internal/security"
	"github.com/geocoder89/clinicfinder/internal/session"
	"github.com/gin-gonic/gin"
)

type AuthUsers interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	UpdateProfile(ctx context.Context, id int64, req user.UpdateProfileRequest) (user.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

type SessionIssuer interface {
	Create(ctx context.Context, scope session.Scope, principalID int64, role user.Role) (session.Session, error)
	Destroy(ctx context.Context, raw string) error
	RevokeAll(ctx context.Context, scope session.Scope, principalID int64) error
}

// SessionResolver is the read side of the session guard.
type SessionResolver interface {
	Resolve(c *gin.Context, scope session.Scope) (actorctx.Principal, string)
}

type AuthHandler struct {
	users    AuthUsers
	sessions SessionIssuer
	resolver SessionResolver
	cookies  session.Cookies
	log      *slog.Logger
}

func NewAuthHandler(users AuthUsers, sessions SessionIssuer, resolver SessionResolver, cookies session.Cookies, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		resolver: resolver,
		cookies:  cookies,
		log:      log,
	}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	// self-registration only ever creates patients
	u, err := h.users.Create(cctx, user.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    security.PlainText(req.FirstName),
		LastName:     security.PlainText(req.LastName),
		Phone:        security.PlainText(req.Phone),
		Role:         user.RoleUser,
		Status:       user.StatusActive,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}
		h.log.ErrorContext(ctx, "register_failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not create account")
		return
	}

	if !h.startSession(ctx, cctx, session.ScopePatient, u) {
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": u, "redirect": access.Dashboard(u.Role)})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	h.login(ctx, session.ScopePatient)
}

func (h *AuthHandler) AdminLogin(ctx *gin.Context) {
	h.login(ctx, session.ScopeAdmin)
}

// allowedFor reports whether a role may sign in through the scope's login form.
func allowedFor(scope session.Scope, r user.Role) bool {
	if scope == session.ScopePatient {
		return r == user.RoleUser
	}
	return r == user.RoleClinicManager || r == user.RoleAdmin
}

func (h *AuthHandler) login(ctx *gin.Context, scope session.Scope) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			h.log.ErrorContext(ctx, "login_lookup_failed", "err", err, "request_id", requestIDFrom(ctx))
			RespondInternal(ctx, "Could not log in")
			return
		}
		security.BurnPasswordCheck(req.Password)
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	ok, err := security.PasswordMatches(u.PasswordHash, req.Password)
	if err != nil || !ok {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if !allowedFor(scope, u.Role) {
		other := access.LoginPath
		if scope == session.ScopePatient {
			other = access.AdminLoginPath
		}
		RespondError(ctx, http.StatusForbidden, "wrong_login", "Please use the other login page for this account.", gin.H{"redirect": other})
		return
	}

	if !u.Active() {
		RespondError(ctx, http.StatusForbidden, "account_inactive", "This account has been deactivated.", nil)
		return
	}

	if !h.startSession(ctx, cctx, scope, u) {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u, "redirect": access.Dashboard(u.Role)})
}

func (h *AuthHandler) startSession(ctx *gin.Context, cctx context.Context, scope session.Scope, u user.User) bool {
	s, err := h.sessions.Create(cctx, scope, u.ID, u.Role)
	if err != nil {
		h.log.ErrorContext(ctx, "session_create_failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not create session")
		return false
	}
	h.cookies.Write(ctx.Writer, s)
	return true
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.logout(ctx, session.ScopePatient)
}

func (h *AuthHandler) AdminLogout(ctx *gin.Context) {
	h.logout(ctx, session.ScopeAdmin)
}

// logout is idempotent: a missing or stale cookie still clears.
func (h *AuthHandler) logout(ctx *gin.Context, scope session.Scope) {
	if raw := h.cookies.Read(ctx.Request, scope); raw != "" {
		cctx, cancel := requestCtx(ctx, writeTimeout)
		defer cancel()
		if err := h.sessions.Destroy(cctx, raw); err != nil {
			h.log.WarnContext(ctx, "session_destroy_failed", "err", err, "request_id", requestIDFrom(ctx))
		}
	}
	h.cookies.Clear(ctx.Writer, scope)
	ctx.Status(http.StatusNoContent)
}

// GET /auth/me and /auth/admin-me
func (h *AuthHandler) Me(ctx *gin.Context) {
	p, ok := principalOr401(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"user":      p.User,
		"expiresAt": p.Session.ExpiresAt,
		"dashboard": access.Dashboard(p.Role()),
	})
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	p, ok := principalOr401(ctx)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}
	req.FirstName = plainTextPtr(req.FirstName)
	req.LastName = plainTextPtr(req.LastName)
	req.Phone = plainTextPtr(req.Phone)

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, p.ID(), req)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not update profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// ChangePassword revokes every other session of the principal and issues a
// fresh cookie for this one.
func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	p, ok := principalOr401(ctx)
	if !ok {
		return
	}

	var req user.ChangePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	match, err := security.PasswordMatches(p.User.PasswordHash, req.CurrentPassword)
	if err != nil || !match {
		RespondError(ctx, http.StatusBadRequest, "wrong_password", user.ErrWrongPassword.Error(), nil)
		return
	}

	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	if err := h.users.UpdatePassword(cctx, p.ID(), hash); err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	for _, scope := range []session.Scope{session.ScopePatient, session.ScopeAdmin} {
		if err := h.sessions.RevokeAll(cctx, scope, p.ID()); err != nil {
			h.log.ErrorContext(ctx, "session_revoke_failed", "err", err, "request_id", requestIDFrom(ctx))
			RespondInternal(ctx, "Could not change password")
			return
		}
	}

	if !h.startSession(ctx, cctx, p.Session.Scope, p.User) {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

// GET /auth/access?surface=
func (h *AuthHandler) Access(ctx *gin.Context) {
	surface, ok := access.ParseSurface(ctx.Query("surface"))
	if !ok {
		RespondBadRequest(ctx, "surface must be one of patient, clinic_manager, admin", gin.H{"query": "surface"})
		return
	}

	role := ""
	hasSession := false
	if p, reason := h.resolver.Resolve(ctx, middlewares.ScopeFor(surface)); reason == "" {
		role = string(p.Role())
		hasSession = true
	}

	d := access.Decide(role, hasSession, surface)
	ctx.JSON(http.StatusOK, gin.H{
		"surface":  surface,
		"decision": d.Outcome,
		"redirect": d.Redirect,
		"role":     role,
	})
}

func plainTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := security.PlainText(*s)
	return &v
}
