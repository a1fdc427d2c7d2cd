package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/clinicfinder/internal/domain/manager"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/geocoder89/clinicfinder/internal/security"
	"github.com/geocoder89/clinicfinder/internal/session"
	"github.com/gin-gonic/gin"
)

type ManagerStore interface {
	Create(ctx context.Context, u user.User, clinicIDs []int64) (manager.Manager, error)
	GetByID(ctx context.Context, id int64) (manager.Manager, error)
	List(ctx context.Context) ([]manager.Manager, error)
	Update(ctx context.Context, id int64, ch manager.Changes) (manager.Manager, error)
	AssignClinics(ctx context.Context, id int64, clinicIDs []int64) (manager.Manager, error)
	SetStatus(ctx context.Context, id int64, status user.Status) (manager.Manager, error)
}

type SessionRevoker interface {
	RevokeAll(ctx context.Context, scope session.Scope, principalID int64) error
}

type AdminManagersHandler struct {
	repo     ManagerStore
	sessions SessionRevoker
	log      *slog.Logger
}

func NewAdminManagersHandler(repo ManagerStore, sessions SessionRevoker, log *slog.Logger) *AdminManagersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminManagersHandler{repo: repo, sessions: sessions, log: log}
}

// GET /admin/clinic-managers
func (h *AdminManagersHandler) List(ctx *gin.Context) {
	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	items, err := h.repo.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list clinic managers")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GET /admin/clinic-managers/:id
func (h *AdminManagersHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	m, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondError(ctx, err, "Could not fetch clinic manager")
		return
	}
	ctx.JSON(http.StatusOK, m)
}

// POST /admin/clinic-managers
func (h *AdminManagersHandler) Create(ctx *gin.Context) {
	var req manager.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	ids, err := manager.ValidateAssignment(req.ClinicIDs)
	if err != nil {
		h.respondError(ctx, err, "Could not create clinic manager")
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create clinic manager")
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	m, err := h.repo.Create(cctx, user.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    security.PlainText(req.FirstName),
		LastName:     security.PlainText(req.LastName),
		Phone:        security.PlainText(req.Phone),
	}, ids)
	if err != nil {
		h.respondError(ctx, err, "Could not create clinic manager")
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

// PUT /admin/clinic-managers/:id
func (h *AdminManagersHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req manager.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	ch := manager.Changes{
		Email:     req.Email,
		FirstName: plainTextPtr(req.FirstName),
		LastName:  plainTextPtr(req.LastName),
		Phone:     plainTextPtr(req.Phone),
	}
	if req.ClinicIDs != nil {
		ids, err := manager.ValidateAssignment(*req.ClinicIDs)
		if err != nil {
			h.respondError(ctx, err, "Could not update clinic manager")
			return
		}
		ch.ClinicIDs = ids
	}
	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password)
		if err != nil {
			RespondInternal(ctx, "Could not update clinic manager")
			return
		}
		ch.PasswordHash = &hash
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	m, err := h.repo.Update(cctx, id, ch)
	if err != nil {
		h.respondError(ctx, err, "Could not update clinic manager")
		return
	}

	if ch.PasswordHash != nil {
		h.revoke(ctx, cctx, id)
	}

	ctx.JSON(http.StatusOK, m)
}

// PUT /admin/clinic-managers/:id/clinics
func (h *AdminManagersHandler) Assign(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req manager.AssignRequest
	if !BindJSON(ctx, &req) {
		return
	}

	ids, err := manager.ValidateAssignment(req.ClinicIDs)
	if err != nil {
		h.respondError(ctx, err, "Could not assign clinics")
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	m, err := h.repo.AssignClinics(cctx, id, ids)
	if err != nil {
		h.respondError(ctx, err, "Could not assign clinics")
		return
	}

	ctx.JSON(http.StatusOK, m)
}

// PATCH /admin/clinic-managers/:id/deactivate
func (h *AdminManagersHandler) Deactivate(ctx *gin.Context) {
	h.setStatus(ctx, user.StatusInactive)
}

// PATCH /admin/clinic-managers/:id/activate
func (h *AdminManagersHandler) Activate(ctx *gin.Context) {
	h.setStatus(ctx, user.StatusActive)
}

func (h *AdminManagersHandler) setStatus(ctx *gin.Context, status user.Status) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	m, err := h.repo.SetStatus(cctx, id, status)
	if err != nil {
		h.respondError(ctx, err, "Could not update clinic manager status")
		return
	}

	if status == user.StatusInactive {
		h.revoke(ctx, cctx, id)
	}

	ctx.JSON(http.StatusOK, m)
}

// revoke drops the manager's admin sessions. The guard re-checks status on
// every request, so a failure here is logged and not surfaced.
func (h *AdminManagersHandler) revoke(ctx *gin.Context, cctx context.Context, id int64) {
	if h.sessions == nil {
		return
	}
	if err := h.sessions.RevokeAll(cctx, session.ScopeAdmin, id); err != nil {
		h.log.WarnContext(ctx, "manager_session_revoke_failed", "err", err, "manager_id", id, "request_id", requestIDFrom(ctx))
	}
}

func (h *AdminManagersHandler) respondError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, manager.ErrNotFound):
		RespondNotFound(ctx, "Clinic manager not found")
	case errors.Is(err, manager.ErrEmptyAssignment):
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
			Field: "clinicIds", Rule: "min", Param: "1", Message: manager.ErrEmptyAssignment.Error(),
		}}})
	case errors.Is(err, manager.ErrUnknownClinic):
		RespondError(ctx, http.StatusBadRequest, "unknown_clinic", manager.ErrUnknownClinic.Error(), nil)
	case errors.Is(err, user.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	default:
		h.log.ErrorContext(ctx, "manager_op_failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, fallback)
	}
}
