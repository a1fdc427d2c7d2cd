package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserAdminStore interface {
	List(ctx context.Context, f user.ListFilter) ([]user.User, error)
	AdminUpdate(ctx context.Context, id int64, req user.AdminUpdateRequest) (user.User, error)
}

type AdminUsersHandler struct {
	repo UserAdminStore
}

func NewAdminUsersHandler(repo UserAdminStore) *AdminUsersHandler {
	return &AdminUsersHandler{repo: repo}
}

// GET /admin/users?role=&limit=&offset=
func (h *AdminUsersHandler) List(ctx *gin.Context) {
	limit, offset, ok := paging(ctx)
	if !ok {
		return
	}

	f := user.ListFilter{Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(ctx.Query("role")); raw != "" {
		r, ok := user.NormalizeRole(raw)
		if !ok {
			RespondBadRequest(ctx, "role must be one of user, clinic_manager, admin", gin.H{"query": "role"})
			return
		}
		f.Role = &r
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	items, err := h.repo.List(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// PUT /admin/users/:id
func (h *AdminUsersHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req user.AdminUpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	req.FirstName = plainTextPtr(req.FirstName)
	req.LastName = plainTextPtr(req.LastName)
	req.Phone = plainTextPtr(req.Phone)

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	u, err := h.repo.AdminUpdate(cctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		default:
			RespondInternal(ctx, "Could not update user")
		}
		return
	}

	ctx.JSON(http.StatusOK, u)
}
