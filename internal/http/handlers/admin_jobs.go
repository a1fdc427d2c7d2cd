package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/domain/job"
	"github.com/geocoder89/clinicfinder/internal/utils"
	"github.com/gin-gonic/gin"
)

type AdminJobsRepo interface {
	List(ctx context.Context, f job.ListFilter) ([]job.Job, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Retry(ctx context.Context, id string) (job.Job, error)
}

type AdminJobsHandler struct {
	repo AdminJobsRepo
}

func NewAdminJobsHandler(repo AdminJobsRepo) *AdminJobsHandler {
	return &AdminJobsHandler{
		repo: repo,
	}
}

// Get /admin/jobs?status=failed&limit=50&offset=0

func (h *AdminJobsHandler) List(ctx *gin.Context) {
	limit, offset, ok := paging(ctx)
	if !ok {
		return
	}

	f := job.ListFilter{Limit: limit, Offset: offset}
	if s := strings.TrimSpace(ctx.Query("status")); s != "" {
		st := job.Status(s)
		if !st.Valid() {
			RespondBadRequest(ctx, "status must be one of pending, processing, done, failed", gin.H{"query": "status"})
			return
		}
		f.Status = &st
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	items, err := h.repo.List(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not list jobs")
		return
	}

	resp := gin.H{
		"limit":  limit,
		"offset": offset,
		"count":  len(items),
		"items":  items,
	}

	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

// Get /admin/jobs/:id

func (h *AdminJobsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_id", gin.H{"param": "id"})
		return
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	j, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			RespondNotFound(ctx, "Job not found")
			return
		}

		RespondInternal(ctx, "Could not fetch job")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, j)
}

// POST /admin/jobs/:id/retry
func (h *AdminJobsHandler) Retry(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_id", gin.H{"param": "id"})
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	j, err := h.repo.Retry(cctx, id)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			RespondNotFound(ctx, "Job not found")
		case errors.Is(err, job.ErrJobNotFailed):
			RespondConflict(ctx, "job_not_failed", "Only failed jobs can be retried")
		default:
			RespondInternal(ctx, "Could not retry job")
		}
		return
	}

	ctx.JSON(http.StatusOK, j)
}
