package handlers

import (
	"context"
	"time"

	"github.com/geocoder89/clinicfinder/internal/actorctx"
	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	readTimeout  = 2 * time.Second
	writeTimeout = 3 * time.Second
)

// requestCtx bounds a repository call by the request context.
func requestCtx(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

// principalOr401 returns the principal set by the session guard.
func principalOr401(ctx *gin.Context) (actorctx.Principal, bool) {
	p, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Please log in to continue")
		return actorctx.Principal{}, false
	}
	return p, true
}

func pathID(ctx *gin.Context, name string) (int64, bool) {
	id, err := utils.ParseID(ctx.Param(name))
	if err != nil {
		RespondBadRequest(ctx, "Invalid "+name, gin.H{"param": name})
		return 0, false
	}
	return id, true
}

func queryID(ctx *gin.Context, name string) (*int64, bool) {
	id, err := utils.ParseOptionalID(ctx.Query(name))
	if err != nil {
		RespondBadRequest(ctx, "Invalid "+name, gin.H{"query": name})
		return nil, false
	}
	return id, true
}

// paging reads limit/offset with limit clamped to [1, 100].
func paging(ctx *gin.Context) (int, int, bool) {
	limit := utils.ParseIntDefault(ctx.Query("limit"), 50)
	offset := utils.ParseIntDefault(ctx.Query("offset"), 0)
	if limit < 1 || limit > 100 || offset < 0 {
		RespondBadRequest(ctx, "limit must be between 1 and 100 and offset must not be negative", nil)
		return 0, 0, false
	}
	return limit, offset, true
}

// Clock is injected so date rules can be tested.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
	// RejectPastDates turns on the booking floor at today.
	RejectPastDates bool
}

func (c Clock) Today() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return appointment.Today(now(), c.Location)
}

// BookingFloor is the earliest bookable date, or "" when any date is allowed.
func (c Clock) BookingFloor() string {
	if !c.RejectPastDates {
		return ""
	}
	return c.Today()
}
