package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/auth"
	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/manager"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/geocoder89/clinicfinder/internal/security"
	"github.com/gin-gonic/gin"
)

type AppointmentStore interface {
	Book(ctx context.Context, n appointment.New) (appointment.Appointment, error)
	GetByID(ctx context.Context, id int64) (appointment.Appointment, error)
	List(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
	Transition(ctx context.Context, id int64, to appointment.Status, guard appointment.Guard, actorID int64) (appointment.Appointment, error)
	Reschedule(ctx context.Context, id int64, guard appointment.Guard, date, tm string) (appointment.Appointment, error)
	TakenTimes(ctx context.Context, clinicID int64, date string) ([]string, error)
	Stats(ctx context.Context, clinicIDs []int64, today string) (appointment.Stats, error)
}

type MagicLinkVerifier interface {
	Verify(token string) (*auth.MagicClaims, error)
}

type AppointmentsHandler struct {
	repo  AppointmentStore
	magic MagicLinkVerifier
	clock Clock
	prom  *observability.Prom
	log   *slog.Logger
}

func NewAppointmentsHandler(repo AppointmentStore, magic MagicLinkVerifier, clock Clock, prom *observability.Prom, log *slog.Logger) *AppointmentsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsHandler{repo: repo, magic: magic, clock: clock, prom: prom, log: log}
}

func parseAppointmentStatus(ctx *gin.Context) (*appointment.Status, bool) {
	raw := strings.ToLower(strings.TrimSpace(ctx.Query("status")))
	if raw == "" {
		return nil, true
	}
	s := appointment.Status(raw)
	if !s.Valid() {
		RespondBadRequest(ctx, "Invalid status filter", gin.H{"query": "status"})
		return nil, false
	}
	return &s, true
}

// GET /appointments
func (h *AppointmentsHandler) ListMine(ctx *gin.Context) {
	p, ok := principalOr401(ctx)
	if !ok {
		return
	}
	status, ok := parseAppointmentStatus(ctx)
	if !ok {
		return
	}
	limit, offset, ok := paging(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	uid := p.ID()
	items, err := h.repo.List(cctx, appointment.ListFilter{UserID: &uid, Status: status, Limit: limit, Offset: offset})
	if err != nil {
		RespondInternal(ctx, "Could not list appointments")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// POST /appointments
func (h *AppointmentsHandler) Book(ctx *gin.Context) {
	p, ok := principalOr401(ctx)
	if !ok {
		return
	}

	var req appointment.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	req.Service = security.PlainText(req.Service)
	req.FirstName = security.PlainText(req.FirstName)
	req.LastName = security.PlainText(req.LastName)
	req.Phone = security.PlainText(req.Phone)
	req.Reason = security.PlainText(req.Reason)
	req.Insurance = security.PlainText(req.Insurance)

	n, err := req.ToNew(p.ID(), h.clock.BookingFloor())
	if err != nil {
		h.prom.ObserveBooking("invalid")
		respondAppointmentError(ctx, h.log, err, "Could not book appointment")
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	a, err := h.repo.Book(cctx, n)
	if err != nil {
		h.prom.ObserveBooking(bookingOutcome(err))
		respondAppointmentError(ctx, h.log, err, "Could not book appointment")
		return
	}
	h.prom.ObserveBooking("booked")

	ctx.JSON(http.StatusCreated, a)
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, appointment.ErrSlotTaken):
		return "conflict"
	case errors.Is(err, clinic.ErrClosed):
		return "clinic_closed"
	case errors.Is(err, clinic.ErrNotFound):
		return "unknown_clinic"
	default:
		return "error"
	}
}

// GET /appointments/availability?clinic_id=&date=
func (h *AppointmentsHandler) Availability(ctx *gin.Context) {
	clinicID, ok := queryID(ctx, "clinic_id")
	if !ok {
		return
	}
	if clinicID == nil {
		RespondBadRequest(ctx, "clinic_id is required", gin.H{"query": "clinic_id"})
		return
	}
	d, err := appointment.ParseDate(ctx.Query("date"))
	if err != nil {
		RespondBadRequest(ctx, "date must be formatted YYYY-MM-DD", gin.H{"query": "date"})
		return
	}
	date := d.Format(appointment.DateLayout)

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	taken, err := h.repo.TakenTimes(cctx, *clinicID, date)
	if err != nil {
		RespondInternal(ctx, "Could not load availability")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"clinicId": *clinicID,
		"date":     date,
		"taken":    taken,
	})
}

// PATCH /appointments/:id/cancel
func (h *AppointmentsHandler) Cancel(ctx *gin.Context) {
	p, ok := principalOr401(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	a, err := h.repo.Transition(cctx, id, appointment.StatusCancelled, appointment.OwnedBy(p.ID()), p.ID())
	if err != nil {
		respondAppointmentError(ctx, h.log, err, "Could not cancel appointment")
		return
	}

	ctx.JSON(http.StatusOK, a)
}

// PATCH /appointments/:id/reschedule
func (h *AppointmentsHandler) Reschedule(ctx *gin.Context) {
	p, ok := principalOr401(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req appointment.RescheduleRequest
	if !BindJSON(ctx, &req) {
		return
	}
	date, tm, err := req.Target(h.clock.BookingFloor())
	if err != nil {
		respondAppointmentError(ctx, h.log, err, "Could not reschedule appointment")
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	a, err := h.repo.Reschedule(cctx, id, appointment.OwnedBy(p.ID()), date, tm)
	if err != nil {
		respondAppointmentError(ctx, h.log, err, "Could not reschedule appointment")
		return
	}

	ctx.JSON(http.StatusOK, a)
}

func (h *AppointmentsHandler) verifyMagic(ctx *gin.Context) (*auth.MagicClaims, bool) {
	claims, err := h.magic.Verify(ctx.Param("token"))
	if err != nil {
		RespondUnauthorized(ctx, "invalid_token", auth.ErrInvalidToken.Error())
		return nil, false
	}
	return claims, true
}

// GET /appointments/magic/:token
func (h *AppointmentsHandler) MagicGet(ctx *gin.Context) {
	claims, ok := h.verifyMagic(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	a, err := h.repo.GetByID(cctx, claims.AppointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			RespondUnauthorized(ctx, "invalid_token", auth.ErrInvalidToken.Error())
			return
		}
		RespondInternal(ctx, "Could not fetch appointment")
		return
	}
	if !strings.EqualFold(a.Email, claims.Email) {
		RespondUnauthorized(ctx, "invalid_token", auth.ErrInvalidToken.Error())
		return
	}

	ctx.JSON(http.StatusOK, a)
}

// PATCH /appointments/magic/:token/cancel
func (h *AppointmentsHandler) MagicCancel(ctx *gin.Context) {
	claims, ok := h.verifyMagic(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	a, err := h.repo.Transition(cctx, claims.AppointmentID, appointment.StatusCancelled, appointment.ForEmail(claims.Email), 0)
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			RespondUnauthorized(ctx, "invalid_token", auth.ErrInvalidToken.Error())
			return
		}
		respondAppointmentError(ctx, h.log, err, "Could not cancel appointment")
		return
	}

	ctx.JSON(http.StatusOK, a)
}

func respondAppointmentError(ctx *gin.Context, log *slog.Logger, err error, fallback string) {
	var conflict *appointment.SlotConflictError
	switch {
	case errors.As(err, &conflict):
		RespondSlotConflict(ctx, conflict.Slot)
	case errors.Is(err, appointment.ErrInvalidDate):
		RespondBadRequest(ctx, "Invalid request body", dateFieldError("date", "isodate", err))
	case errors.Is(err, appointment.ErrPastDate):
		RespondBadRequest(ctx, "Invalid request body", dateFieldError("date", "future", err))
	case errors.Is(err, appointment.ErrInvalidTime):
		RespondBadRequest(ctx, "Invalid request body", dateFieldError("time", "clocktime", err))
	case errors.Is(err, appointment.ErrNotFound):
		RespondNotFound(ctx, "Appointment not found")
	case errors.Is(err, clinic.ErrNotFound):
		RespondNotFound(ctx, "Clinic not found")
	case errors.Is(err, clinic.ErrClosed):
		RespondConflict(ctx, "clinic_closed", "This clinic is currently closed and is not accepting appointments.")
	case errors.Is(err, appointment.ErrInvalidTransition):
		RespondConflict(ctx, "invalid_transition", appointment.ErrInvalidTransition.Error())
	case errors.Is(err, appointment.ErrNotCancellable):
		RespondConflict(ctx, "not_cancellable", appointment.ErrNotCancellable.Error())
	case errors.Is(err, manager.ErrOutOfScope):
		RespondForbidden(ctx, manager.ErrOutOfScope.Error())
	default:
		log.ErrorContext(ctx, "appointment_op_failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, fallback)
	}
}

func dateFieldError(field, rule string, err error) gin.H {
	return gin.H{"fields": []FieldError{{Field: field, Rule: rule, Message: err.Error()}}}
}
