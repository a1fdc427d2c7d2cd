package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/doctor"
	"github.com/geocoder89/clinicfinder/internal/domain/manager"
	"github.com/geocoder89/clinicfinder/internal/domain/service"
	"github.com/gin-gonic/gin"
)

type ManagerScopes interface {
	ClinicIDs(ctx context.Context, managerID int64) ([]int64, error)
	ManagedClinics(ctx context.Context, managerID int64) ([]clinic.Clinic, error)
}

// ManagerHandler serves the clinic-manager surface. Every query is limited
// to the clinics currently assigned to the signed-in manager.
type ManagerHandler struct {
	scopes       ManagerScopes
	appointments AppointmentStore
	dir          *DirectoryHandler
	clock        Clock
	log          *slog.Logger
}

func NewManagerHandler(scopes ManagerScopes, appointments AppointmentStore, dir *DirectoryHandler, clock Clock, log *slog.Logger) *ManagerHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ManagerHandler{scopes: scopes, appointments: appointments, dir: dir, clock: clock, log: log}
}

func (h *ManagerHandler) scope(ctx *gin.Context) (manager.Scope, bool) {
	p, ok := principalOr401(ctx)
	if !ok {
		return manager.Scope{}, false
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	ids, err := h.scopes.ClinicIDs(cctx, p.ID())
	if err != nil {
		h.log.ErrorContext(ctx, "manager_scope_failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not load managed clinics")
		return manager.Scope{}, false
	}
	return manager.Scope{ManagerID: p.ID(), ClinicIDs: ids}, true
}

// resolve narrows the scope to ?clinic_id= when given.
func (h *ManagerHandler) resolve(ctx *gin.Context) ([]int64, bool) {
	s, ok := h.scope(ctx)
	if !ok {
		return nil, false
	}
	clinicID, ok := queryID(ctx, "clinic_id")
	if !ok {
		return nil, false
	}
	ids, err := s.Resolve(clinicID)
	if err != nil {
		RespondForbidden(ctx, manager.ErrOutOfScope.Error())
		return nil, false
	}
	return ids, true
}

func (h *ManagerHandler) requireClinic(ctx *gin.Context, s manager.Scope, clinicID int64) bool {
	if !s.Allows(clinicID) {
		RespondForbidden(ctx, manager.ErrOutOfScope.Error())
		return false
	}
	return true
}

// GET /clinic-manager/managed-clinics
func (h *ManagerHandler) ManagedClinics(ctx *gin.Context) {
	p, ok := principalOr401(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	items, err := h.scopes.ManagedClinics(cctx, p.ID())
	if err != nil {
		RespondInternal(ctx, "Could not load managed clinics")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GET /clinic-manager/dashboard?clinic_id=
func (h *ManagerHandler) Dashboard(ctx *gin.Context) {
	ids, ok := h.resolve(ctx)
	if !ok {
		return
	}

	if ids == nil {
		ids = []int64{}
	}
	today := h.clock.Today()
	resp := gin.H{
		"clinicIds": ids,
		"today":     today,
		"stats":     appointment.Stats{},
		"upcoming":  []appointment.Appointment{},
	}
	if len(ids) == 0 {
		ctx.JSON(http.StatusOK, resp)
		return
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	stats, err := h.appointments.Stats(cctx, ids, today)
	if err != nil {
		RespondInternal(ctx, "Could not load dashboard")
		return
	}

	pending := appointment.StatusPendingApproval
	upcoming, err := h.appointments.List(cctx, appointment.ListFilter{
		Scoped:    true,
		ClinicIDs: ids,
		Status:    &pending,
		Limit:     10,
	})
	if err != nil {
		RespondInternal(ctx, "Could not load dashboard")
		return
	}

	resp["stats"] = stats
	resp["upcoming"] = upcoming
	ctx.JSON(http.StatusOK, resp)
}

// GET /clinic-manager/appointments?clinic_id=&status=&date=
func (h *ManagerHandler) Appointments(ctx *gin.Context) {
	ids, ok := h.resolve(ctx)
	if !ok {
		return
	}
	status, ok := parseAppointmentStatus(ctx)
	if !ok {
		return
	}
	date := ctx.Query("date")
	if date != "" {
		d, err := appointment.ParseDate(date)
		if err != nil {
			RespondBadRequest(ctx, "date must be formatted YYYY-MM-DD", gin.H{"query": "date"})
			return
		}
		date = d.Format(appointment.DateLayout)
	}
	limit, offset, ok := paging(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	items, err := h.appointments.List(cctx, appointment.ListFilter{
		Scoped:    true,
		ClinicIDs: ids,
		Status:    status,
		Date:      date,
		Limit:     limit,
		Offset:    offset,
	})
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

// PATCH /clinic-manager/appointments/:id/status
func (h *ManagerHandler) UpdateAppointmentStatus(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req appointment.StatusUpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	s, ok := h.scope(ctx)
	if !ok {
		return
	}

	guard := func(a appointment.Appointment) error {
		if !s.Allows(a.ClinicID) {
			return manager.ErrOutOfScope
		}
		return nil
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	a, err := h.appointments.Transition(cctx, id, req.Status, guard, s.ManagerID)
	if err != nil {
		respondAppointmentError(ctx, h.log, err, "Could not update appointment")
		return
	}

	ctx.JSON(http.StatusOK, a)
}

// PATCH /clinic-manager/clinic/status
func (h *ManagerHandler) SetClinicStatus(ctx *gin.Context) {
	var req clinic.ClinicStatusRequest
	if !BindJSON(ctx, &req) {
		return
	}
	s, ok := h.scope(ctx)
	if !ok || !h.requireClinic(ctx, s, req.ClinicID) {
		return
	}
	h.dir.setStatus(ctx, req.ClinicID, req.Status)
}

// GET /clinic-manager/clinic/doctors?clinic_id=
func (h *ManagerHandler) ListDoctors(ctx *gin.Context) {
	ids, ok := h.resolve(ctx)
	if !ok {
		return
	}
	if len(ids) == 0 {
		ctx.JSON(http.StatusOK, gin.H{"items": []doctor.Doctor{}, "count": 0})
		return
	}
	h.dir.listDoctors(ctx, doctor.ListFilter{ClinicIDs: ids})
}

// POST /clinic-manager/clinic/doctors
func (h *ManagerHandler) CreateDoctor(ctx *gin.Context) {
	var req doctor.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	s, ok := h.scope(ctx)
	if !ok || !h.requireClinic(ctx, s, req.ClinicID) {
		return
	}
	h.dir.createDoctor(ctx, req)
}

// ownedDoctor loads :id and checks it belongs to a managed clinic.
func (h *ManagerHandler) ownedDoctor(ctx *gin.Context) (int64, bool) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return 0, false
	}
	s, ok := h.scope(ctx)
	if !ok {
		return 0, false
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	d, err := h.dir.doctors.GetByID(cctx, id)
	if err != nil {
		respondDirectoryError(ctx, err, "Could not fetch doctor")
		return 0, false
	}
	return id, h.requireClinic(ctx, s, d.ClinicID)
}

// PUT /clinic-manager/clinic/doctors/:id
func (h *ManagerHandler) UpdateDoctor(ctx *gin.Context) {
	var req doctor.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	id, ok := h.ownedDoctor(ctx)
	if !ok {
		return
	}
	h.dir.updateDoctor(ctx, id, req)
}

// DELETE /clinic-manager/clinic/doctors/:id
func (h *ManagerHandler) DeleteDoctor(ctx *gin.Context) {
	id, ok := h.ownedDoctor(ctx)
	if !ok {
		return
	}
	h.dir.deleteDoctor(ctx, id)
}

// GET /clinic-manager/clinic/services?clinic_id=
func (h *ManagerHandler) ListServices(ctx *gin.Context) {
	ids, ok := h.resolve(ctx)
	if !ok {
		return
	}
	if len(ids) == 0 {
		ctx.JSON(http.StatusOK, gin.H{"items": []service.Service{}, "count": 0})
		return
	}
	h.dir.listServices(ctx, service.ListFilter{ClinicIDs: ids})
}

// POST /clinic-manager/clinic/services
func (h *ManagerHandler) CreateService(ctx *gin.Context) {
	var req service.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	s, ok := h.scope(ctx)
	if !ok || !h.requireClinic(ctx, s, req.ClinicID) {
		return
	}
	h.dir.createService(ctx, req)
}

func (h *ManagerHandler) ownedService(ctx *gin.Context) (int64, bool) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return 0, false
	}
	s, ok := h.scope(ctx)
	if !ok {
		return 0, false
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	svc, err := h.dir.services.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			RespondNotFound(ctx, "Service not found")
			return 0, false
		}
		RespondInternal(ctx, "Could not fetch service")
		return 0, false
	}
	return id, h.requireClinic(ctx, s, svc.ClinicID)
}

// PUT /clinic-manager/clinic/services/:id
func (h *ManagerHandler) UpdateService(ctx *gin.Context) {
	var req service.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	id, ok := h.ownedService(ctx)
	if !ok {
		return
	}
	h.dir.updateService(ctx, id, req)
}

// DELETE /clinic-manager/clinic/services/:id
func (h *ManagerHandler) DeleteService(ctx *gin.Context) {
	id, ok := h.ownedService(ctx)
	if !ok {
		return
	}
	h.dir.deleteService(ctx, id)
}
