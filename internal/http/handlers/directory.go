package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/doctor"
	"github.com/geocoder89/clinicfinder/internal/domain/service"
	"github.com/geocoder89/clinicfinder/internal/security"
	"github.com/geocoder89/clinicfinder/internal/utils"
	"github.com/gin-gonic/gin"
)

type ClinicStore interface {
	Create(ctx context.Context, req clinic.CreateRequest) (clinic.Clinic, error)
	GetByID(ctx context.Context, id int64) (clinic.Clinic, error)
	List(ctx context.Context, f clinic.ListFilter) ([]clinic.Clinic, error)
	Update(ctx context.Context, id int64, req clinic.UpdateRequest) (clinic.Clinic, error)
	SetStatus(ctx context.Context, id int64, status clinic.Status) (clinic.Clinic, error)
	Delete(ctx context.Context, id int64) error
}

type DoctorStore interface {
	Create(ctx context.Context, req doctor.CreateRequest) (doctor.Doctor, error)
	GetByID(ctx context.Context, id int64) (doctor.Doctor, error)
	List(ctx context.Context, f doctor.ListFilter) ([]doctor.Doctor, error)
	Update(ctx context.Context, id int64, req doctor.UpdateRequest) (doctor.Doctor, error)
	Delete(ctx context.Context, id int64) error
}

type ServiceStore interface {
	Create(ctx context.Context, req service.CreateRequest) (service.Service, error)
	GetByID(ctx context.Context, id int64) (service.Service, error)
	List(ctx context.Context, f service.ListFilter) ([]service.Service, error)
	Update(ctx context.Context, id int64, req service.UpdateRequest) (service.Service, error)
	Delete(ctx context.Context, id int64) error
}

// DirectoryCache holds public directory responses.
type DirectoryCache interface {
	Get(key string) (any, bool)
	Set(key string, val any)
	DeletePrefix(prefix string)
	TTL() time.Duration
}

// DirectoryHandler serves the public clinic directory and its admin CRUD.
type DirectoryHandler struct {
	clinics  ClinicStore
	doctors  DoctorStore
	services ServiceStore
	cache    DirectoryCache
	log      *slog.Logger
}

func NewDirectoryHandler(clinics ClinicStore, doctors DoctorStore, services ServiceStore, cache DirectoryCache, log *slog.Logger) *DirectoryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DirectoryHandler{clinics: clinics, doctors: doctors, services: services, cache: cache, log: log}
}

func (h *DirectoryHandler) invalidate() {
	if h.cache != nil {
		h.cache.DeletePrefix(utils.DirectoryCachePrefix)
	}
}

// maxAge lets clients hold directory responses as long as the server does.
func (h *DirectoryHandler) maxAge() time.Duration {
	if h.cache == nil {
		return 0
	}
	return h.cache.TTL()
}

func (h *DirectoryHandler) cached(key string, load func() (any, error)) (any, error) {
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			return v, nil
		}
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		h.cache.Set(key, v)
	}
	return v, nil
}

func parseClinicStatus(ctx *gin.Context) (*clinic.Status, bool) {
	raw := strings.ToLower(strings.TrimSpace(ctx.Query("status")))
	if raw == "" {
		return nil, true
	}
	s := clinic.Status(raw)
	if !s.Valid() {
		RespondBadRequest(ctx, "status must be one of open, closed", gin.H{"query": "status"})
		return nil, false
	}
	return &s, true
}

// GET /clinics?status=&q=
func (h *DirectoryHandler) ListClinics(ctx *gin.Context) {
	status, ok := parseClinicStatus(ctx)
	if !ok {
		return
	}
	q := strings.TrimSpace(ctx.Query("q"))

	statusKey := ""
	if status != nil {
		statusKey = string(*status)
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	resp, err := h.cached(utils.ClinicsListCacheKey(statusKey, q), func() (any, error) {
		items, err := h.clinics.List(cctx, clinic.ListFilter{Status: status, Query: q})
		if err != nil {
			return nil, err
		}
		return gin.H{"items": items, "count": len(items)}, nil
	})
	if err != nil {
		h.log.ErrorContext(ctx, "clinics_list_failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not list clinics")
		return
	}

	RespondPublicJSON(ctx, http.StatusOK, resp, h.maxAge())
}

// GET /clinics/map-data
func (h *DirectoryHandler) MapData(ctx *gin.Context) {
	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	resp, err := h.cached(utils.ClinicMapCacheKey(), func() (any, error) {
		items, err := h.clinics.List(cctx, clinic.ListFilter{})
		if err != nil {
			return nil, err
		}
		pins := make([]clinic.MapPin, 0, len(items))
		for _, c := range items {
			pins = append(pins, c.Pin())
		}
		return gin.H{"items": pins, "count": len(pins)}, nil
	})
	if err != nil {
		RespondInternal(ctx, "Could not load map data")
		return
	}

	RespondPublicJSON(ctx, http.StatusOK, resp, h.maxAge())
}

func (h *DirectoryHandler) loadClinic(ctx *gin.Context) (clinic.Clinic, bool) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return clinic.Clinic{}, false
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	v, err := h.cached(utils.ClinicDetailCacheKey(id), func() (any, error) {
		return h.clinics.GetByID(cctx, id)
	})
	if err != nil {
		if errors.Is(err, clinic.ErrNotFound) {
			RespondNotFound(ctx, "Clinic not found")
			return clinic.Clinic{}, false
		}
		RespondInternal(ctx, "Could not fetch clinic")
		return clinic.Clinic{}, false
	}
	return v.(clinic.Clinic), true
}

// GET /clinics/:id
func (h *DirectoryHandler) GetClinic(ctx *gin.Context) {
	c, ok := h.loadClinic(ctx)
	if !ok {
		return
	}
	RespondPublicJSON(ctx, http.StatusOK, c, h.maxAge())
}

// GET /clinics/:id/services
func (h *DirectoryHandler) ClinicServices(ctx *gin.Context) {
	c, ok := h.loadClinic(ctx)
	if !ok {
		return
	}
	RespondPublicJSON(ctx, http.StatusOK, gin.H{"items": c.Services, "count": len(c.Services)}, h.maxAge())
}

// GET /clinics/:id/doctors
func (h *DirectoryHandler) ClinicDoctors(ctx *gin.Context) {
	c, ok := h.loadClinic(ctx)
	if !ok {
		return
	}
	RespondPublicJSON(ctx, http.StatusOK, gin.H{"items": c.Doctors, "count": len(c.Doctors)}, h.maxAge())
}

// Admin clinic CRUD

// GET /admin/clinics
func (h *DirectoryHandler) AdminListClinics(ctx *gin.Context) {
	status, ok := parseClinicStatus(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	items, err := h.clinics.List(cctx, clinic.ListFilter{Status: status, Query: strings.TrimSpace(ctx.Query("q"))})
	if err != nil {
		RespondInternal(ctx, "Could not list clinics")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// POST /admin/clinics and POST /clinics
func (h *DirectoryHandler) CreateClinic(ctx *gin.Context) {
	var req clinic.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	req.Name = security.PlainText(req.Name)
	req.Address = security.PlainText(req.Address)
	req.Description = security.PlainText(req.Description)
	if req.Status == "" {
		req.Status = clinic.StatusOpen
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	c, err := h.clinics.Create(cctx, req)
	if err != nil {
		h.log.ErrorContext(ctx, "clinic_create_failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not create clinic")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusCreated, c)
}

// PUT /admin/clinics/:id
func (h *DirectoryHandler) UpdateClinic(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req clinic.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if req.Empty() {
		RespondBadRequest(ctx, "At least one field must be provided", nil)
		return
	}
	req.Name = plainTextPtr(req.Name)
	req.Address = plainTextPtr(req.Address)
	req.Description = plainTextPtr(req.Description)

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	c, err := h.clinics.Update(cctx, id, req)
	if err != nil {
		respondDirectoryError(ctx, err, "Could not update clinic")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusOK, c)
}

// PATCH /admin/clinics/:id/status
func (h *DirectoryHandler) SetClinicStatus(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req clinic.StatusRequest
	if !BindJSON(ctx, &req) {
		return
	}
	h.setStatus(ctx, id, req.Status)
}

func (h *DirectoryHandler) setStatus(ctx *gin.Context, id int64, status clinic.Status) {
	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	c, err := h.clinics.SetStatus(cctx, id, status)
	if err != nil {
		respondDirectoryError(ctx, err, "Could not update clinic status")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusOK, c)
}

// DELETE /admin/clinics/:id
func (h *DirectoryHandler) DeleteClinic(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	if err := h.clinics.Delete(cctx, id); err != nil {
		respondDirectoryError(ctx, err, "Could not delete clinic")
		return
	}
	h.invalidate()

	ctx.Status(http.StatusNoContent)
}

// Admin doctors

// GET /admin/doctors?clinic_id=
func (h *DirectoryHandler) AdminListDoctors(ctx *gin.Context) {
	clinicID, ok := queryID(ctx, "clinic_id")
	if !ok {
		return
	}
	f := doctor.ListFilter{}
	if clinicID != nil {
		f.ClinicIDs = []int64{*clinicID}
	}
	h.listDoctors(ctx, f)
}

func (h *DirectoryHandler) listDoctors(ctx *gin.Context, f doctor.ListFilter) {
	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	items, err := h.doctors.List(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not list doctors")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// POST /admin/doctors
func (h *DirectoryHandler) CreateDoctor(ctx *gin.Context) {
	var req doctor.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	h.createDoctor(ctx, req)
}

func (h *DirectoryHandler) createDoctor(ctx *gin.Context, req doctor.CreateRequest) {
	req.FirstName = security.PlainText(req.FirstName)
	req.LastName = security.PlainText(req.LastName)
	req.Specialization = security.PlainText(req.Specialization)

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	d, err := h.doctors.Create(cctx, req)
	if err != nil {
		respondDirectoryError(ctx, err, "Could not create doctor")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusCreated, d)
}

// PUT /admin/doctors/:id
func (h *DirectoryHandler) UpdateDoctor(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req doctor.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	h.updateDoctor(ctx, id, req)
}

func (h *DirectoryHandler) updateDoctor(ctx *gin.Context, id int64, req doctor.UpdateRequest) {
	req.FirstName = plainTextPtr(req.FirstName)
	req.LastName = plainTextPtr(req.LastName)
	req.Specialization = plainTextPtr(req.Specialization)

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	d, err := h.doctors.Update(cctx, id, req)
	if err != nil {
		respondDirectoryError(ctx, err, "Could not update doctor")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusOK, d)
}

// DELETE /admin/doctors/:id
func (h *DirectoryHandler) DeleteDoctor(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	h.deleteDoctor(ctx, id)
}

func (h *DirectoryHandler) deleteDoctor(ctx *gin.Context, id int64) {
	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	if err := h.doctors.Delete(cctx, id); err != nil {
		respondDirectoryError(ctx, err, "Could not delete doctor")
		return
	}
	h.invalidate()

	ctx.Status(http.StatusNoContent)
}

// Admin services

// GET /admin/services?clinic_id=
func (h *DirectoryHandler) AdminListServices(ctx *gin.Context) {
	clinicID, ok := queryID(ctx, "clinic_id")
	if !ok {
		return
	}
	f := service.ListFilter{}
	if clinicID != nil {
		f.ClinicIDs = []int64{*clinicID}
	}
	h.listServices(ctx, f)
}

func (h *DirectoryHandler) listServices(ctx *gin.Context, f service.ListFilter) {
	cctx, cancel := requestCtx(ctx, readTimeout)
	defer cancel()

	items, err := h.services.List(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not list services")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// POST /admin/services
func (h *DirectoryHandler) CreateService(ctx *gin.Context) {
	var req service.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	h.createService(ctx, req)
}

func (h *DirectoryHandler) createService(ctx *gin.Context, req service.CreateRequest) {
	req.Name = security.PlainText(req.Name)
	req.Description = security.PlainText(req.Description)

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	s, err := h.services.Create(cctx, req)
	if err != nil {
		respondDirectoryError(ctx, err, "Could not create service")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusCreated, s)
}

// PUT /admin/services/:id
func (h *DirectoryHandler) UpdateService(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	h.updateService(ctx, id, req)
}

func (h *DirectoryHandler) updateService(ctx *gin.Context, id int64, req service.UpdateRequest) {
	req.Name = plainTextPtr(req.Name)
	req.Description = plainTextPtr(req.Description)

	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	s, err := h.services.Update(cctx, id, req)
	if err != nil {
		respondDirectoryError(ctx, err, "Could not update service")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusOK, s)
}

// DELETE /admin/services/:id
func (h *DirectoryHandler) DeleteService(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	h.deleteService(ctx, id)
}

func (h *DirectoryHandler) deleteService(ctx *gin.Context, id int64) {
	cctx, cancel := requestCtx(ctx, writeTimeout)
	defer cancel()

	if err := h.services.Delete(cctx, id); err != nil {
		respondDirectoryError(ctx, err, "Could not delete service")
		return
	}
	h.invalidate()

	ctx.Status(http.StatusNoContent)
}

func respondDirectoryError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, clinic.ErrNotFound):
		RespondNotFound(ctx, "Clinic not found")
	case errors.Is(err, doctor.ErrNotFound):
		RespondNotFound(ctx, "Doctor not found")
	case errors.Is(err, service.ErrNotFound):
		RespondNotFound(ctx, "Service not found")
	case errors.Is(err, service.ErrDuplicate):
		RespondConflict(ctx, "duplicate_service", "This clinic already offers a service with that name.")
	case errors.Is(err, clinic.ErrInUse):
		RespondConflict(ctx, "clinic_in_use", "Clinic has appointments and cannot be deleted. Close it instead.")
	default:
		RespondInternal(ctx, fallback)
	}
}
