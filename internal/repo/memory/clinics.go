package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/doctor"
	"github.com/geocoder89/clinicfinder/internal/domain/service"
)

type ClinicsRepo struct {
	db *DB
}

func (r *ClinicsRepo) Create(_ context.Context, req clinic.CreateRequest) (clinic.Clinic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	status := req.Status
	if status == "" {
		status = clinic.StatusOpen
	}
	now := r.db.now().UTC()
	c := clinic.Clinic{
		ID:          r.db.nextID(),
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		Email:       req.Email,
		Description: req.Description,
		Status:      status,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.db.clinics[c.ID] = c
	return c, nil
}

func (r *ClinicsRepo) GetByID(_ context.Context, id int64) (clinic.Clinic, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.clinics[id]
	if !ok {
		return clinic.Clinic{}, clinic.ErrNotFound
	}
	ids := []int64{id}
	c.Services = r.db.listServices(ids)
	c.Doctors = r.db.listDoctors(ids)
	return c, nil
}

func (r *ClinicsRepo) List(_ context.Context, f clinic.ListFilter) ([]clinic.Clinic, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]clinic.Clinic, 0)
	for _, c := range r.db.clinics {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.IDs != nil && !containsID(f.IDs, c.ID) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(strings.ToLower(c.Address), q) {
			continue
		}
		out = append(out, c)
	}
	sortClinics(out)
	return out, nil
}

func sortClinics(cs []clinic.Clinic) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Name != cs[j].Name {
			return cs[i].Name < cs[j].Name
		}
		return cs[i].ID < cs[j].ID
	})
}

func (r *ClinicsRepo) Update(_ context.Context, id int64, req clinic.UpdateRequest) (clinic.Clinic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.clinics[id]
	if !ok {
		return clinic.Clinic{}, clinic.ErrNotFound
	}
	c = req.Apply(c)
	c.UpdatedAt = r.db.now().UTC()
	r.db.clinics[id] = c
	return c, nil
}

func (r *ClinicsRepo) SetStatus(_ context.Context, id int64, status clinic.Status) (clinic.Clinic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.clinics[id]
	if !ok {
		return clinic.Clinic{}, clinic.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = r.db.now().UTC()
	r.db.clinics[id] = c
	return c, nil
}

func (r *ClinicsRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.clinics[id]; !ok {
		return clinic.ErrNotFound
	}
	for _, a := range r.db.appointments {
		if a.ClinicID == id {
			return clinic.ErrInUse
		}
	}

	delete(r.db.clinics, id)
	for did, d := range r.db.doctors {
		if d.ClinicID == id {
			delete(r.db.doctors, did)
		}
	}
	for sid, s := range r.db.services {
		if s.ClinicID == id {
			delete(r.db.services, sid)
		}
	}
	for _, set := range r.db.assignments {
		delete(set, id)
	}
	return nil
}

type DoctorsRepo struct {
	db *DB
}

// listDoctors must be called with mu held. nil ids means all.
func (db *DB) listDoctors(ids []int64) []doctor.Doctor {
	out := make([]doctor.Doctor, 0)
	for _, d := range db.doctors {
		if ids != nil && !containsID(ids, d.ClinicID) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *DoctorsRepo) Create(_ context.Context, req doctor.CreateRequest) (doctor.Doctor, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.clinics[req.ClinicID]; !ok {
		return doctor.Doctor{}, clinic.ErrNotFound
	}
	status := req.Status
	if status == "" {
		status = doctor.StatusActive
	}
	now := r.db.now().UTC()
	d := doctor.Doctor{
		ID:              r.db.nextID(),
		ClinicID:        req.ClinicID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Specialization:  req.Specialization,
		Status:          status,
		ConsultationFee: req.ConsultationFee,
		YearsExperience: req.YearsExperience,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.db.doctors[d.ID] = d
	return d, nil
}

func (r *DoctorsRepo) GetByID(_ context.Context, id int64) (doctor.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	d, ok := r.db.doctors[id]
	if !ok {
		return doctor.Doctor{}, doctor.ErrNotFound
	}
	return d, nil
}

func (r *DoctorsRepo) List(_ context.Context, f doctor.ListFilter) ([]doctor.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.listDoctors(f.ClinicIDs), nil
}

func (r *DoctorsRepo) Update(_ context.Context, id int64, req doctor.UpdateRequest) (doctor.Doctor, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	d, ok := r.db.doctors[id]
	if !ok {
		return doctor.Doctor{}, doctor.ErrNotFound
	}
	d = req.Apply(d)
	d.UpdatedAt = r.db.now().UTC()
	r.db.doctors[id] = d
	return d, nil
}

func (r *DoctorsRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.doctors[id]; !ok {
		return doctor.ErrNotFound
	}
	delete(r.db.doctors, id)
	return nil
}

type ServicesRepo struct {
	db *DB
}

// listServices must be called with mu held. nil ids means all.
func (db *DB) listServices(ids []int64) []service.Service {
	out := make([]service.Service, 0)
	for _, s := range db.services {
		if ids != nil && !containsID(ids, s.ClinicID) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (db *DB) serviceNameTaken(clinicID int64, name string, except int64) bool {
	for id, s := range db.services {
		if id != except && s.ClinicID == clinicID && s.Name == name {
			return true
		}
	}
	return false
}

func (r *ServicesRepo) Create(_ context.Context, req service.CreateRequest) (service.Service, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.clinics[req.ClinicID]; !ok {
		return service.Service{}, clinic.ErrNotFound
	}
	if r.db.serviceNameTaken(req.ClinicID, req.Name, 0) {
		return service.Service{}, service.ErrDuplicate
	}
	now := r.db.now().UTC()
	s := service.Service{
		ID:          r.db.nextID(),
		ClinicID:    req.ClinicID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.db.services[s.ID] = s
	return s, nil
}

func (r *ServicesRepo) GetByID(_ context.Context, id int64) (service.Service, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.services[id]
	if !ok {
		return service.Service{}, service.ErrNotFound
	}
	return s, nil
}

func (r *ServicesRepo) List(_ context.Context, f service.ListFilter) ([]service.Service, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.listServices(f.ClinicIDs), nil
}

func (r *ServicesRepo) Update(_ context.Context, id int64, req service.UpdateRequest) (service.Service, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.services[id]
	if !ok {
		return service.Service{}, service.ErrNotFound
	}
	s = req.Apply(s)
	if r.db.serviceNameTaken(s.ClinicID, s.Name, id) {
		return service.Service{}, service.ErrDuplicate
	}
	s.UpdatedAt = r.db.now().UTC()
	r.db.services[id] = s
	return s, nil
}

func (r *ServicesRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.services[id]; !ok {
		return service.ErrNotFound
	}
	delete(r.db.services, id)
	return nil
}
