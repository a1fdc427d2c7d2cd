// Package memory holds process-local implementations of the repositories.
// They share one DB so cross-entity rules (slot uniqueness, manager scope,
// clinic deletion) behave the way the Postgres schema enforces them.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/doctor"
	"github.com/geocoder89/clinicfinder/internal/domain/job"
	"github.com/geocoder89/clinicfinder/internal/domain/service"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
)

type DB struct {
	mu sync.RWMutex

	seq int64
	now func() time.Time

	users        map[int64]user.User
	clinics      map[int64]clinic.Clinic
	doctors      map[int64]doctor.Doctor
	services     map[int64]service.Service
	appointments map[int64]appointment.Appointment
	assignments  map[int64]map[int64]struct{} // manager id -> clinic ids
	jobs         map[string]job.Job
}

func NewDB() *DB {
	return &DB{
		now:          time.Now,
		users:        make(map[int64]user.User),
		clinics:      make(map[int64]clinic.Clinic),
		doctors:      make(map[int64]doctor.Doctor),
		services:     make(map[int64]service.Service),
		appointments: make(map[int64]appointment.Appointment),
		assignments:  make(map[int64]map[int64]struct{}),
		jobs:         make(map[string]job.Job),
	}
}

// nextID must be called with mu held.
func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

func (db *DB) Users() *UsersRepo               { return &UsersRepo{db: db} }
func (db *DB) Clinics() *ClinicsRepo           { return &ClinicsRepo{db: db} }
func (db *DB) Doctors() *DoctorsRepo           { return &DoctorsRepo{db: db} }
func (db *DB) Services() *ServicesRepo         { return &ServicesRepo{db: db} }
func (db *DB) Appointments() *AppointmentsRepo { return &AppointmentsRepo{db: db} }
func (db *DB) Managers() *ManagersRepo         { return &ManagersRepo{db: db} }
func (db *DB) Jobs() *JobsRepo                 { return &JobsRepo{db: db} }

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func page[T any](items []T, limit, offset int, def int) []T {
	if limit <= 0 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
