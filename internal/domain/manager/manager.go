package manager

import (
	"errors"
	"sort"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/user"
)

var (
	ErrNotFound        = errors.New("clinic manager not found")
	ErrEmptyAssignment = errors.New("at least one clinic must be assigned")
	ErrUnknownClinic   = errors.New("unknown clinic id")
	ErrOutOfScope      = errors.New("clinic is not managed by this manager")
)

type ClinicRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Manager is a clinic_manager principal together with its assigned clinics.
type Manager struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Phone     string      `json:"phone"`
	Status    user.Status `json:"status"`
	Clinics   []ClinicRef `json:"clinics"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (m Manager) ClinicIDs() []int64 {
	ids := make([]int64, 0, len(m.Clinics))
	for _, c := range m.Clinics {
		ids = append(ids, c.ID)
	}
	return ids
}

type CreateRequest struct {
	Email     string  `json:"email" binding:"required,email,max=254"`
	Password  string  `json:"password" binding:"required,min=8,max=72"`
	FirstName string  `json:"firstName" binding:"required,notblank,max=100"`
	LastName  string  `json:"lastName" binding:"required,notblank,max=100"`
	Phone     string  `json:"phone" binding:"omitempty,max=30"`
	ClinicIDs []int64 `json:"clinicIds" binding:"required,min=1,dive,gt=0"`
}

type UpdateRequest struct {
	Email     *string  `json:"email" binding:"omitempty,email,max=254"`
	FirstName *string  `json:"firstName" binding:"omitempty,min=1,max=100"`
	LastName  *string  `json:"lastName" binding:"omitempty,min=1,max=100"`
	Phone     *string  `json:"phone" binding:"omitempty,max=30"`
	Password  *string  `json:"password" binding:"omitempty,min=8,max=72"`
	ClinicIDs *[]int64 `json:"clinicIds"`
}

type AssignRequest struct {
	ClinicIDs []int64 `json:"clinicIds" binding:"required,min=1,dive,gt=0"`
}

// ValidateAssignment de-duplicates ids and rejects an empty or non-positive set.
func ValidateAssignment(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyAssignment
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, ErrUnknownClinic
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Scope is the set of clinics a manager may act on.
type Scope struct {
	ManagerID int64
	ClinicIDs []int64
}

func (s Scope) Allows(clinicID int64) bool {
	for _, id := range s.ClinicIDs {
		if id == clinicID {
			return true
		}
	}
	return false
}

func (s Scope) Empty() bool {
	return len(s.ClinicIDs) == 0
}

// Resolve narrows the scope to one clinic when requested.
// nil means "all assigned clinics".
func (s Scope) Resolve(clinicID *int64) ([]int64, error) {
	if clinicID == nil {
		return s.ClinicIDs, nil
	}
	if !s.Allows(*clinicID) {
		return nil, ErrOutOfScope
	}
	return []int64{*clinicID}, nil
}

// Changes is a validated UpdateRequest. ClinicIDs nil leaves assignments alone.
type Changes struct {
	Email        *string
	FirstName    *string
	LastName     *string
	Phone        *string
	PasswordHash *string
	ClinicIDs    []int64
}
