package clinic

import (
	"errors"
	"time"

	"github.com/geocoder89/clinicfinder/internal/domain/doctor"
	"github.com/geocoder89/clinicfinder/internal/domain/service"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

var (
	ErrNotFound = errors.New("clinic not found")
	ErrClosed   = errors.New("clinic is closed")
	// returned when a clinic still has appointments and cannot be removed
	ErrInUse = errors.New("clinic has appointments")
)

type Clinic struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Address     string            `json:"address"`
	Phone       string            `json:"phone"`
	Email       string            `json:"email"`
	Description string            `json:"description"`
	Status      Status            `json:"status"`
	Latitude    *float64          `json:"latitude"`
	Longitude   *float64          `json:"longitude"`
	Services    []service.Service `json:"services,omitempty"`
	Doctors     []doctor.Doctor   `json:"doctors,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func (c Clinic) Open() bool {
	return c.Status == StatusOpen
}

// MapPin is the subset the map view needs.
type MapPin struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Status    Status   `json:"status"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (c Clinic) Pin() MapPin {
	return MapPin{
		ID:        c.ID,
		Name:      c.Name,
		Address:   c.Address,
		Status:    c.Status,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	}
}

type CreateRequest struct {
	Name        string   `json:"name" binding:"required,notblank,min=2,max=200"`
	Address     string   `json:"address" binding:"required,notblank,max=500"`
	Phone       string   `json:"phone" binding:"omitempty,max=30"`
	Email       string   `json:"email" binding:"omitempty,email,max=254"`
	Description string   `json:"description" binding:"omitempty,max=4000"`
	Status      Status   `json:"status" binding:"omitempty,oneof=open closed"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,longitude"`
}

type UpdateRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=2,max=200"`
	Address     *string  `json:"address" binding:"omitempty,max=500"`
	Phone       *string  `json:"phone" binding:"omitempty,max=30"`
	Email       *string  `json:"email" binding:"omitempty,email,max=254"`
	Description *string  `json:"description" binding:"omitempty,max=4000"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,longitude"`
}

func (r UpdateRequest) Empty() bool {
	return r.Name == nil && r.Address == nil && r.Phone == nil && r.Email == nil &&
		r.Description == nil && r.Latitude == nil && r.Longitude == nil
}

type StatusRequest struct {
	Status Status `json:"status" binding:"required,oneof=open closed"`
}

// ClinicStatusRequest is the manager variant, which names the clinic explicitly.
type ClinicStatusRequest struct {
	ClinicID int64  `json:"clinicId" binding:"required,gt=0"`
	Status   Status `json:"status" binding:"required,oneof=open closed"`
}

type ListFilter struct {
	Status *Status
	Query  string
	IDs    []int64
}

// Apply returns c with the non-nil fields of r set.
func (r UpdateRequest) Apply(c Clinic) Clinic {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.Address != nil {
		c.Address = *r.Address
	}
	if r.Phone != nil {
		c.Phone = *r.Phone
	}
	if r.Email != nil {
		c.Email = *r.Email
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.Latitude != nil {
		c.Latitude = r.Latitude
	}
	if r.Longitude != nil {
		c.Longitude = r.Longitude
	}
	return c
}
