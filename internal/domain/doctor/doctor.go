package doctor

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var ErrNotFound = errors.New("doctor not found")

type Doctor struct {
	ID              int64     `json:"id"`
	ClinicID        int64     `json:"clinicId"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Specialization  string    `json:"specialization"`
	Status          Status    `json:"status"`
	ConsultationFee float64   `json:"consultationFee"`
	YearsExperience int       `json:"yearsExperience"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	ClinicID        int64   `json:"clinicId" binding:"required,gt=0"`
	FirstName       string  `json:"firstName" binding:"required,notblank,max=100"`
	LastName        string  `json:"lastName" binding:"required,notblank,max=100"`
	Specialization  string  `json:"specialization" binding:"required,notblank,max=150"`
	Status          Status  `json:"status" binding:"omitempty,oneof=active inactive"`
	ConsultationFee float64 `json:"consultationFee" binding:"gte=0"`
	YearsExperience int     `json:"yearsExperience" binding:"gte=0,lte=80"`
}

type UpdateRequest struct {
	FirstName       *string  `json:"firstName" binding:"omitempty,min=1,max=100"`
	LastName        *string  `json:"lastName" binding:"omitempty,min=1,max=100"`
	Specialization  *string  `json:"specialization" binding:"omitempty,min=1,max=150"`
	Status          *Status  `json:"status" binding:"omitempty,oneof=active inactive"`
	ConsultationFee *float64 `json:"consultationFee" binding:"omitempty,gte=0"`
	YearsExperience *int     `json:"yearsExperience" binding:"omitempty,gte=0,lte=80"`
}

func (r UpdateRequest) Apply(d Doctor) Doctor {
	if r.FirstName != nil {
		d.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		d.LastName = *r.LastName
	}
	if r.Specialization != nil {
		d.Specialization = *r.Specialization
	}
	if r.Status != nil {
		d.Status = *r.Status
	}
	if r.ConsultationFee != nil {
		d.ConsultationFee = *r.ConsultationFee
	}
	if r.YearsExperience != nil {
		d.YearsExperience = *r.YearsExperience
	}
	return d
}

type ListFilter struct {
	ClinicIDs []int64
}
