package service

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("service not found")
	ErrDuplicate = errors.New("service already exists for clinic")
)

// Service is a named offering of one clinic, e.g. "Dental Cleaning".
type Service struct {
	ID          int64     `json:"id"`
	ClinicID    int64     `json:"clinicId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	ClinicID    int64  `json:"clinicId" binding:"required,gt=0"`
	Name        string `json:"name" binding:"required,notblank,max=150"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=150"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

func (r UpdateRequest) Apply(s Service) Service {
	if r.Name != nil {
		s.Name = *r.Name
	}
	if r.Description != nil {
		s.Description = *r.Description
	}
	return s
}

type ListFilter struct {
	ClinicIDs []int64
}
