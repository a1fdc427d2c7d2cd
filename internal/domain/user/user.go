package user

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleUser          Role = "user"
	RoleClinicManager Role = "clinic_manager"
	RoleAdmin         Role = "admin"
)

// legacy value still present in older rows
const legacyManagerRole = "manager"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrInvalidRole   = errors.New("invalid role")
	ErrWrongPassword = errors.New("current password is incorrect")
)

// NormalizeRole maps a stored role string onto the closed Role set.
// The boolean is false for anything outside it.
func NormalizeRole(raw string) (Role, bool) {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == legacyManagerRole {
		return RoleClinicManager, true
	}

	switch Role(r) {
	case RoleUser, RoleClinicManager, RoleAdmin:
		return Role(r), true
	}

	return "", false
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleClinicManager, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) Active() bool {
	return u.Status == StatusActive
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"firstName" binding:"required,notblank,max=100"`
	LastName  string `json:"lastName" binding:"required,notblank,max=100"`
	Phone     string `json:"phone" binding:"omitempty,max=30"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,max=30"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

// AdminUpdateRequest is what an admin may change on any principal.
type AdminUpdateRequest struct {
	Email     *string `json:"email" binding:"omitempty,email,max=254"`
	FirstName *string `json:"firstName" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,max=30"`
}

type ListFilter struct {
	Role   *Role
	Limit  int
	Offset int
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
