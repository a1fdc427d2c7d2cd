package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
	StatusCheckedIn       Status = "checked_in"
	StatusCompleted       Status = "completed"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrSlotTaken         = errors.New("time slot already booked")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotCancellable    = errors.New("appointment can no longer be changed")
	ErrInvalidDate       = errors.New("date must be formatted yyyy-mm-dd")
	ErrPastDate          = errors.New("date is in the past")
	ErrInvalidTime       = errors.New("time must be HH:MM or h:mm AM/PM")
)

var transitions = map[Status][]Status{
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:        {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn:       {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusRejected,
		StatusCancelled, StatusCheckedIn, StatusCompleted:
		return true
	}
	return false
}

// Display is the label patients see. A fresh booking reads "scheduled".
func (s Status) Display() string {
	if s == StatusPendingApproval {
		return "scheduled"
	}
	return string(s)
}

// HoldsSlot reports whether an appointment in this status blocks its
// (clinic, date, time) tuple. Only cancellation frees a slot.
func (s Status) HoldsSlot() bool {
	return s != StatusCancelled
}

// PatientMutable reports whether the patient may still cancel or reschedule.
func (s Status) PatientMutable() bool {
	return s == StatusPendingApproval || s == StatusApproved
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"userId"`
	ClinicID        int64     `json:"clinicId"`
	ClinicName      string    `json:"clinicName"`
	ServiceName     string    `json:"serviceName"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Status          Status    `json:"status"`
	DisplayStatus   string    `json:"displayStatus"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	DateOfBirth     *string   `json:"dateOfBirth,omitempty"`
	Reason          string    `json:"reason"`
	Insurance       string    `json:"insurance"`
	RescheduledFrom *int64    `json:"rescheduledFrom,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (a Appointment) Slot() Slot {
	return Slot{ClinicID: a.ClinicID, Date: a.Date, Time: a.Time}
}

// Slot is the reservation key. Two slots conflict only when all three fields are equal.
type Slot struct {
	ClinicID int64  `json:"clinic_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

type SlotConflictError struct {
	Slot Slot
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("clinic %d already has an appointment on %s at %s", e.Slot.ClinicID, e.Slot.Date, e.Slot.Time)
}

func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotTaken
}

// New is a validated booking ready to be stored.
type New struct {
	UserID          int64
	ClinicID        int64
	ServiceName     string
	Date            string
	Time            string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	DateOfBirth     *string
	Reason          string
	Insurance       string
	RescheduledFrom *int64
}

func (n New) Slot() Slot {
	return Slot{ClinicID: n.ClinicID, Date: n.Date, Time: n.Time}
}

type ListFilter struct {
	UserID *int64
	// Scoped limits results to ClinicIDs; a scoped filter with no ids matches nothing.
	Scoped    bool
	ClinicIDs []int64
	Status    *Status
	Date      string
	Limit     int
	Offset    int
}

// Guard vets an appointment loaded inside a mutating transaction.
type Guard func(Appointment) error

// OwnedBy lets a patient act on their own appointment while it is still
// pending or approved. Other patients' appointments read as not found.
func OwnedBy(userID int64) Guard {
	return func(a Appointment) error {
		if a.UserID != userID {
			return ErrNotFound
		}
		if !a.Status.PatientMutable() {
			return ErrNotCancellable
		}
		return nil
	}
}

// ForEmail is the magic-link variant of OwnedBy.
func ForEmail(email string) Guard {
	return func(a Appointment) error {
		if !strings.EqualFold(a.Email, strings.TrimSpace(email)) {
			return ErrNotFound
		}
		if !a.Status.PatientMutable() {
			return ErrNotCancellable
		}
		return nil
	}
}

// Stats are the per-status counts shown on the manager dashboard.
type Stats struct {
	Total           int `json:"total"`
	PendingApproval int `json:"pendingApproval"`
	Approved        int `json:"approved"`
	Rejected        int `json:"rejected"`
	Cancelled       int `json:"cancelled"`
	CheckedIn       int `json:"checkedIn"`
	Completed       int `json:"completed"`
	Today           int `json:"today"`
}

func (s *Stats) Add(status Status, n int) {
	s.Total += n
	switch status {
	case StatusPendingApproval:
		s.PendingApproval += n
	case StatusApproved:
		s.Approved += n
	case StatusRejected:
		s.Rejected += n
	case StatusCancelled:
		s.Cancelled += n
	case StatusCheckedIn:
		s.CheckedIn += n
	case StatusCompleted:
		s.Completed += n
	}
}
