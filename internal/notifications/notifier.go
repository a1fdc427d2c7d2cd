// Package notifications delivers patient-facing appointment messages.
package notifications

import "context"

type BookingConfirmationInput struct {
	AppointmentID int64
	Email         string
	PatientName   string
	ClinicName    string
	Date          string
	Time          string
	MagicLink     string
	Rescheduled   bool
}

type StatusChangeInput struct {
	AppointmentID int64
	Email         string
	PatientName   string
	ClinicName    string
	Date          string
	Time          string
	From          string
	To            string
}

type Notifier interface {
	SendBookingConfirmation(ctx context.Context, in BookingConfirmationInput) error
	SendStatusChange(ctx context.Context, in StatusChangeInput) error
}
