package jobs

import (
	"fmt"
	"strings"

	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/domain/job"
)

func patientName(a appointment.Appointment) string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// BookedJob builds the confirmation job written alongside a new booking.
func BookedJob(a appointment.Appointment) (job.CreateRequest, error) {
	b, err := EncodePayload(JobAppointmentBooked, AppointmentBookedPayload{
		AppointmentID: a.ID,
		ClinicID:      a.ClinicID,
		ClinicName:    a.ClinicName,
		Email:         a.Email,
		PatientName:   patientName(a),
		Date:          a.Date,
		Time:          a.Time,
		Rescheduled:   a.RescheduledFrom != nil,
	})
	if err != nil {
		return job.CreateRequest{}, err
	}

	key := fmt.Sprintf("%s:%d", JobAppointmentBooked, a.ID)
	return job.CreateRequest{
		Type:           string(JobAppointmentBooked),
		Payload:        b,
		IdempotencyKey: &key,
	}, nil
}

// StatusChangedJob builds the notification for a status transition.
func StatusChangedJob(a appointment.Appointment, from appointment.Status, actorID int64) (job.CreateRequest, error) {
	b, err := EncodePayload(JobAppointmentStatusChanged, AppointmentStatusChangedPayload{
		AppointmentID: a.ID,
		Email:         a.Email,
		PatientName:   patientName(a),
		ClinicName:    a.ClinicName,
		Date:          a.Date,
		Time:          a.Time,
		From:          string(from),
		To:            string(a.Status),
		ActorID:       actorID,
	})
	if err != nil {
		return job.CreateRequest{}, err
	}

	key := fmt.Sprintf("%s:%d:%s", JobAppointmentStatusChanged, a.ID, a.Status)
	return job.CreateRequest{
		Type:           string(JobAppointmentStatusChanged),
		Payload:        b,
		IdempotencyKey: &key,
	}, nil
}
