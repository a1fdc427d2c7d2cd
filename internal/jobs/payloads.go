package jobs

// AppointmentBookedPayload asks the worker to send the booking confirmation
// with a magic link. Keep payloads ID-based plus what the message needs.
type AppointmentBookedPayload struct {
	AppointmentID int64  `json:"appointmentId"`
	ClinicID      int64  `json:"clinicId"`
	ClinicName    string `json:"clinicName"`
	Email         string `json:"email"`
	PatientName   string `json:"patientName"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Rescheduled   bool   `json:"rescheduled,omitempty"`
}

// AppointmentStatusChangedPayload notifies the patient of a manager decision
// or a cancellation.
type AppointmentStatusChangedPayload struct {
	AppointmentID int64  `json:"appointmentId"`
	Email         string `json:"email"`
	PatientName   string `json:"patientName"`
	ClinicName    string `json:"clinicName"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	From          string `json:"from"`
	To            string `json:"to"`
	ActorID       int64  `json:"actorId,omitempty"`
}
