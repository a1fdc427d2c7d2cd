package jobs

type JobType string

const (
	JobAppointmentBooked        JobType = "appointment_booked"
	JobAppointmentStatusChanged JobType = "appointment_status_changed"
)

// check to see if the job type is a known constant
func (t JobType) IsValid() bool {
	switch t {
	case JobAppointmentBooked, JobAppointmentStatusChanged:
		return true
	default:
		return false
	}
}
