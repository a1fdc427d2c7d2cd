package jobs

import "strings"

// ValidatePayload checks that payload matches t and carries the fields the
// worker cannot do without.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobAppointmentBooked:
		var p AppointmentBookedPayload
		switch v := payload.(type) {
		case AppointmentBookedPayload:
			p = v
		case *AppointmentBookedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if p.AppointmentID <= 0 || trim(p.Email) == "" || trim(p.Date) == "" || trim(p.Time) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	case JobAppointmentStatusChanged:
		var p AppointmentStatusChangedPayload
		switch v := payload.(type) {
		case AppointmentStatusChangedPayload:
			p = v
		case *AppointmentStatusChangedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if p.AppointmentID <= 0 || trim(p.Email) == "" || trim(p.To) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
