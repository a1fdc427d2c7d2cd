package jobs

import (
	"errors"
	"testing"
)

func TestEncodeDecode_AppointmentBooked(t *testing.T) {
	payload := AppointmentBookedPayload{
		AppointmentID: 42,
		ClinicID:      5,
		ClinicName:    "Mabini Health Center",
		Email:         "juan@example.com",
		PatientName:   "Juan Dela Cruz",
		Date:          "2025-03-01",
		Time:          "14:30",
	}

	b, err := EncodePayload(JobAppointmentBooked, payload)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	decoded, err := DecodePayload(JobAppointmentBooked, b)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	p, ok := decoded.(AppointmentBookedPayload)
	if !ok {
		t.Fatalf("expected AppointmentBookedPayload, got %T", decoded)
	}

	if p != payload {
		t.Fatalf("decoded %+v, want %+v", p, payload)
	}
}

func TestEncodePayload_TypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobAppointmentBooked, AppointmentStatusChangedPayload{
		AppointmentID: 1,
		Email:         "a@b.c",
		To:            "approved",
	})
	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
}

func TestValidatePayload_RequiredFields(t *testing.T) {
	err := ValidatePayload(JobAppointmentStatusChanged, AppointmentStatusChangedPayload{AppointmentID: 3})
	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected ErrInvalidJobPayload, got %v", err)
	}
}

func TestDecodePayload_UnknownType(t *testing.T) {
	_, err := DecodePayload(JobType("send_fax"), []byte(`{}`))
	if !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("expected ErrInvalidJobType, got %v", err)
	}
}

func TestDecodePayload_Garbage(t *testing.T) {
	_, err := DecodePayload(JobAppointmentBooked, []byte(`{not json`))
	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected ErrInvalidJobPayload, got %v", err)
	}
}
