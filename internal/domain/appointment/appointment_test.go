package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertTo24Hour(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "12:00 AM", want: "00:00"},
		{in: "12:30 PM", want: "12:30"},
		{in: "1:00 PM", want: "13:00"},
		{in: "1:05 PM", want: "13:05"},
		{in: "9:00 am", want: "09:00"},
		{in: "11:59 PM", want: "23:59"},
		{in: "13:00 PM", wantErr: true},
		{in: "0:30 AM", wantErr: true},
		{in: "9:60 AM", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "9:00 XM", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ConvertTo24Hour(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := map[string]string{
		"09:30":    "09:30",
		"9:30":     "09:30",
		" 14:00 ":  "14:00",
		"2:30PM":   "14:30",
		"2:30 pm":  "14:30",
		"12:15 AM": "00:15",
	}
	for in, want := range tests {
		got, err := NormalizeTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "24:00", "9", "9:5", "ab:cd", "-1:00"} {
		_, err := NormalizeTime(bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
}

func TestFormat12Hour(t *testing.T) {
	assert.Equal(t, "12:00 AM", Format12Hour("00:00"))
	assert.Equal(t, "12:30 PM", Format12Hour("12:30"))
	assert.Equal(t, "2:30 PM", Format12Hour("14:30"))
	assert.Equal(t, "9:05 AM", Format12Hour("09:05"))
	assert.Equal(t, "garbage", Format12Hour("garbage"))
}

func TestValidateBookingDate(t *testing.T) {
	today := "2026-10-15"

	d, err := ValidateBookingDate("2026-10-15", today)
	require.NoError(t, err)
	assert.Equal(t, today, d)

	_, err = ValidateBookingDate("2026-10-14", today)
	assert.ErrorIs(t, err, ErrPastDate)

	_, err = ValidateBookingDate("2026-02-30", today)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ValidateBookingDate("15/10/2026", today)
	assert.ErrorIs(t, err, ErrInvalidDate)

	// no floor: any real calendar date is bookable
	d, err = ValidateBookingDate("2025-03-01", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", d)

	_, err = ValidateBookingDate("2025-02-30", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestToday_UsesLocation(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	now := time.Date(2026, 10, 15, 17, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-16", Today(now, manila))
	assert.Equal(t, "2026-10-15", Today(now, nil))
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPendingApproval, StatusApproved},
		{StatusPendingApproval, StatusRejected},
		{StatusPendingApproval, StatusCancelled},
		{StatusApproved, StatusCheckedIn},
		{StatusApproved, StatusCancelled},
		{StatusCheckedIn, StatusCompleted},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	denied := [][2]Status{
		{StatusApproved, StatusPendingApproval},
		{StatusRejected, StatusApproved},
		{StatusCancelled, StatusApproved},
		{StatusCompleted, StatusCancelled},
		{StatusCheckedIn, StatusCancelled},
		{StatusPendingApproval, StatusCompleted},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestStatus_HoldsSlotAndDisplay(t *testing.T) {
	for _, s := range []Status{StatusPendingApproval, StatusApproved, StatusRejected, StatusCheckedIn, StatusCompleted} {
		assert.True(t, s.HoldsSlot(), s)
	}
	assert.False(t, StatusCancelled.HoldsSlot())

	assert.Equal(t, "scheduled", StatusPendingApproval.Display())
	assert.Equal(t, "approved", StatusApproved.Display())
	assert.False(t, Status("booked").Valid())
}

func TestGuards(t *testing.T) {
	a := Appointment{UserID: 7, Email: "ana@example.com", Status: StatusApproved}

	assert.NoError(t, OwnedBy(7)(a))
	assert.ErrorIs(t, OwnedBy(8)(a), ErrNotFound)
	assert.NoError(t, ForEmail(" ANA@example.com")(a))
	assert.ErrorIs(t, ForEmail("bob@example.com")(a), ErrNotFound)

	a.Status = StatusCompleted
	assert.ErrorIs(t, OwnedBy(7)(a), ErrNotCancellable)
	assert.ErrorIs(t, ForEmail("ana@example.com")(a), ErrNotCancellable)
}

func TestSlotConflictError_IsSlotTaken(t *testing.T) {
	var err error = &SlotConflictError{Slot: Slot{ClinicID: 1, Date: "2026-10-20", Time: "09:00"}}

	assert.True(t, errors.Is(err, ErrSlotTaken))

	var conflict *SlotConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(1), conflict.Slot.ClinicID)
}

func TestCreateRequest_ToNew(t *testing.T) {
	req := CreateRequest{
		ClinicID:    4,
		Service:     "  Dental cleaning ",
		Date:        "2026-10-20",
		Time:        "2:30 PM",
		FirstName:   " Ana ",
		LastName:    "Cruz",
		Email:       " Ana@Example.com ",
		DateOfBirth: "1990-05-01",
	}

	n, err := req.ToNew(9, "2026-10-15")
	require.NoError(t, err)

	assert.Equal(t, int64(9), n.UserID)
	assert.Equal(t, Slot{ClinicID: 4, Date: "2026-10-20", Time: "14:30"}, n.Slot())
	assert.Equal(t, "Dental cleaning", n.ServiceName)
	assert.Equal(t, "Ana", n.FirstName)
	assert.Equal(t, "ana@example.com", n.Email)
	require.NotNil(t, n.DateOfBirth)
	assert.Equal(t, "1990-05-01", *n.DateOfBirth)

	req.Date = "2026-10-01"
	_, err = req.ToNew(9, "2026-10-15")
	assert.ErrorIs(t, err, ErrPastDate)
}

func TestRescheduleRequest_Target(t *testing.T) {
	date, tm, err := RescheduleRequest{Date: "2026-11-01", Time: "8:00 AM"}.Target("2026-10-15")
	require.NoError(t, err)
	assert.Equal(t, "2026-11-01", date)
	assert.Equal(t, "08:00", tm)
}

func TestStats_Add(t *testing.T) {
	var s Stats
	s.Add(StatusPendingApproval, 2)
	s.Add(StatusCompleted, 1)
	s.Add(StatusCancelled, 3)

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.PendingApproval)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 3, s.Cancelled)
}
