package appointment

import "strings"

type CreateRequest struct {
	ClinicID    int64  `json:"clinicId" binding:"required,gt=0"`
	Service     string `json:"service" binding:"required,notblank,max=150"`
	Date        string `json:"date" binding:"required,isodate"`
	Time        string `json:"time" binding:"required,clocktime"`
	FirstName   string `json:"firstName" binding:"required,notblank,max=100"`
	LastName    string `json:"lastName" binding:"required,notblank,max=100"`
	Email       string `json:"email" binding:"required,email,max=254"`
	Phone       string `json:"phone" binding:"omitempty,max=30"`
	DateOfBirth string `json:"dateOfBirth" binding:"omitempty,isodate"`
	Reason      string `json:"reason" binding:"omitempty,max=2000"`
	Insurance   string `json:"insurance" binding:"omitempty,max=200"`
}

// ToNew validates date and time and canonicalizes the slot. A non-empty
// floor rejects dates before it.
func (r CreateRequest) ToNew(userID int64, floor string) (New, error) {
	date, err := ValidateBookingDate(r.Date, floor)
	if err != nil {
		return New{}, err
	}
	tm, err := NormalizeTime(r.Time)
	if err != nil {
		return New{}, err
	}

	n := New{
		UserID:      userID,
		ClinicID:    r.ClinicID,
		ServiceName: strings.TrimSpace(r.Service),
		Date:        date,
		Time:        tm,
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
		Email:       strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:       strings.TrimSpace(r.Phone),
		Reason:      r.Reason,
		Insurance:   r.Insurance,
	}
	if dob := strings.TrimSpace(r.DateOfBirth); dob != "" {
		t, err := ParseDate(dob)
		if err != nil {
			return New{}, err
		}
		s := t.Format(DateLayout)
		n.DateOfBirth = &s
	}
	return n, nil
}

type RescheduleRequest struct {
	Date string `json:"date" binding:"required,isodate"`
	Time string `json:"time" binding:"required,clocktime"`
}

// Target returns the canonical date and time to move to.
func (r RescheduleRequest) Target(floor string) (string, string, error) {
	date, err := ValidateBookingDate(r.Date, floor)
	if err != nil {
		return "", "", err
	}
	tm, err := NormalizeTime(r.Time)
	if err != nil {
		return "", "", err
	}
	return date, tm, nil
}

type StatusUpdateRequest struct {
	Status Status `json:"status" binding:"required,oneof=approved rejected cancelled checked_in completed"`
}
