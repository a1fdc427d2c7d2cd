package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ConvertTo24Hour turns the booking form's "h:mm AM|PM" into "HH:MM".
// 12 AM is midnight and 12 PM is noon.
func ConvertTo24Hour(s string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return "", ErrInvalidTime
	}

	hour, minute, err := splitClock(fields[0])
	if err != nil {
		return "", err
	}
	if hour < 1 || hour > 12 {
		return "", ErrInvalidTime
	}

	switch strings.ToUpper(fields[1]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	default:
		return "", ErrInvalidTime
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// NormalizeTime accepts either 24-hour "HH:MM" or the 12-hour display form
// and returns the canonical "HH:MM" used as part of the slot key.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidTime
	}

	up := strings.ToUpper(s)
	if strings.HasSuffix(up, "AM") || strings.HasSuffix(up, "PM") {
		// tolerate "2:30PM"
		if !strings.Contains(s, " ") {
			s = s[:len(s)-2] + " " + s[len(s)-2:]
		}
		return ConvertTo24Hour(s)
	}

	hour, minute, err := splitClock(s)
	if err != nil {
		return "", err
	}
	if hour > 23 {
		return "", ErrInvalidTime
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// Format12Hour is the inverse of ConvertTo24Hour, used in notifications.
func Format12Hour(hhmm string) string {
	hour, minute, err := splitClock(hhmm)
	if err != nil || hour > 23 {
		return hhmm
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}

func splitClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || len(hs) == 0 || len(hs) > 2 || len(ms) != 2 {
		return 0, 0, ErrInvalidTime
	}
	hour, err := strconv.Atoi(hs)
	if err != nil || hour < 0 {
		return 0, 0, ErrInvalidTime
	}
	minute, err := strconv.Atoi(ms)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidTime
	}
	return hour, minute, nil
}

// ParseDate validates a yyyy-mm-dd calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// Today is the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// ValidateBookingDate rejects malformed dates. When floor is set, dates
// before it are rejected too; an empty floor accepts any calendar date.
func ValidateBookingDate(date, floor string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	d := t.Format(DateLayout)
	// same layout, so lexical order is chronological order
	if floor != "" && d < floor {
		return "", ErrPastDate
	}
	return d, nil
}
