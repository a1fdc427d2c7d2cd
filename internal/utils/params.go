package utils

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidID = errors.New("invalid id")

// ParseID parses a positive integer path or query id.
func ParseID(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidID
	}
	return n, nil
}

// ParseOptionalID returns nil for an empty value.
func ParseOptionalID(raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	n, err := ParseID(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func ParseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
