package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const magicLinkType = "magic_link"

var ErrInvalidToken = errors.New("invalid or expired link")

// MagicClaims grant access to a single appointment without a login.
type MagicClaims struct {
	AppointmentID int64  `json:"aid"`
	Email         string `json:"email"`
	TokenType     string `json:"typ"`
	jwt.RegisteredClaims
}

type MagicLinks struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

func NewMagicLinks(secret string, ttl time.Duration, baseURL string) *MagicLinks {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &MagicLinks{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (m *MagicLinks) Issue(appointmentID int64, email string) (string, time.Time, error) {
	now := m.now().UTC()
	exp := now.Add(m.ttl)

	claims := MagicClaims{
		AppointmentID: appointmentID,
		Email:         strings.ToLower(email),
		TokenType:     magicLinkType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(appointmentID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// URL is the link sent to the patient.
func (m *MagicLinks) URL(token string) string {
	return m.baseURL + "/appointments/magic/" + token
}

func (m *MagicLinks) Verify(tokenStr string) (*MagicClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &MagicClaims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*MagicClaims)
	if !ok || !token.Valid || claims.TokenType != magicLinkType || claims.AppointmentID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
