package auth

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrWrongSubject    = errors.New("token subject does not match user")
	ErrEmptySecret     = errors.New("jwt secret is empty")
	ErrMalformedSecret = errors.New("jwt secret is not valid base64")
)

// Claims carried by every access token. Subject is the user's email.
type Claims struct {
	FullName    string   `json:"fullName"`
	Authorities []string `json:"authorities"`
	jwt.RegisteredClaims
}

type Manager struct {
	key []byte
	ttl time.Duration
}

// NewManager decodes the base64-encoded HMAC secret and fixes the token TTL.
func NewManager(base64Secret string, ttl time.Duration) (*Manager, error) {
	if base64Secret == "" {
		return nil, ErrEmptySecret
	}

	key, err := base64.StdEncoding.DecodeString(base64Secret)

	if err != nil {
		return nil, ErrMalformedSecret
	}

	return &Manager{key: key, ttl: ttl}, nil
}

// GenerateToken mints an HS256 token for the given identity.
func (m *Manager) GenerateToken(email, fullName string, authorities []string) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		FullName:    fullName,
		Authorities: authorities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

// ParseAndValidate checks signature and expiry and returns the claims.
func (m *Manager) ParseAndValidate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256; reject alg confusion.
		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validate enforces the full validity rule: signature ok, not expired, and
// subject equal to the expected user's email.
func (m *Manager) Validate(tokenStr, expectedEmail string) (*Claims, error) {
	claims, err := m.ParseAndValidate(tokenStr)

	if err != nil {
		return nil, err
	}

	if claims.Subject != expectedEmail {
		return nil, ErrWrongSubject
	}

	return claims, nil
}
