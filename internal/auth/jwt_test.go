package auth_test

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/booknest/booknest/internal/auth"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestNewManagerRejectsBadSecrets(t *testing.T) {
	_, err := auth.NewManager("", time.Hour)

	if !errors.Is(err, auth.ErrEmptySecret) {
		t.Fatalf("got %v, want ErrEmptySecret", err)
	}

	_, err = auth.NewManager("not-base64!!!", time.Hour)

	if !errors.Is(err, auth.ErrMalformedSecret) {
		t.Fatalf("got %v, want ErrMalformedSecret", err)
	}
}

func TestGenerateAndValidateRoundTrip(t *testing.T) {
	m, err := auth.NewManager(testSecret, time.Hour)

	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tokenStr, err := m.GenerateToken("jane@example.com", "Jane Doe", []string{"USER"})

	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.Validate(tokenStr, "jane@example.com")

	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if claims.Subject != "jane@example.com" {
		t.Errorf("subject = %q, want jane@example.com", claims.Subject)
	}

	if claims.FullName != "Jane Doe" {
		t.Errorf("fullName = %q, want Jane Doe", claims.FullName)
	}

	if len(claims.Authorities) != 1 || claims.Authorities[0] != "USER" {
		t.Errorf("authorities = %v, want [USER]", claims.Authorities)
	}
}

func TestValidateRejectsWrongSubject(t *testing.T) {
	m, _ := auth.NewManager(testSecret, time.Hour)

	tokenStr, err := m.GenerateToken("jane@example.com", "Jane Doe", nil)

	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	_, err = m.Validate(tokenStr, "someone-else@example.com")

	if !errors.Is(err, auth.ErrWrongSubject) {
		t.Fatalf("got %v, want ErrWrongSubject", err)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	// negative TTL mints an already-expired token
	m, _ := auth.NewManager(testSecret, -time.Minute)

	tokenStr, err := m.GenerateToken("jane@example.com", "Jane Doe", nil)

	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	_, err = m.Validate(tokenStr, "jane@example.com")

	if err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	m1, _ := auth.NewManager(testSecret, time.Hour)

	otherSecret := base64.StdEncoding.EncodeToString([]byte("ffffffffffffffffffffffffffffffff"))
	m2, _ := auth.NewManager(otherSecret, time.Hour)

	tokenStr, err := m2.GenerateToken("jane@example.com", "Jane Doe", nil)

	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	_, err = m1.ParseAndValidate(tokenStr)

	if err == nil {
		t.Fatal("expected signature error, got nil")
	}
}
