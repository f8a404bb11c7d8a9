package token_test

import (
	"testing"
	"time"

	"github.com/booknest/booknest/internal/domain/token"
)

func TestGenerateCodeIsNumeric(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := token.GenerateCode(token.CodeLength)

		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}

		if len(code) != token.CodeLength {
			t.Fatalf("len(code) = %d, want %d", len(code), token.CodeLength)
		}

		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code %q contains non-digit %q", code, c)
			}
		}
	}
}

func TestNewTokenExpiry(t *testing.T) {
	tok, err := token.New("user-1", 15*time.Minute)

	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if tok.UserID != "user-1" {
		t.Errorf("userID = %q", tok.UserID)
	}

	if tok.Used() {
		t.Error("fresh token should not be used")
	}

	if tok.ExpiredAt(time.Now().UTC()) {
		t.Error("fresh token should not be expired")
	}

	if !tok.ExpiredAt(time.Now().UTC().Add(16 * time.Minute)) {
		t.Error("token should expire after its TTL")
	}
}

func TestValidate(t *testing.T) {
	now := time.Now().UTC()
	used := now.Add(-time.Hour)

	tests := []struct {
		name string
		tok  token.ActivationToken
		want error
	}{
		{
			name: "fresh",
			tok:  token.ActivationToken{ExpiresAt: now.Add(15 * time.Minute)},
			want: nil,
		},
		{
			name: "expired",
			tok:  token.ActivationToken{ExpiresAt: now.Add(-time.Minute)},
			want: token.ErrExpired,
		},
		{
			name: "used",
			tok:  token.ActivationToken{ExpiresAt: now.Add(15 * time.Minute), ValidatedAt: &used},
			want: token.ErrUsed,
		},
		{
			name: "used wins over expired",
			tok:  token.ActivationToken{ExpiresAt: now.Add(-time.Minute), ValidatedAt: &used},
			want: token.ErrUsed,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tok.Validate(now); got != tt.want {
				t.Fatalf("Validate = %v, want %v", got, tt.want)
			}
		})
	}
}
