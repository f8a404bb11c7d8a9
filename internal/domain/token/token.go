package token

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// CodeLength is the number of digits in an activation code.
const CodeLength = 6

var (
	ErrNotFound = errors.New("activation token not found")
	ErrExpired  = errors.New("activation token has expired")
	ErrUsed     = errors.New("activation token already used")
)

// ActivationToken proves control of the registered email address. Usable
// once (ValidatedAt nil) and only before ExpiresAt.
type ActivationToken struct {
	ID          string     `json:"id"`
	Code        string     `json:"-"`
	UserID      string     `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
}

// New issues a fresh token for the user with the given TTL.
func New(userID string, ttl time.Duration) (ActivationToken, error) {
	code, err := GenerateCode(CodeLength)

	if err != nil {
		return ActivationToken{}, err
	}

	now := time.Now().UTC()

	return ActivationToken{
		ID:        uuid.NewString(),
		Code:      code,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// GenerateCode builds a numeric code from a cryptographically secure
// random source. Leading zeros are allowed.
func GenerateCode(length int) (string, error) {
	const digits = "0123456789"

	out := make([]byte, length)

	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))

		if err != nil {
			return "", err
		}

		out[i] = digits[n.Int64()]
	}

	return string(out), nil
}

func (t ActivationToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t ActivationToken) Used() bool {
	return t.ValidatedAt != nil
}

// Validate reports why the token cannot activate an account: ErrUsed wins
// over ErrExpired, nil means the token is still good.
func (t ActivationToken) Validate(now time.Time) error {
	if t.Used() {
		return ErrUsed
	}

	if t.ExpiredAt(now) {
		return ErrExpired
	}

	return nil
}
