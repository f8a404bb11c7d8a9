package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"` // never expose hash in JSON
	Enabled       bool      `json:"enabled"`
	AccountLocked bool      `json:"accountLocked"`
	Roles         []string  `json:"roles"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Role is static reference data, seeded at deploy time.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	ErrNotFound        = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already in use")
	ErrAccountLocked   = errors.New("user account is locked")
	ErrAccountDisabled = errors.New("user account is disabled")
	ErrBadCredentials  = errors.New("login and / or password is incorrect")
	// The USER role missing is a deployment problem, not a client error.
	ErrRoleNotSeeded = errors.New("role has not been initialised")
)

type RegisterRequest struct {
	Firstname string `json:"firstname" binding:"required,min=1,max=80"`
	Lastname  string `json:"lastname" binding:"required,min=1,max=80"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
}

type AuthenticateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// NewFromRegisterRequest builds a disabled user; activation flips Enabled.
func NewFromRegisterRequest(req RegisterRequest, passwordHash string, roles []string) User {
	now := time.Now().UTC()

	return User{
		ID:            uuid.NewString(),
		FirstName:     req.Firstname,
		LastName:      req.Lastname,
		Email:         req.Email,
		PasswordHash:  passwordHash,
		Enabled:       false,
		AccountLocked: false,
		Roles:         roles,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
