package notifications

import (
	"context"
	"errors"
)

var (
	ErrAlreadySent = errors.New("email already sent")
	ErrInProgress  = errors.New("email delivery in progress")
)

type SendActivationEmailInput struct {
	Email         string
	FullName      string
	Code          string
	ActivationURL string
}

type Notifier interface {
	SendActivationEmail(ctx context.Context, input SendActivationEmailInput) error
}
