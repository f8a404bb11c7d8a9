package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier delivers the activation email through a plain SMTP relay.
type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) SendActivationEmail(ctx context.Context, in SendActivationEmailInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildActivationMessage(n.cfg.From, in)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth

	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	done := make(chan error, 1)

	go func() {
		done <- smtp.SendMail(addr, auth, n.cfg.From, []string{in.Email}, msg)
	}()

	// net/smtp has no context support; honour cancellation by abandoning
	// the send goroutine and letting the delivery ledger retry later.
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildActivationMessage(from string, in SendActivationEmailInput) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", in.Email)
	fmt.Fprintf(&b, "Subject: Account activation\r\n")
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", in.FullName)
	fmt.Fprintf(&b, "Your activation code is %s.\r\n", in.Code)
	fmt.Fprintf(&b, "Activate your account at %s\r\n", in.ActivationURL)
	fmt.Fprintf(&b, "The code expires in 15 minutes.\r\n")

	return []byte(b.String())
}
