package service

import (
	"errors"
	"fmt"

	"bytekeep/auth-api/config"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ErrMailDisabled is returned by the no-op mailer used when no API
// key is configured. Issuance endpoints log it and carry on, the
// token is already persisted by then.
var ErrMailDisabled = errors.New("mail delivery disabled, no API key configured")

type Mailer interface {
	SendPasswordReset(to, link string) error
	SendVerification(to, link string) error
}

// NewMailer picks the real Resend client or the disabled fallback
// depending on whether an API key was configured.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.MailAPIKey == "" {
		return &disabledMailer{}
	}

	return &ResendMailer{
		client: resend.NewClient(cfg.MailAPIKey),
		sender: cfg.MailSender,
	}
}

type ResendMailer struct {
	client *resend.Client
	sender string
}

func (m *ResendMailer) SendPasswordReset(to, link string) error {
	if to == m.sender {
		return errors.New("invalid email address")
	}

	_, err := m.client.Emails.Send(&resend.SendEmailRequest{
		From:    m.sender,
		To:      []string{to},
		Subject: "Reset your password",
		Html: fmt.Sprintf("Click <a href='%v'>here</a> to reset your password."+
			"<br><br>If you didn't request this you can safely ignore this email.", link),
	})

	return err
}

func (m *ResendMailer) SendVerification(to, link string) error {
	if to == m.sender {
		return errors.New("invalid email address")
	}

	_, err := m.client.Emails.Send(&resend.SendEmailRequest{
		From:    m.sender,
		To:      []string{to},
		Subject: "Verify your email address",
		Html: fmt.Sprintf("Click <a href='%v'>here</a> to verify your account."+
			"<br><br>If you didn't sign up you can safely ignore this email.", link),
	})

	return err
}

// disabledMailer refuses every send. It never logs the link because
// the raw token must not end up in the logs.
type disabledMailer struct{}

func (d *disabledMailer) SendPasswordReset(to, _ string) error {
	zap.L().Debug("Skipping password reset mail", zap.String("to", to))
	return ErrMailDisabled
}

func (d *disabledMailer) SendVerification(to, _ string) error {
	zap.L().Debug("Skipping verification mail", zap.String("to", to))
	return ErrMailDisabled
}
