// Package email delivers update notifications over SMTP.
package email

import (
	"context"

	"spotter_portal_backend/platform/config"
)

// UpdateEmail is the content of one update notification email.
type UpdateEmail struct {
	Subject  string
	Heading  string
	Message  string
	CTALabel string
	CTAURL   string
}

type Sender interface {
	SendUpdateEmail(ctx context.Context, toEmail string, msg UpdateEmail) error
}

// NoopSender drops every email. It is used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendUpdateEmail(context.Context, string, UpdateEmail) error {
	return nil
}

// NewSender returns an SMTP sender, or NoopSender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}
