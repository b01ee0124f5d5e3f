package email

import (
	"context"
	"strings"
	"testing"
)

type emailConfig struct {
	enabled bool
}

func (c emailConfig) GetEmailEnabled() bool     { return c.enabled }
func (emailConfig) GetSMTPHost() string         { return "smtp.example.com" }
func (emailConfig) GetSMTPPort() int            { return 587 }
func (emailConfig) GetSMTPUsername() string     { return "user" }
func (emailConfig) GetSMTPPassword() string     { return "pass" }
func (emailConfig) GetEmailFromName() string    { return "Spotter Portal" }
func (emailConfig) GetEmailFromAddress() string { return "noreply@example.com" }

func TestRenderUpdateTemplate(t *testing.T) {
	html, err := renderEmailTemplate("update.html", updateEmailData{
		baseEmailData: baseEmailData{
			Title:    "Lead #42 accepted",
			Heading:  "Lead #42 accepted",
			CTALabel: CTAViewLead,
			CTAURL:   "https://portal.example.com/leads/42",
		},
		Message: "Ana accepted your lead <42>.",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"Lead #42 accepted", "https://portal.example.com/leads/42", CTAViewLead, "&lt;42&gt;"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected rendered email to contain %q", want)
		}
	}
}

func TestNewSender(t *testing.T) {
	s, err := NewSender(emailConfig{enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(NoopSender); !ok {
		t.Fatalf("expected NoopSender when disabled, got %T", s)
	}
	if err := s.SendUpdateEmail(context.Background(), "a@example.com", UpdateEmail{}); err != nil {
		t.Fatalf("noop send failed: %v", err)
	}

	s, _ = NewSender(emailConfig{enabled: true})
	if _, ok := s.(*SMTPSender); !ok {
		t.Fatalf("expected SMTPSender when enabled, got %T", s)
	}
}

func TestNewMessageRejectsBadAddress(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "", "", "noreply@example.com", "Spotter Portal")
	if _, err := s.newMessage("not an address", "subject", "<p>x</p>"); err == nil {
		t.Fatal("expected invalid recipient to fail")
	}
	if _, err := s.newMessage("agent@example.com", "subject", "<p>x</p>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
