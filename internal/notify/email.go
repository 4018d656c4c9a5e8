package notify

import (
	"context"
	"fmt"
	"html"
	netmail "net/mail"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/crewmuster/crewmuster/internal/models"
)

// EmailConfig carries the SendGrid sender identity.
type EmailConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
}

// Email delivers messages through SendGrid.
type Email struct {
	cfg    EmailConfig
	client *sendgrid.Client
}

// NewEmail builds the channel; an empty API key yields a disconnected channel.
func NewEmail(cfg EmailConfig) *Email {
	e := &Email{cfg: cfg}
	if cfg.APIKey != "" {
		e.client = sendgrid.NewSendClient(cfg.APIKey)
	}
	return e
}

func (e *Email) Name() string { return "email" }

func (e *Email) Connected() bool { return e.client != nil && e.cfg.FromAddress != "" }

func (e *Email) Address(member models.StaffMember) string { return member.Email }

func (e *Email) ValidateAddress(address string) error {
	if _, err := netmail.ParseAddress(address); err != nil {
		return fmt.Errorf("invalid email address %q: %w", address, models.ErrValidation)
	}
	return nil
}

func (e *Email) Send(_ context.Context, address string, msg Message) error {
	from := mail.NewEmail(e.cfg.FromName, e.cfg.FromAddress)
	to := mail.NewEmail("", address)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, renderHTML(msg))

	resp, err := e.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// renderHTML wraps the plain-text body in a minimal HTML layout so the
// message reads well in HTML-first mail clients.
func renderHTML(msg Message) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; font-size: 14px; color: #222;">`)
	b.WriteString("<h2>" + html.EscapeString(msg.Subject) + "</h2>")
	for _, line := range strings.Split(msg.Text, "\n") {
		if line == "" {
			b.WriteString("<br>")
			continue
		}
		b.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	b.WriteString("</div>")
	return b.String()
}
