package mail

import (
	"context"
	"fmt"
	"html"

	"github.com/resendlabs/resend-go"
)

// ResendMailer sends through the Resend API.
type ResendMailer struct {
	client    *resend.Client
	fromEmail string
	fromName  string
	to        string
}

func NewResendMailer(cfg Config) (*ResendMailer, error) {
	if cfg.ResendAPIKey == "" {
		return nil, fmt.Errorf("%w: RESEND_API_KEY missing", ErrNotConfigured)
	}
	if cfg.To == "" {
		return nil, fmt.Errorf("%w: destination address missing", ErrNotConfigured)
	}
	m := &ResendMailer{
		client:    resend.NewClient(cfg.ResendAPIKey),
		fromEmail: cfg.From,
		fromName:  cfg.FromName,
		to:        cfg.To,
	}
	if m.fromEmail == "" {
		m.fromEmail = "onboarding@resend.dev"
	}
	if m.fromName == "" {
		m.fromName = "Portfolio"
	}
	return m, nil
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	to := msg.To
	if to == "" {
		to = m.to
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail),
		To:      []string{to},
		Subject: subject,
		Text:    body,
		Html:    "<pre>" + html.EscapeString(body) + "</pre>",
		ReplyTo: msg.ReplyTo,
	}
	if _, err := m.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return nil
}
