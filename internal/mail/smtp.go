package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an authenticated SMTP relay.
type SMTPMailer struct {
	host, port string
	user, pass string
	to         string
	send       sendFunc
}

func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.SMTPUser == "" || cfg.SMTPPass == "" {
		return nil, fmt.Errorf("%w: SMTP credentials missing", ErrNotConfigured)
	}
	m := &SMTPMailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		to:   cfg.To,
		send: smtp.SendMail,
	}
	if m.host == "" {
		m.host = "smtp.gmail.com"
	}
	if m.port == "" {
		m.port = "587"
	}
	if m.to == "" {
		m.to = m.user
	}
	return m, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
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

	headers := "To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"From: " + m.user + "\r\n"
	if replyTo := strings.NewReplacer("\r", "", "\n", "").Replace(msg.ReplyTo); replyTo != "" {
		headers += "Reply-To: " + replyTo + "\r\n"
	}
	raw := []byte(headers + "\r\n" + body + "\r\n")

	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	if err := m.send(m.host+":"+m.port, auth, m.user, []string{to}, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
