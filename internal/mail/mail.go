// Package mail dispatches templated outbound email, such as contact form
// submissions.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

var (
	ErrNotConfigured   = errors.New("mail provider not configured")
	ErrUnknownTemplate = errors.New("unknown mail template")
)

// Message is one templated email. Fields fill the template named by TemplateID.
type Message struct {
	TemplateID string
	To         string
	ReplyTo    string
	Fields     map[string]string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures the provider.
type Config struct {
	Provider     string `yaml:"provider"` // smtp, resend or none
	From         string `yaml:"from"`
	FromName     string `yaml:"from_name"`
	To           string `yaml:"to"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPass     string `yaml:"smtp_pass"`
	ResendAPIKey string `yaml:"resend_api_key"`
}

// New builds the Mailer named by cfg.Provider.
func New(cfg Config) (Mailer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "smtp":
		m, err := NewSMTPMailer(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "resend":
		m, err := NewResendMailer(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "none":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// Disabled rejects every message.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error { return ErrNotConfigured }

// ContactTemplate is the id used by the contact form.
const ContactTemplate = "contact"

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]mailTemplate{
	ContactTemplate: {
		subject: template.Must(template.New("subject").Parse(`Portfolio Contact: {{.name}}`)),
		body: template.Must(template.New("body").Parse(`
New contact form submission from your portfolio:

Name: {{.name}}
Email: {{.email}}
Message:
{{.message}}

---
Sent from your portfolio contact form
`)),
	},
}

// Render produces the subject and plain-text body for msg.
func Render(msg Message) (subject, body string, err error) {
	tpl, ok := templates[msg.TemplateID]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, msg.TemplateID)
	}

	var buf bytes.Buffer
	if err := tpl.subject.Execute(&buf, msg.Fields); err != nil {
		return "", "", err
	}
	// Header injection guard.
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(buf.String())

	buf.Reset()
	if err := tpl.body.Execute(&buf, msg.Fields); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
