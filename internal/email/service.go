package email

import (
	"context"

	gomail "gopkg.in/gomail.v2"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether the SMTP relay is configured.
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type Service interface {
	SendCustom(ctx context.Context, to, subject, content string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendCustom(ctx context.Context, to, subject, content string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)
	return s.dialer.DialAndSend(m)
}

type noopService struct{}

// NewNoopService is used when no SMTP relay is configured; sends are
// silently dropped.
func NewNoopService() Service {
	return noopService{}
}

func (noopService) SendCustom(ctx context.Context, to, subject, content string) error {
	return nil
}
