// Package notify sends operator notifications by email. Delivery is best
// effort: callers hand a message over and never wait for or see the outcome.
package notify

import (
	"crypto/tls"
	"fmt"

	"opsdesk/internal/config"

	"gopkg.in/gomail.v2"
)

// Mailer delivers one message to a set of recipients.
type Mailer interface {
	Send(subject, body string, recipients []string) error
}

type SMTPMailer struct {
	from     string
	fromName string
	dialer   *gomail.Dialer
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	return &SMTPMailer{
		from:     cfg.From,
		fromName: cfg.FromName,
		dialer:   dialer,
	}
}

func (m *SMTPMailer) Send(subject, body string, recipients []string) error {
	msg := gomail.NewMessage(
		gomail.SetCharset("UTF-8"),
		gomail.SetEncoding(gomail.Base64),
	)
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
