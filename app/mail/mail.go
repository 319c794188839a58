// Package mail implements the outbound notification collaborator over SMTP.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/FACorreiaa/go-user-auth/config"
)

// SMTPMailer delivers plaintext messages through a single SMTP account.
// It satisfies the auth package's Mailer interface.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *slog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// Send dials the SMTP server and sends one message. gomail has no context
// support, so cancellation is only honored before the dial starts.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.ErrorContext(ctx, "Could not send email",
			slog.String("to", to),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
