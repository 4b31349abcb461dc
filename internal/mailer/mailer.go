// Package mailer composes and delivers outbound email.
package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Email is a single outbound message with both text and HTML bodies.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers an Email. Implementations must be safe for concurrent use.
type Sender interface {
	SendEmail(ctx context.Context, email Email) error
}

// LogSender writes emails to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogSender struct {
	Log *zap.Logger
}

// SendEmail logs the recipient and subject.
func (s LogSender) SendEmail(_ context.Context, email Email) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("email not sent: smtp disabled",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
	)
	return nil
}
