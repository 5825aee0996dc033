package common

import "github.com/rs/zerolog"

// EmailSender delivers transactional email. Delivery is fire-and-forget:
// failures are reported to the caller for logging but never affect order
// state.
type EmailSender interface {
	Send(to, subject, body string) error
}

// NopEmailSender discards all messages. Default when email is disabled.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }

// LogEmailSender writes messages to the structured log instead of a mailbox.
// Used in development environments.
type LogEmailSender struct {
	Logger zerolog.Logger
}

// Send implements EmailSender.
func (s LogEmailSender) Send(to, subject, body string) error {
	s.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email")
	return nil
}
