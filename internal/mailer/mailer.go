package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned when no Resend API key is set.
var ErrNotConfigured = errors.New("mailer: api key not configured")

// Mailer sends transactional email through Resend.
type Mailer struct {
	client *resend.Client
	from   string
	log    zerolog.Logger
}

// New creates a Mailer. An empty apiKey yields a mailer whose Send always
// fails with ErrNotConfigured, so callers can treat mail as optional.
func New(apiKey, from string, log zerolog.Logger) *Mailer {
	m := &Mailer{
		from: from,
		log:  log.With().Str("component", "mailer").Logger(),
	}
	if apiKey != "" {
		m.client = resend.NewClient(apiKey)
	}
	return m
}

// Send delivers one HTML email.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	if m.client == nil {
		return ErrNotConfigured
	}

	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("to", to).Str("message_id", sent.Id).Msg("Email sent")
	return nil
}
