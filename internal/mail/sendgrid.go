package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/logging"
)

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGrid sends through the SendGrid v3 mail API.
type SendGrid struct {
	client *sendgrid.Client
	from   *sgmail.Email
	to     *sgmail.Email
}

// Option customizes a SendGrid sender.
type Option func(*SendGrid)

// WithEndpoint points the client at a different mail send URL.
func WithEndpoint(url string) Option {
	return func(s *SendGrid) {
		s.client.BaseURL = url
	}
}

// NewSendGrid validates the e-mail settings and returns a sender.
func NewSendGrid(cfg config.EmailSettings, opts ...Option) (*SendGrid, error) {
	var missing []string
	if cfg.SendGridAPIKey == "" {
		missing = append(missing, "sendgrid-api-key (or SENDGRID_API_KEY)")
	}
	if cfg.From == "" {
		missing = append(missing, "from")
	}
	if cfg.To == "" {
		missing = append(missing, "to")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("email settings incomplete: missing %s", strings.Join(missing, ", "))
	}

	s := &SendGrid{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.From),
		to:     sgmail.NewEmail("", cfg.To),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send posts msg. Any non-2xx response is an error carrying the body.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if msg.HTML == "" && msg.Text == "" {
		return errors.New("send email: empty message")
	}
	m := sgmail.NewSingleEmail(s.from, msg.Subject, s.to, msg.Text, msg.HTML)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send email: sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	logging.L.Info("email sent", "to", s.to.Address, "subject", msg.Subject, "status", resp.StatusCode)
	return nil
}
