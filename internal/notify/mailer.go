package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/kebairia/bakd/internal/logger"
)

// MailerOption lets you override default settings on a Mailer.
type MailerOption func(*Mailer)

// Mailer delivers messages over SMTP.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Logger   logger.Logger

	client *mail.Client
}

// Ensure Mailer satisfies Notifier.
var _ Notifier = (*Mailer)(nil)

// NewMailer returns a Mailer configured with the given overrides.
func NewMailer(opts ...MailerOption) (*Mailer, error) {
	log, err := logger.Init()
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	m := &Mailer{
		Port:   587,
		Logger: log,
	}
	for _, opt := range opts {
		opt(m)
	}

	clientOpts := []mail.Option{
		mail.WithPort(m.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Username),
			mail.WithPassword(m.Password),
		)
	}
	client, err := mail.NewClient(m.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client init: %w", err)
	}
	m.client = client
	return m, nil
}

// WithMailerHost sets the SMTP host.
func WithMailerHost(host string) MailerOption {
	return func(m *Mailer) {
		if host != "" {
			m.Host = host
		}
	}
}

// WithMailerPort overrides the SMTP port.
func WithMailerPort(port int) MailerOption {
	return func(m *Mailer) {
		if port != 0 {
			m.Port = port
		}
	}
}

// WithMailerCredentials sets SMTP auth username and password.
func WithMailerCredentials(username, password string) MailerOption {
	return func(m *Mailer) {
		if username != "" {
			m.Username = username
		}
		if password != "" {
			m.Password = password
		}
	}
}

// WithMailerFrom sets the sender address.
func WithMailerFrom(from string) MailerOption {
	return func(m *Mailer) {
		if from != "" {
			m.From = from
		}
	}
}

// Send delivers msg with its attachment over SMTP.
func (m *Mailer) Send(ctx context.Context, msg Message) (Receipt, error) {
	log := m.Logger

	mm := mail.NewMsg()
	if err := mm.From(m.From); err != nil {
		return Receipt{}, fmt.Errorf("%w: from %q: %v", ErrDeliveryFailed, m.From, err)
	}
	if err := mm.To(msg.To); err != nil {
		return Receipt{}, fmt.Errorf("%w: to %q: %v", ErrDeliveryFailed, msg.To, err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)
	mm.SetMessageID()
	if msg.AttachmentPath != "" {
		mm.AttachFile(msg.AttachmentPath)
	}

	log.Info("delivery started",
		"to", msg.To,
		"subject", msg.Subject,
		"attachment", msg.AttachmentPath,
	)

	startTime := time.Now()
	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			err = cause
		}
		return Receipt{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	log.Info("delivery completed",
		"to", msg.To,
		"duration", time.Since(startTime).String(),
	)
	return Receipt{MessageID: mm.GetMessageID(), SentAt: time.Now()}, nil
}
