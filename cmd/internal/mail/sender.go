package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPSender delivers over SMTP with authentication.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender validates cfg and returns a sender.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: host required", ErrConfig)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.ImplicitTLS {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return gomail.NewClient(s.cfg.Host, opts...)
}

// Send dials, delivers m and closes the connection.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg, err := buildMsg(s.cfg.From, m)
	if err != nil {
		return err
	}
	c, err := s.client()
	if err != nil {
		return fmt.Errorf("mail: client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send %s: %w", m.Template, err)
	}
	return nil
}

func buildMsg(from string, m Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mail: from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("mail: to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}

// LogSender logs messages instead of delivering them. Used when SMTP is not configured.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	// Body is omitted: it can carry codes and keys.
	log.Info("mail.send.skipped", "template", m.Template, "reason", "smtp not configured")
	return nil
}
