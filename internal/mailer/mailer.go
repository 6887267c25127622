// Package mailer delivers the identity emails: sign-up confirmation and
// password recovery links.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"sync"

	"github.com/jordan-wright/email"

	"solconta/internal/config"
	"solconta/internal/logger"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
	Link    string
}

// Sender delivers identity emails.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Confirmation renders the sign-up confirmation email.
func Confirmation(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Confirma tu cuenta de SolConta",
		Body: fmt.Sprintf("Hola,\n\nGracias por registrarte en SolConta. Confirma tu correo con el siguiente enlace:\n\n%s\n\n"+
			"Si no creaste esta cuenta, ignora este mensaje.\n", link),
		Link: link,
	}
}

// Recovery renders the password reset email.
func Recovery(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Restablece tu contraseña de SolConta",
		Body: fmt.Sprintf("Hola,\n\nRecibimos una solicitud para restablecer tu contraseña. Usa el siguiente enlace:\n\n%s\n\n"+
			"El enlace vence en una hora. Si no fuiste tú, ignora este mensaje.\n", link),
		Link: link,
	}
}

// New returns an SMTP sender when SMTP is configured and a log-only sender
// otherwise.
func New(cfg *config.Config) Sender {
	if cfg.SMTPEnabled() {
		return NewSMTPSender(cfg)
	}
	logger.Get().Warn("SMTP_HOST not set, identity emails will only be logged")
	return &LogSender{}
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSMTPSender creates an SMTPSender from the SMTP settings in cfg.
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from: cfg.SenderEmail,
		auth: auth,
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

// Send delivers msg. The SMTP client has no context support, so ctx is only
// checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	if err := s.send(e, s.addr, s.auth); err != nil {
		logger.Get().Errorw("failed to send email", "to", msg.To, "subject", msg.Subject, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Get().Infow("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogSender logs messages instead of sending them and keeps them for
// inspection. Used in development and tests.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

// Send records msg.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	logger.Get().Infow("email (not sent)", "to", msg.To, "subject", msg.Subject, "link", msg.Link)
	return nil
}

// Sent returns a copy of every recorded message.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// Last returns the most recent message, if any.
func (s *LogSender) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Message{}, false
	}
	return s.sent[len(s.sent)-1], true
}
