package smtp

import (
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/bucket-api/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

// NewMailer returns the sender selected by MAIL_DRIVER: "log" writes the
// message to the structured log, anything else relays through SMTP.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.MailDriver == "log" {
		return LogMailer{IncludeBody: !cfg.IsProduction()}
	}
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	envelopeFrom, err := envelopeAddress(m.from)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	msg := buildMessage(m.from, to, subject, body, time.Now())
	if err := smtp.SendMail(addr, auth, envelopeFrom, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogMailer logs messages instead of sending them. Used in development.
// The body carries OTP codes, so it is only written at debug level and
// only when IncludeBody is set.
type LogMailer struct {
	IncludeBody bool
	Logger      *slog.Logger
}

func (m LogMailer) SendEmail(to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail (log driver)", "to", to, "subject", subject)
	if m.IncludeBody {
		logger.Debug("mail body (log driver)", "to", to, "body", body)
	}
	return nil
}

func envelopeAddress(from string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(from))
	if err != nil {
		return "", fmt.Errorf("invalid SMTP_FROM: %w", err)
	}
	return parsed.Address, nil
}

// buildMessage renders a plaintext RFC 5322 message. CR and LF are stripped
// from header values.
func buildMessage(from, to, subject, body string, date time.Time) string {
	clean := func(s string) string {
		return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
	}
	headers := []string{
		"From: " + clean(from),
		"To: " + clean(to),
		"Subject: " + clean(subject),
		"Date: " + date.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
