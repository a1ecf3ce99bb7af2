package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Mail is a plain text email.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers emails.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// NewMailer returns an SMTP mailer, or a mailer that only logs when no host is configured.
func NewMailer(cfg SMTPConfig, logger *slog.Logger) Mailer {
	if cfg.Host == "" {
		return &LogMailer{logger: logger}
	}
	m := &SMTPMailer{addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), from: cfg.From, send: smtp.SendMail}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Send delivers mail.
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if mail.To == "" {
		return errors.New("mailer: recipient required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, []string{mail.To}, compose(m.from, mail, time.Now())); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", mail.To, err)
	}
	return nil
}

func compose(from string, mail Mail, at time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + mail.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", mail.Subject) + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(mail.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer writes mail to the log instead of sending it.
type LogMailer struct {
	logger *slog.Logger
}

// Send logs mail.
func (m *LogMailer) Send(_ context.Context, mail Mail) error {
	m.logger.Info("mail not sent, smtp not configured",
		slog.String("to", mail.To),
		slog.String("subject", mail.Subject),
		slog.Int("body_bytes", len(mail.Body)),
	)
	return nil
}
