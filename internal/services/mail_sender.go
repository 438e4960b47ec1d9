package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// MailMessage is one outbound email.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// MailSender delivers a single message. Implementations must be safe for concurrent use.
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// SMTPConfig holds SMTP connection and sender identity settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	UseSSL     bool // implicit TLS, usually port 465
	RequireTLS bool // fail when STARTTLS is unavailable
}

// SMTPSender sends multipart/alternative mail over SMTP.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender validates cfg and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		return nil, errors.New("smtp host, port and from address are required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send implements MailSender.
func (s *SMTPSender) Send(ctx context.Context, msg MailMessage) error {
	body := s.compose(msg)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	var conn net.Conn
	var err error
	if s.cfg.UseSSL {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Quit()

	if !s.cfg.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		} else if s.cfg.RequireTLS {
			return errors.New("server does not support STARTTLS and RequireTLS=true")
		}
	}

	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

func (s *SMTPSender) compose(msg MailMessage) []byte {
	boundary := fmt.Sprintf("alt_%d", time.Now().UnixNano())

	var b bytes.Buffer
	write := func(format string, a ...any) { _, _ = b.WriteString(fmt.Sprintf(format, a...)) }

	write("From: %s\r\n", s.fromHeader())
	write("To: %s\r\n", msg.To)
	write("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	write("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", msg.Text)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", msg.HTML)

	write("--%s--\r\n", boundary)
	return b.Bytes()
}

func (s *SMTPSender) fromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), s.cfg.From)
}

// LogSender drops messages after logging them. Used when SMTP is not configured.
type LogSender struct {
	log func(msg MailMessage)
}

// NewLogSender returns a sender that hands each message to log.
func NewLogSender(log func(msg MailMessage)) *LogSender {
	return &LogSender{log: log}
}

// Send implements MailSender.
func (s *LogSender) Send(_ context.Context, msg MailMessage) error {
	if s.log != nil {
		s.log(msg)
	}
	return nil
}
