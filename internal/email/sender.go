package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"mime"
	"net/smtp"
	"strings"

	"meetmax/internal/config"
)

// MessageSender delivers one rendered message.
type MessageSender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

type Sender struct {
	cfg config.EmailConfig
}

func NewSender(cfg config.EmailConfig) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(_ context.Context, to, subject, text, html string) error {
	if !s.cfg.Enabled() {
		return fmt.Errorf("email is not configured")
	}

	msg := buildMessage(s.cfg.From, to, subject, text, html)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	if s.cfg.Secure {
		tlsCfg := &tls.Config{
			ServerName: s.cfg.Host,
		}
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return err
		}
		client, err := smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			return err
		}
		defer client.Quit()

		if s.cfg.Username != "" {
			auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return err
			}
		}

		if err := client.Mail(s.cfg.From); err != nil {
			return err
		}
		if err := client.Rcpt(to); err != nil {
			return err
		}

		w, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := w.Write(msg); err != nil {
			return err
		}
		return w.Close()
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
}

func buildMessage(from, to, subject, text, html string) []byte {
	body := html
	contentType := "text/html"
	if strings.TrimSpace(body) == "" {
		body = text
		contentType = "text/plain"
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType))
	msg.WriteString(body)
	return []byte(msg.String())
}

// LogSender writes messages to the log instead of sending them. It stands in
// for SMTP when no mail server is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, text, _ string) error {
	log.Printf("email to %s: %s\n%s", to, subject, text)
	return nil
}
