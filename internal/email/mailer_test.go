package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetmax/internal/auth"
	"meetmax/internal/config"
	"meetmax/internal/i18n"
)

var _ auth.Mailer = (*TemplateMailer)(nil)

type sentMessage struct {
	to, subject, text, html string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, text, html string) error {
	f.sent = append(f.sent, sentMessage{to, subject, text, html})
	return f.err
}

func TestTemplateMailerRendersLocalizedOTP(t *testing.T) {
	sender := &fakeSender{}
	mailer := NewTemplateMailer(sender)

	ctx := i18n.WithLocale(context.Background(), "vi")
	err := mailer.SendTemplate(ctx, "lan@example.com", auth.TemplateOTP, map[string]string{
		"code": "654321", "minutes": "10", "name": "Lan",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "lan@example.com", msg.to)
	assert.Equal(t, "Mã xác minh Meetmax của bạn", msg.subject)
	assert.Contains(t, msg.html, "654321")
}

func TestTemplateMailerErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	mailer := NewTemplateMailer(sender)

	err := mailer.SendTemplate(context.Background(), "a@example.com", auth.TemplateResetPassword, map[string]string{"link": "l", "minutes": "15"})
	assert.ErrorContains(t, err, "smtp down")

	err = mailer.SendTemplate(context.Background(), "a@example.com", "unknown", nil)
	assert.Error(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	raw := string(buildMessage("from@example.com", "to@example.com", "Đặt lại mật khẩu", "plain", ""))
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.Contains(t, raw, "Content-Type: text/plain")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nplain"))

	raw = string(buildMessage("from@example.com", "to@example.com", "Hello", "plain", "<p>hi</p>"))
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.Contains(t, raw, "Content-Type: text/html")
}

func TestSenderRequiresConfiguration(t *testing.T) {
	err := NewSender(config.EmailConfig{}).Send(context.Background(), "a@example.com", "s", "t", "h")
	assert.ErrorContains(t, err, "not configured")
}
