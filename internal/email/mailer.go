package email

import (
	"context"
	"fmt"

	"meetmax/internal/i18n"
)

// TemplateMailer renders a localized template and hands it to a MessageSender.
// The locale comes from the request context.
type TemplateMailer struct {
	sender MessageSender
}

func NewTemplateMailer(sender MessageSender) *TemplateMailer {
	return &TemplateMailer{sender: sender}
}

func (m *TemplateMailer) SendTemplate(ctx context.Context, to, templateID string, data map[string]string) error {
	content, err := i18n.Render(i18n.LocaleFromContext(ctx), templateID, data)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, to, content.Subject, content.Text, content.HTML); err != nil {
		return fmt.Errorf("send %s email: %w", templateID, err)
	}
	return nil
}
