package i18n

import (
	"fmt"
	"strings"
)

const (
	TemplateOTP           = "otp"
	TemplateResetPassword = "reset-password"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailTemplate struct {
	Subject string
	Text    string
	HTML    string
}

var emailTranslations = map[string]map[string]emailTemplate{
	"en": {
		TemplateOTP: {
			Subject: "Your Meetmax verification code",
			Text:    "Hi {name},\n\nYour verification code is {code}. It is valid for {minutes} minutes.\nIf you did not sign up, you can ignore this email.",
			HTML: "<p>Hi {name},</p>" +
				"<p>Use the code below to verify your email address.</p>" +
				"<p><strong>{code}</strong></p>" +
				"<p>The code expires in {minutes} minutes.</p>" +
				"<p>If you did not sign up, you can ignore this email.</p>",
		},
		TemplateResetPassword: {
			Subject: "Reset your Meetmax password",
			Text:    "Reset your password: {link}\nThe link expires in {minutes} minutes.\nIf you did not request this, ignore this email.",
			HTML: "<p>Password reset</p>" +
				"<p>Click the button to reset your password.</p>" +
				"<p><a href=\"{link}\">Reset password</a></p>" +
				"<p>The link expires in {minutes} minutes.</p>" +
				"<p>If you did not request this, ignore this email.</p>",
		},
	},
	"vi": {
		TemplateOTP: {
			Subject: "Mã xác minh Meetmax của bạn",
			Text:    "Xin chào {name},\n\nMã xác minh của bạn là {code}. Mã có hiệu lực trong {minutes} phút.\nNếu bạn không đăng ký, hãy bỏ qua email này.",
			HTML: "<p>Xin chào {name},</p>" +
				"<p>Dùng mã dưới đây để xác minh email của bạn.</p>" +
				"<p><strong>{code}</strong></p>" +
				"<p>Mã hết hạn sau {minutes} phút.</p>" +
				"<p>Nếu bạn không đăng ký, hãy bỏ qua email này.</p>",
		},
		TemplateResetPassword: {
			Subject: "Đặt lại mật khẩu Meetmax",
			Text:    "Đặt lại mật khẩu: {link}\nLiên kết hết hạn sau {minutes} phút.\nNếu bạn không yêu cầu, hãy bỏ qua email này.",
			HTML: "<p>Đặt lại mật khẩu</p>" +
				"<p><a href=\"{link}\">Đặt lại mật khẩu</a></p>" +
				"<p>Liên kết hết hạn sau {minutes} phút.</p>" +
				"<p>Nếu bạn không yêu cầu, hãy bỏ qua email này.</p>",
		},
	},
}

// Render fills the template's {placeholders} with data. Unknown locales fall
// back to DefaultLocale; unknown template ids are an error.
func Render(locale, templateID string, data map[string]string) (EmailContent, error) {
	templates, ok := emailTranslations[NormalizeLocale(locale)]
	if !ok {
		templates = emailTranslations[DefaultLocale]
	}
	tmpl, ok := templates[templateID]
	if !ok {
		return EmailContent{}, fmt.Errorf("unknown email template %q", templateID)
	}
	return EmailContent{
		Subject: renderTemplate(tmpl.Subject, data),
		Text:    renderTemplate(tmpl.Text, data),
		HTML:    renderTemplate(tmpl.HTML, data),
	}, nil
}

func renderTemplate(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}

	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}
