package i18n

import (
	"context"
	"net/http"
	"strings"
)

const DefaultLocale = "en"

var supportedLocales = map[string]struct{}{
	"en": {},
	"vi": {},
}

type localeContextKey struct{}

func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeContextKey{}, NormalizeLocale(locale))
}

// LocaleFromContext returns the locale stored by WithLocale, or DefaultLocale.
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultLocale
	}
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

func NormalizeLocale(header string) string {
	if strings.TrimSpace(header) == "" {
		return DefaultLocale
	}

	for _, part := range strings.Split(header, ",") {
		lang := strings.TrimSpace(part)
		if idx := strings.Index(lang, ";"); idx >= 0 {
			lang = lang[:idx]
		}
		lang = strings.ToLower(strings.TrimSpace(lang))
		if idx := strings.Index(lang, "-"); idx >= 0 {
			lang = lang[:idx]
		}
		if lang == "" {
			continue
		}
		if _, ok := supportedLocales[lang]; ok {
			return lang
		}
	}

	return DefaultLocale
}
