package annotation

import (
	"context"
	"embed"
	"encoding/json"
	"log"
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

var (
	bundle *i18n.Bundle

	supportedLanguages = []language.Tag{language.English, language.Persian}
	languageMatcher    = language.NewMatcher(supportedLanguages)

	rtlLanguages = map[string]bool{"fa": true}
)

type localizerKey struct{}

type languageKey struct{}

func init() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, tag := range supportedLanguages {
		locale := tag.String()
		data, err := localesFS.ReadFile("locales/" + locale + ".json")
		if err != nil {
			log.Printf("warning: failed to read locale file %s: %v", locale, err)
			continue
		}
		if _, err := bundle.ParseMessageFileBytes(data, locale+".json"); err != nil {
			log.Printf("warning: failed to parse locale file %s: %v", locale, err)
		}
	}
}

// IsSupportedLanguage reports whether the UI has a translation for lang
func IsSupportedLanguage(lang string) bool {
	for _, tag := range supportedLanguages {
		if tag.String() == lang {
			return true
		}
	}
	return false
}

// RequestLanguage picks the UI language: the lang query parameter or
// cookie, then Accept-Language, then fallback
func RequestLanguage(r *http.Request, fallback string) string {
	if lang := r.URL.Query().Get("lang"); IsSupportedLanguage(lang) {
		return lang
	}
	if c, err := r.Cookie("lang"); err == nil && IsSupportedLanguage(c.Value) {
		return c.Value
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		tags, _, err := language.ParseAcceptLanguage(accept)
		if err == nil && len(tags) > 0 {
			tag, _, confidence := languageMatcher.Match(tags...)
			if confidence != language.No {
				base, _ := tag.Base()
				return base.String()
			}
		}
	}
	return fallback
}

// WithLocalizer adds a localizer for lang to the context
func WithLocalizer(ctx context.Context, lang string) context.Context {
	ctx = context.WithValue(ctx, languageKey{}, lang)
	return context.WithValue(ctx, localizerKey{}, i18n.NewLocalizer(bundle, lang))
}

// GetLocalizerFromContext retrieves the localizer from context, or an English one
func GetLocalizerFromContext(ctx context.Context) *i18n.Localizer {
	if localizer, ok := ctx.Value(localizerKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	return i18n.NewLocalizer(bundle, language.English.String())
}

// GetLanguageFromContext returns the language chosen for the request
func GetLanguageFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(languageKey{}).(string); ok {
		return lang
	}
	return language.English.String()
}

// TextDirection is "rtl" for right-to-left languages and "ltr" otherwise
func TextDirection(lang string) string {
	if rtlLanguages[lang] {
		return "rtl"
	}
	return "ltr"
}

// LocalizeWithContext translates a message using the localizer from context.
// Optional data is given as key, value pairs. Unknown messages render as
// their id.
func LocalizeWithContext(ctx context.Context, messageID string, pairs ...any) string {
	var data map[string]any
	if len(pairs) > 1 {
		data = make(map[string]any, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			if key, ok := pairs[i].(string); ok {
				data[key] = pairs[i+1]
			}
		}
	}
	msg, err := GetLocalizerFromContext(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}
