package api

import (
	"net/http"
	"strings"

	"github.com/Priya8975/newsletter-service/internal/domain"
)

type messageKey int

const (
	msgSubscribeAccepted messageKey = iota
	msgConfirmed
	msgTokenNotFound
	msgTokenExpired
	msgProviderError
	msgEmailFailed
	msgUnsubscribed
	msgInvalidInput
	msgRateLimited
	msgInternal
)

var publicMessages = map[messageKey][2]string{
	msgSubscribeAccepted: {
		"Sprawdź skrzynkę i kliknij link, aby potwierdzić zapis.",
		"Check your inbox and click the link to confirm your subscription.",
	},
	msgConfirmed: {
		"Zapis potwierdzony. Dziękujemy!",
		"Your subscription is confirmed. Thank you!",
	},
	msgTokenNotFound: {
		"Link potwierdzający jest nieprawidłowy lub został już użyty.",
		"This confirmation link is invalid or has already been used.",
	},
	msgTokenExpired: {
		"Link potwierdzający wygasł. Zapisz się ponownie.",
		"This confirmation link has expired. Please subscribe again.",
	},
	msgProviderError: {
		"Nie udało się potwierdzić zapisu. Spróbuj ponownie za chwilę.",
		"We could not confirm your subscription. Please try again shortly.",
	},
	msgEmailFailed: {
		"Nie udało się wysłać e-maila potwierdzającego. Spróbuj ponownie.",
		"We could not send the confirmation email. Please try again.",
	},
	msgUnsubscribed: {
		"Wypisano z newslettera. Dziękujemy za opinię.",
		"You have been unsubscribed. Thank you for your feedback.",
	},
	msgInvalidInput: {
		"Nieprawidłowe dane formularza.",
		"The form contains invalid data.",
	},
	msgRateLimited: {
		"Zbyt wiele prób. Spróbuj ponownie za minutę.",
		"Too many attempts. Please try again in a minute.",
	},
	msgInternal: {
		"Wystąpił błąd. Spróbuj ponownie później.",
		"Something went wrong. Please try again later.",
	},
}

func message(key messageKey, lang domain.Language) string {
	m := publicMessages[key]
	if lang == domain.LanguagePL {
		return m[0]
	}
	return m[1]
}

// requestLanguage picks the reply language from ?lang= or Accept-Language.
// English is the fallback.
func requestLanguage(r *http.Request) domain.Language {
	if lang, err := domain.ParseLanguage(r.URL.Query().Get("lang")); err == nil {
		return lang
	}
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Accept-Language")), "pl") {
		return domain.LanguagePL
	}
	return domain.LanguageEN
}
