package domain

import (
	"fmt"
	"strings"
)

// Language is one of the two site languages. A confirmed subscriber belongs
// to exactly one language list.
type Language string

const (
	LanguagePL Language = "pl"
	LanguageEN Language = "en"
)

// Languages lists the supported languages in fallback order.
var Languages = []Language{LanguagePL, LanguageEN}

// ParseLanguage normalizes and validates a language code.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguagePL:
		return LanguagePL, nil
	case LanguageEN:
		return LanguageEN, nil
	default:
		return "", fmt.Errorf("unsupported language %q", s)
	}
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguagePL || l == LanguageEN
}

// Other returns the complementary language.
func (l Language) Other() Language {
	if l == LanguagePL {
		return LanguageEN
	}
	return LanguagePL
}

func (l Language) String() string {
	return string(l)
}
