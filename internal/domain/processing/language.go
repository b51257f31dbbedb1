package processing

import (
	"strings"
	"unicode"
)

// hebrewDominanceRatio is the fraction of alphabetic characters that must be
// Hebrew for a document to be tagged "he". Hebrew invoices routinely carry
// Latin product codes and vendor names, so dominance is set well below half.
const hebrewDominanceRatio = 0.25

// DetectLanguage classifies extracted text as Hebrew, English or unknown.
//
// The provider-reported locale, when present and recognized, takes precedence
// over the character heuristic. Otherwise characters in the Hebrew Unicode
// block are counted against Latin-script characters: Hebrew wins when it
// exceeds a fixed fraction of all alphabetic characters, Latin wins when it
// holds the majority, and anything else is unknown.
//
// Pure function of its inputs; no external calls.
func DetectLanguage(text, providerLocale string) Language {
	if lang, ok := languageFromLocale(providerLocale); ok {
		return lang
	}

	var hebrew, latin, alphabetic int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		alphabetic++
		switch {
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}

	if alphabetic == 0 {
		return LanguageUnknown
	}
	if float64(hebrew) > hebrewDominanceRatio*float64(alphabetic) {
		return LanguageHebrew
	}
	if float64(latin) > 0.5*float64(alphabetic) {
		return LanguageEnglish
	}
	return LanguageUnknown
}

// languageFromLocale maps provider locales like "he-IL" or "en-US" onto a
// supported language tag.
func languageFromLocale(locale string) (Language, bool) {
	if locale == "" {
		return LanguageUnknown, false
	}
	primary, _, _ := strings.Cut(strings.ToLower(locale), "-")
	switch primary {
	case "he", "iw": // "iw" is the legacy ISO code some providers still emit
		return LanguageHebrew, true
	case "en":
		return LanguageEnglish, true
	default:
		return LanguageUnknown, false
	}
}
