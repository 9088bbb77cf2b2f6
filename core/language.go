package core

import (
	"errors"
	"fmt"
	"strings"
)

// Language is a response / synthesis language code. Only the codes declared
// below are valid; anything else is rejected by ParseLanguage.
type Language string

const (
	ENGLISH  Language = "en"
	HINDI    Language = "hi"
	KANNADA  Language = "kn"
	TELUGU   Language = "te"
	SPANISH  Language = "es"
	FRENCH   Language = "fr"
	GERMAN   Language = "de"
	JAPANESE Language = "ja"
)

// DefaultLanguage is used whenever no explicit selection succeeds.
const DefaultLanguage = ENGLISH

// ErrUnknownLanguage is returned for codes outside the supported set.
var ErrUnknownLanguage = errors.New("unknown language code")

// LanguageInfo is the static description of a supported language.
type LanguageInfo struct {
	Code         Language
	Name         string // English name, also what the user is expected to say.
	NativeName   string
	Accent       string // Regional Google domain used for synthesis.
	Confirmation string // Spoken after selection, in the language itself.
}

var languageTable = []LanguageInfo{
	{ENGLISH, "English", "English", "com", "You have selected English."},
	{HINDI, "Hindi", "हिन्दी", "co.in", "आपने हिन्दी चुनी है।"},
	{KANNADA, "Kannada", "ಕನ್ನಡ", "co.in", "ನೀವು ಕನ್ನಡವನ್ನು ಆಯ್ಕೆ ಮಾಡಿದ್ದೀರಿ."},
	{TELUGU, "Telugu", "తెలుగు", "co.in", "మీరు తెలుగును ఎంచుకున్నారు."},
	{SPANISH, "Spanish", "Español", "es", "Has seleccionado español."},
	{FRENCH, "French", "Français", "fr", "Vous avez choisi le français."},
	{GERMAN, "German", "Deutsch", "de", "Sie haben Deutsch ausgewählt."},
	{JAPANESE, "Japanese", "日本語", "co.jp", "日本語が選択されました。"},
}

var languagesByCode = func() map[Language]LanguageInfo {
	m := make(map[Language]LanguageInfo, len(languageTable))
	for _, info := range languageTable {
		m[info.Code] = info
	}
	return m
}()

// SupportedLanguages returns the supported languages in presentation order.
func SupportedLanguages() []LanguageInfo {
	out := make([]LanguageInfo, len(languageTable))
	copy(out, languageTable)
	return out
}

// ParseLanguage validates a language code.
func ParseLanguage(code string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(code)))
	if _, ok := languagesByCode[lang]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return lang, nil
}

// LanguageFromName maps a spoken language name to its code. The match is exact
// and case-insensitive against either the English or the native name.
func LanguageFromName(name string) (Language, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, info := range languageTable {
		if strings.EqualFold(name, info.Name) || strings.EqualFold(name, info.NativeName) {
			return info.Code, true
		}
	}
	return "", false
}

// Info returns the table entry for l. Unknown codes yield the default language entry.
func (l Language) Info() LanguageInfo {
	if info, ok := languagesByCode[l]; ok {
		return info
	}
	return languagesByCode[DefaultLanguage]
}

// Valid reports whether l is one of the supported codes.
func (l Language) Valid() bool {
	_, ok := languagesByCode[l]
	return ok
}

func (l Language) String() string {
	return string(l)
}

// Caption is the single description generated for the session image.
type Caption string

func (c Caption) String() string {
	return string(c)
}
