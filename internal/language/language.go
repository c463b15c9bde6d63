package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps English language names onto their ISO 639-1 code so operators
// can type "french" on the command line.
var words = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"dutch":      "nl",
}

// ToISO2 converts a language code (ISO 639-1, 639-2/T, 639-2/B) or English
// word into the 2-letter ISO 639-1 code. Unknown languages and languages
// without a 2-letter code are rejected.
func ToISO2(code string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(code))
	if cleaned == "" {
		return "", fmt.Errorf("empty language code")
	}
	if iso2, ok := words[cleaned]; ok {
		return iso2, nil
	}
	base, err := language.ParseBase(cleaned)
	if err != nil {
		return "", fmt.Errorf("unknown language %q", code)
	}
	iso2 := base.String()
	if len(iso2) != 2 {
		return "", fmt.Errorf("language %q has no two-letter code", code)
	}
	return iso2, nil
}

// DisplayName returns the English name of a language, or the uppercased input
// when the code is unknown.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	iso2, err := ToISO2(code)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	name := display.English.Languages().Name(language.Make(iso2))
	if name == "" {
		return strings.ToUpper(iso2)
	}
	return name
}
