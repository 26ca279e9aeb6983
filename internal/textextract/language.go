package textextract

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// languageDetector wraps a lingua detector limited to the languages business documents arrive in.
type languageDetector struct {
	d lingua.LanguageDetector
}

func newLanguageDetector() *languageDetector {
	d := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.French, lingua.German, lingua.Spanish,
			lingua.Italian, lingua.Portuguese, lingua.Dutch).
		WithMinimumRelativeDistance(0.1).
		Build()
	return &languageDetector{d: d}
}

// detect returns a lowercase ISO 639-1 code, or "" when the text is too short or ambiguous.
func (l *languageDetector) detect(text string) string {
	if len(text) > 4096 {
		text = strings.ToValidUTF8(text[:4096], "")
	}
	if len(strings.Fields(text)) < 5 {
		return ""
	}
	lang, ok := l.d.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
