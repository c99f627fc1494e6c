// Package langdetect identifies the language of transcribed text.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// Auto is returned when the language cannot be determined.
const Auto = "auto"

var supported = []lingua.Language{
	lingua.English,
	lingua.German,
	lingua.French,
	lingua.Spanish,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Russian,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
}

var (
	once     sync.Once
	detector lingua.LanguageDetector
)

func get() lingua.LanguageDetector {
	once.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(supported...).
			Build()
	})
	return detector
}

// Detect returns the ISO 639-1 code and English name of text's language,
// or Auto when unsure.
func Detect(text string) (code, name string) {
	if strings.TrimSpace(text) == "" {
		return Auto, "Auto"
	}

	lang, ok := get().DetectLanguageOf(text)
	if !ok {
		return Auto, "Auto"
	}
	return strings.ToLower(lang.IsoCode639_1().String()), lang.String()
}
