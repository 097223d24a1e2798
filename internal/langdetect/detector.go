// Package langdetect tags posts that carry no language with a detected one.
package langdetect

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// DefaultLanguages are the ISO 639-1 codes the detector chooses from when
// none are configured.
var DefaultLanguages = []string{"pt", "en", "ja", "de", "fr", "es", "ko", "th"}

// Detector guesses the language of short texts.
type Detector interface {
	Detect(text string) (string, bool)
}

// Options configures a lingua-backed detector.
type Options struct {
	// Languages is a list of ISO 639-1 codes; DefaultLanguages when empty.
	Languages []string
	// MinRunes skips texts shorter than this. Defaults to 12.
	MinRunes int
	// MinDistance is lingua's minimum relative distance between the top
	// candidates. Zero accepts the best guess.
	MinDistance float64
}

type linguaDetector struct {
	det      lingua.LanguageDetector
	minRunes int
}

// New builds a detector from opts.
func New(opts Options) (Detector, error) {
	codes := opts.Languages
	if len(codes) == 0 {
		codes = DefaultLanguages
	}
	langs := make([]lingua.Language, 0, len(codes))
	for _, code := range codes {
		iso := lingua.GetIsoCode639_1FromValue(strings.ToUpper(strings.TrimSpace(code)))
		lang := lingua.GetLanguageFromIsoCode639_1(iso)
		if lang == lingua.Unknown {
			return nil, fmt.Errorf("langdetect: unsupported language %q", code)
		}
		langs = append(langs, lang)
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("langdetect: need at least two languages, got %d", len(langs))
	}
	b := lingua.NewLanguageDetectorBuilder().FromLanguages(langs...)
	if opts.MinDistance > 0 {
		b = b.WithMinimumRelativeDistance(opts.MinDistance)
	}
	minRunes := opts.MinRunes
	if minRunes <= 0 {
		minRunes = 12
	}
	return &linguaDetector{det: b.Build(), minRunes: minRunes}, nil
}

func (d *linguaDetector) Detect(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < d.minRunes {
		return "", false
	}
	lang, ok := d.det.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Fill returns langs unchanged when non-empty, otherwise the detected
// language of text, or nil.
func Fill(d Detector, langs []string, text string) []string {
	if len(langs) > 0 || d == nil {
		return langs
	}
	if code, ok := d.Detect(text); ok {
		return []string{code}
	}
	return langs
}
