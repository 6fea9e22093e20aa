package detect

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
)

// DefaultLanguage is returned whenever detection is impossible.
const DefaultLanguage = "en"

// DefaultMinRelativeDistance is the lingua confidence floor below which a
// result is treated as undetermined.
const DefaultMinRelativeDistance = 0.1

// minLatinLetters is the fewest letters a Latin-script text needs before
// lingua is asked. Shorter greetings like "ok" or "hi" carry no signal.
const minLatinLetters = 5

// DefaultLanguages is the detection set used when none is configured.
var DefaultLanguages = []string{"en", "ar", "fr", "es", "de", "pt", "it", "tr"}

// LanguageDetector returns an ISO 639-1 code for text. It never fails.
type LanguageDetector interface {
	Detect(text string) string
}

// LanguageFunc adapts a plain function.
type LanguageFunc func(text string) string

func (f LanguageFunc) Detect(text string) string { return f(text) }

// Fixed always reports the same language.
func Fixed(code string) LanguageDetector {
	code = NormalizeLanguage(code)
	return LanguageFunc(func(string) string { return code })
}

// LinguaOptions configures NewLinguaDetector.
type LinguaOptions struct {
	// Languages are ISO 639-1 codes; at least two are required. Empty means
	// DefaultLanguages.
	Languages           []string
	MinRelativeDistance float64
	// Preload loads every model now instead of on the first Detect call.
	Preload bool
}

type linguaDetector struct {
	once     sync.Once
	builder  lingua.LanguageDetectorBuilder
	detector lingua.LanguageDetector
}

// ParseLanguages maps ISO 639-1 codes to lingua languages, skipping
// duplicates.
func ParseLanguages(codes []string) ([]lingua.Language, error) {
	seen := make(map[lingua.Language]bool, len(codes))
	out := make([]lingua.Language, 0, len(codes))
	for _, code := range codes {
		lang := lingua.GetLanguageFromIsoCode639_1(lingua.GetIsoCode639_1FromValue(strings.TrimSpace(code)))
		if lang == lingua.Unknown {
			return nil, fmt.Errorf("unsupported detection language %q", code)
		}
		if !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("language detection needs at least two languages, got %d", len(out))
	}
	return out, nil
}

// NewLinguaDetector builds a detector restricted to opts.Languages.
func NewLinguaDetector(opts LinguaOptions) (LanguageDetector, error) {
	codes := opts.Languages
	if len(codes) == 0 {
		codes = DefaultLanguages
	}
	langs, err := ParseLanguages(codes)
	if err != nil {
		return nil, err
	}
	if opts.MinRelativeDistance < 0 || opts.MinRelativeDistance > 0.99 {
		return nil, fmt.Errorf("minimum relative distance must be within [0, 0.99], got %g", opts.MinRelativeDistance)
	}

	builder := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		WithMinimumRelativeDistance(opts.MinRelativeDistance)
	if opts.Preload {
		builder = builder.WithPreloadedLanguageModels()
	}
	d := &linguaDetector{builder: builder}
	if opts.Preload {
		d.once.Do(d.build)
	}
	return d, nil
}

func (d *linguaDetector) build() {
	d.detector = d.builder.Build()
}

func (d *linguaDetector) Detect(text string) (code string) {
	if tooShortToDetect(text) {
		return DefaultLanguage
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WarnCF("detect", "Language detection panicked", map[string]any{"panic": r})
			code = DefaultLanguage
		}
	}()

	d.once.Do(d.build)
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return DefaultLanguage
	}
	return NormalizeLanguage(lang.IsoCode639_1().String())
}

// tooShortToDetect reports empty text and short texts written only in
// Latin script. Short non-Latin text still goes to lingua, whose script
// rules identify it reliably.
func tooShortToDetect(text string) bool {
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.Is(unicode.Latin, r) {
			return false
		}
		letters++
	}
	return letters < minLatinLetters
}

// NormalizeLanguage reduces a tag such as "AR", "pt-BR" or "en_US" to its
// lowercase base code. Unparseable input yields DefaultLanguage.
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	base, conf := tag.Base()
	if conf == language.No {
		return DefaultLanguage
	}
	return base.String()
}
