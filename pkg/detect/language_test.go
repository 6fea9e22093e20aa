package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"EN":    "en",
		"ar":    "ar",
		"pt-BR": "pt",
		"en_US": "en",
		"":      "en",
		"???":   "en",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLanguage(in), "input %q", in)
	}
}

func TestFixed(t *testing.T) {
	assert.Equal(t, "ar", Fixed("AR").Detect("anything"))
}

func newTestDetector(t *testing.T) LanguageDetector {
	t.Helper()
	d, err := NewLinguaDetector(LinguaOptions{
		Languages:           []string{"en", "ar", "fr", "es"},
		MinRelativeDistance: DefaultMinRelativeDistance,
	})
	require.NoError(t, err)
	return d
}

func TestLinguaDetector_EmptyTextDefaults(t *testing.T) {
	assert.Equal(t, DefaultLanguage, newTestDetector(t).Detect("   "))
}

func TestLinguaDetector_EnglishAndArabic(t *testing.T) {
	d := newTestDetector(t)
	assert.Equal(t, "en", d.Detect("I have been feeling overwhelmed at work lately"))
	assert.Equal(t, "ar", d.Detect("أشعر بالتعب الشديد هذه الأيام"))
}

func TestLinguaDetector_ShortEnglishStaysEnglish(t *testing.T) {
	d := newTestDetector(t)
	for _, text := range []string{"ok", "hi", "yes!", "I had a long day.", "thanks"} {
		assert.Equal(t, "en", d.Detect(text), "input %q", text)
	}
}

func TestLinguaDetector_ShortArabicStillDetected(t *testing.T) {
	assert.Equal(t, "ar", newTestDetector(t).Detect("لا"))
}

func TestNewLinguaDetector_RejectsBadOptions(t *testing.T) {
	_, err := NewLinguaDetector(LinguaOptions{Languages: []string{"en", "xx"}})
	assert.Error(t, err)
	_, err = NewLinguaDetector(LinguaOptions{Languages: []string{"en", "EN"}})
	assert.Error(t, err, "duplicates leave one language")
	_, err = NewLinguaDetector(LinguaOptions{MinRelativeDistance: 1.5})
	assert.Error(t, err)
}

func TestParseLanguages_DefaultsAreSupported(t *testing.T) {
	langs, err := ParseLanguages(DefaultLanguages)
	require.NoError(t, err)
	assert.Len(t, langs, len(DefaultLanguages))
}
