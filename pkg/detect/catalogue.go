// Package detect holds the pure text detectors: language identification and
// the directive, crisis and teaching-phrase catalogues.
package detect

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher reports the substrings of text that triggered it. An empty result
// means clean.
type Matcher interface {
	Match(text string) []string
}

type compiledPhrase struct {
	re       *regexp.Regexp
	leading  bool
	trailing bool
}

// Catalogue is an ordered list of case-insensitive patterns.
type Catalogue struct {
	name    string
	phrases []compiledPhrase
}

var _ Matcher = (*Catalogue)(nil)

// NewCatalogue compiles patterns in order. A leading or trailing `\b` is
// enforced against Unicode letters and digits rather than RE2's ASCII-only
// word class.
func NewCatalogue(name string, patterns []string) (*Catalogue, error) {
	c := &Catalogue{name: name, phrases: make([]compiledPhrase, 0, len(patterns))}
	for i, pattern := range patterns {
		expr := pattern
		var cp compiledPhrase
		if strings.HasPrefix(expr, `\b`) {
			cp.leading = true
			expr = expr[2:]
		}
		if strings.HasSuffix(expr, `\b`) && !strings.HasSuffix(expr, `\\b`) {
			cp.trailing = true
			expr = expr[:len(expr)-2]
		}
		re, err := regexp.Compile(`(?i)` + expr)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern %d %q: %w", name, i, pattern, err)
		}
		cp.re = re
		c.phrases = append(c.phrases, cp)
	}
	return c, nil
}

// MustCatalogue is NewCatalogue for package-level tables.
func MustCatalogue(name string, patterns []string) *Catalogue {
	c, err := NewCatalogue(name, patterns)
	if err != nil {
		panic(err)
	}
	return c
}

// Match returns the first matched substring of each pattern, in catalogue
// order. Patterns that do not match contribute nothing.
func (c *Catalogue) Match(text string) []string {
	if text == "" {
		return nil
	}
	var found []string
	for _, p := range c.phrases {
		if m, ok := p.find(text); ok {
			found = append(found, m)
		}
	}
	return found
}

func (p compiledPhrase) find(text string) (string, bool) {
	offset := 0
	for offset <= len(text) {
		loc := p.re.FindStringIndex(text[offset:])
		if loc == nil {
			return "", false
		}
		start, end := offset+loc[0], offset+loc[1]
		if (!p.leading || isBoundary(text, start)) && (!p.trailing || isBoundary(text, end)) {
			return text[start:end], true
		}
		// Retry one rune past the rejected start.
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			size = 1
		}
		offset = start + size
	}
	return "", false
}

// isBoundary mirrors `\b`: the runes on either side of pos differ in
// wordness.
func isBoundary(text string, pos int) bool {
	var before, after bool
	if pos > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:pos])
		before = isWordRune(r)
	}
	if pos < len(text) {
		r, _ := utf8.DecodeRuneInString(text[pos:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// Keywords matches lowercase substrings.
type Keywords struct {
	phrases []string
}

var _ Matcher = (*Keywords)(nil)

func NewKeywords(phrases ...string) *Keywords {
	k := &Keywords{phrases: make([]string, 0, len(phrases))}
	for _, p := range phrases {
		if p = strings.ToLower(p); p != "" {
			k.phrases = append(k.phrases, p)
		}
	}
	return k
}

// Match returns every phrase contained in text, in list order.
func (k *Keywords) Match(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	for _, p := range k.phrases {
		if strings.Contains(lower, p) {
			found = append(found, p)
		}
	}
	return found
}

type combined []Matcher

// Combine runs matchers in order and concatenates their results.
func Combine(matchers ...Matcher) Matcher {
	out := make(combined, 0, len(matchers))
	for _, m := range matchers {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (c combined) Match(text string) []string {
	var found []string
	for _, m := range c {
		found = append(found, m.Match(text)...)
	}
	return found
}
