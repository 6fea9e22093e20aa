// Package persona defines the two companion personas and the behavioral
// contracts that constrain them.
package persona

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindglow/mindglow/pkg/detect"
)

// Persona is a closed set: Reflect or InnerLearning.
type Persona int

const (
	// Reflect is the non-directive inner-voice companion.
	Reflect Persona = iota
	// InnerLearning is the Socratic discovery guide.
	InnerLearning
)

// All lists every persona in declaration order.
var All = []Persona{Reflect, InnerLearning}

// Parse accepts the wire identifiers "reflect" and "inner_learning".
func Parse(s string) (Persona, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reflect":
		return Reflect, nil
	case "inner_learning", "inner-learning", "innerlearning":
		return InnerLearning, nil
	default:
		return Reflect, fmt.Errorf("unknown persona %q (want reflect or inner_learning)", s)
	}
}

// String returns the wire identifier.
func (p Persona) String() string {
	switch p {
	case InnerLearning:
		return "inner_learning"
	default:
		return "reflect"
	}
}

// Label is the display name used in summarizer prompts and the REPL.
func (p Persona) Label() string {
	switch p {
	case InnerLearning:
		return "Inner Learning"
	default:
		return "Reflect"
	}
}

// Contract is the persona's system prompt.
func (p Persona) Contract() string {
	switch p {
	case InnerLearning:
		return innerLearningContract
	default:
		return reflectContract
	}
}

// ExtraPhrases is the forbidden-phrase catalogue checked on top of the
// shared directive catalogue. Reflect has none.
func (p Persona) ExtraPhrases() detect.Matcher {
	switch p {
	case InnerLearning:
		return detect.Teaching
	default:
		return nil
	}
}

// Violations runs the directive catalogue and the persona's extra phrases.
func (p Persona) Violations(text string) []string {
	return detect.Combine(detect.Directives, p.ExtraPhrases()).Match(text)
}

// Correction is the system instruction appended after a rejected reply.
func (p Persona) Correction(matches []string) string {
	joined := strings.Join(matches, ", ")
	switch p {
	case InnerLearning:
		return "⚠️ VIOLATION: You're teaching/instructing. Detected: " + joined +
			". Use ONLY questions. Guide discovery, don't give answers."
	default:
		return "⚠️ Your response contained directive language: " + joined +
			". This violates your core rules. Regenerate without ANY advice, " +
			"suggestions, or directive phrases. Ask an open-ended question instead."
	}
}

func (p Persona) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Persona) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("persona must be a string: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
