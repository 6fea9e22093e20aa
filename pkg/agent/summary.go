package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindglow/mindglow/pkg/detect"
	"github.com/mindglow/mindglow/pkg/persona"
	"github.com/mindglow/mindglow/pkg/providers"
)

const (
	exchangeSummaryTokens = 100
	sessionSummaryTokens  = 200
)

// Summarizer writes neutral summaries used only as future context. There is
// no retry loop and no phrase filter here. Temperature is sent as given, so
// zero means deterministic output.
type Summarizer struct {
	Completer   providers.Completer
	Language    detect.LanguageDetector
	Model       string
	Temperature float64
}

// SessionSummary is a session summary and the language it was written for.
type SessionSummary struct {
	Summary          string `json:"summary"`
	DetectedLanguage string `json:"detected_language"`
}

// SummarizeExchange writes a 1-2 sentence summary of one user/assistant pair.
func (s *Summarizer) SummarizeExchange(ctx context.Context, p persona.Persona, userMessage, reply, lang string) (string, error) {
	system := fmt.Sprintf("You are a neutral summarizer for the %s chatbot in MindGlow. "+
		"Create a 1-2 sentence neutral summary of this exchange. "+
		"Do NOT track progress, evaluate emotions, or judge. "+
		"Simply note the theme explored. Write in the same language as the user. "+
		"User language: %s", p.Label(), lang)

	out, err := s.Completer.Complete(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: system},
		{Role: providers.RoleUser, Content: "User: " + userMessage + "\nAssistant: " + reply},
	}, providers.CompletionOptions{Model: s.Model, Temperature: s.Temperature, MaxTokens: exchangeSummaryTokens})
	if err != nil {
		return "", fmt.Errorf("summarize exchange: %w", err)
	}
	return out, nil
}

// SummarizeSession writes a 2-3 sentence summary of a whole session. The
// language is taken from the first message.
func (s *Summarizer) SummarizeSession(ctx context.Context, p persona.Persona, messages []Message) (SessionSummary, error) {
	if len(messages) == 0 {
		return SessionSummary{}, fmt.Errorf("summarize session: %w", ErrEmptyInput)
	}

	lang := detect.DefaultLanguage
	if s.Language != nil {
		lang = s.Language.Detect(messages[0].Content)
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}

	system := fmt.Sprintf("You are a neutral summarizer for the %s chatbot in MindGlow. "+
		"Create a 2-3 sentence neutral summary of this session. "+
		"Do NOT track progress, score, or evaluate. Do NOT judge emotions. "+
		"Simply describe the themes and areas that were explored. "+
		"Write in the same language as the conversation. Language: %s", p.Label(), lang)

	out, err := s.Completer.Complete(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: system},
		{Role: providers.RoleUser, Content: strings.Join(lines, "\n")},
	}, providers.CompletionOptions{Model: s.Model, Temperature: s.Temperature, MaxTokens: sessionSummaryTokens})
	if err != nil {
		return SessionSummary{}, fmt.Errorf("summarize session: %w", err)
	}
	return SessionSummary{Summary: out, DetectedLanguage: lang}, nil
}
