package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mindglow/mindglow/pkg/detect"
	"github.com/mindglow/mindglow/pkg/persona"
)

func TestSummarizeExchange(t *testing.T) {
	p := newScriptedProvider()
	s := &Summarizer{Completer: p, Temperature: 0.3}

	out, err := s.SummarizeExchange(context.Background(), persona.Reflect, "I miss home.", "What does home mean to you?", "en")
	if err != nil {
		t.Fatalf("SummarizeExchange failed: %v", err)
	}
	if out != p.summaryReply {
		t.Fatalf("unexpected summary %q", out)
	}
	call := p.calls[0]
	if !strings.Contains(call[0].Content, "Reflect chatbot") || !strings.Contains(call[0].Content, "User language: en") {
		t.Fatalf("unexpected summary prompt %q", call[0].Content)
	}
	if call[1].Content != "User: I miss home.\nAssistant: What does home mean to you?" {
		t.Fatalf("unexpected exchange body %q", call[1].Content)
	}
	if p.opts[0].MaxTokens != 100 || p.opts[0].Temperature != 0.3 {
		t.Fatalf("unexpected options %+v", p.opts[0])
	}
}

func TestSummarizeExchange_ZeroTemperatureIsHonoured(t *testing.T) {
	p := newScriptedProvider()
	s := &Summarizer{Completer: p, Temperature: 0}

	if _, err := s.SummarizeExchange(context.Background(), persona.Reflect, "hi", "hello", "en"); err != nil {
		t.Fatalf("SummarizeExchange failed: %v", err)
	}
	if got := p.opts[0].Temperature; got != 0 {
		t.Fatalf("temperature = %g, want 0", got)
	}
}

func TestSummarizeSession(t *testing.T) {
	p := newScriptedProvider()
	s := &Summarizer{Completer: p, Language: detect.Fixed("ar"), Temperature: 0.2}

	out, err := s.SummarizeSession(context.Background(), persona.InnerLearning, []Message{
		{Role: RoleUser, Content: "أشعر بالتعب"},
		{Role: RoleAssistant, Content: "ماذا تلاحظ؟"},
	})
	if err != nil {
		t.Fatalf("SummarizeSession failed: %v", err)
	}
	if out.DetectedLanguage != "ar" || out.Summary != p.summaryReply {
		t.Fatalf("unexpected summary %+v", out)
	}
	if body := p.calls[0][1].Content; body != "user: أشعر بالتعب\nassistant: ماذا تلاحظ؟" {
		t.Fatalf("unexpected transcript %q", body)
	}
	if !strings.Contains(p.calls[0][0].Content, "Inner Learning chatbot") {
		t.Fatalf("persona label missing from prompt")
	}
	if p.opts[0].MaxTokens != 200 || p.opts[0].Temperature != 0.2 {
		t.Fatalf("unexpected options %+v", p.opts[0])
	}
}

func TestSummarizeSession_Empty(t *testing.T) {
	p := newScriptedProvider()
	s := &Summarizer{Completer: p}
	_, err := s.SummarizeSession(context.Background(), persona.Reflect, nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("empty session must not call the model")
	}
}
