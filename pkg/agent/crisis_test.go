package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mindglow/mindglow/pkg/persona"
)

func TestResourceTable_Lookup(t *testing.T) {
	table := DefaultResources()
	tests := []struct {
		lang string
		want string
	}{
		{"en", table["en"]},
		{"EN", table["en"]},
		{"ar", table["ar"]},
		{"fr", table[DefaultResourceKey]},
		{"", table["en"]},
		{"pt-BR", table[DefaultResourceKey]},
	}
	for _, tt := range tests {
		if got := table.Lookup(tt.lang); got != tt.want {
			t.Errorf("Lookup(%q) returned the wrong entry", tt.lang)
		}
	}
	if got := (ResourceTable{}).Lookup("en"); got == "" {
		t.Fatalf("empty table should still return a default")
	}
}

func TestLoadResources_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.yaml")
	content := "fr: \"Appelez le 3114.\"\nen: \"Call 988.\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	table, err := LoadResources(path)
	if err != nil {
		t.Fatalf("LoadResources failed: %v", err)
	}
	if table.Lookup("fr") != "Appelez le 3114." {
		t.Fatalf("fr overlay missing: %q", table.Lookup("fr"))
	}
	if table.Lookup("en") != "Call 988." {
		t.Fatalf("en overlay missing: %q", table.Lookup("en"))
	}
	if table.Lookup("ar") != DefaultResources()["ar"] {
		t.Fatalf("built-in ar entry should survive overlay")
	}
}

func TestLoadResources_RejectsEmptyEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.yaml")
	if err := os.WriteFile(path, []byte("de: \"\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadResources(path); err == nil {
		t.Fatalf("expected error for empty entry")
	}
}

func TestLoadResources_EmptyPath(t *testing.T) {
	table, err := LoadResources("")
	if err != nil {
		t.Fatalf("LoadResources failed: %v", err)
	}
	if len(table) != len(DefaultResources()) {
		t.Fatalf("expected built-in table")
	}
}

func TestCrisisHandler_SingleCallWithAddition(t *testing.T) {
	p := newScriptedProvider("I'm here with you. What you carry sounds so heavy.")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := &CrisisHandler{
		Completer: p,
		Builder:   NewContextBuilder(20),
		Now:       func() time.Time { return fixed },
	}
	req := ChatRequest{
		Persona: persona.InnerLearning,
		User:    UserInfo{UserID: "u1"},
		Message: "I want to end my life",
	}

	out, err := h.Handle(context.Background(), req, "en", []string{"kill myself"}, "")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if p.generationCalls() != 1 {
		t.Fatalf("crisis branch must call the model once, got %d", p.generationCalls())
	}
	system := p.calls[0][0].Content
	if !strings.HasPrefix(system, persona.InnerLearning.Contract()) || !strings.Contains(system, "CRISIS DETECTED") {
		t.Fatalf("crisis contract not used: %q", system)
	}
	if out.Resources != DefaultResources()["en"] {
		t.Fatalf("expected English resources")
	}
	if out.Log.ID == "" || out.Log.UserID != "u1" || !out.Log.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected crisis log %+v", out.Log)
	}
	if len(out.Log.Indicators) != 1 || out.Log.UserMessage != req.Message {
		t.Fatalf("crisis log should carry message and indicators: %+v", out.Log)
	}
}
