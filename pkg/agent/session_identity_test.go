package agent

import (
	"strings"
	"testing"
)

func TestResolveSessionKey_Deterministic(t *testing.T) {
	k1, err := resolveSessionKey("", "discord", "chat-1", "user-1")
	if err != nil {
		t.Fatalf("resolve session key: %v", err)
	}
	k2, err := resolveSessionKey("", "Discord", "chat-1", "user-1")
	if err != nil {
		t.Fatalf("resolve session key second call: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("expected deterministic session keys, got %q vs %q", k1, k2)
	}
	if !isHashedSessionKey(k1) {
		t.Fatalf("expected hashed session key, got %q", k1)
	}
	if strings.Contains(k1, "chat-1") || strings.Contains(k1, "user-1") {
		t.Fatalf("session key leaks raw ids: %q", k1)
	}
}

func TestResolveSessionKey_DiffersByActor(t *testing.T) {
	k1, err := resolveSessionKey("", "discord", "chat-1", "user-a")
	if err != nil {
		t.Fatalf("resolve session key actor A: %v", err)
	}
	k2, err := resolveSessionKey("", "discord", "chat-1", "user-b")
	if err != nil {
		t.Fatalf("resolve session key actor B: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("expected different keys for different actors")
	}
}

func TestResolveSessionKey_ExplicitFallback(t *testing.T) {
	got, err := resolveSessionKey("cli:direct", "", "", "")
	if err != nil {
		t.Fatalf("resolve explicit session key: %v", err)
	}
	if got != "cli:direct" {
		t.Fatalf("expected explicit fallback, got %q", got)
	}
	if _, err := resolveSessionKey("", "", "", ""); err == nil {
		t.Fatalf("expected error without identity or key")
	}
}
