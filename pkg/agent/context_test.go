package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mindglow/mindglow/pkg/providers"
)

func TestBuildMessages_MinimalOrder(t *testing.T) {
	cb := NewContextBuilder(0)
	got := cb.BuildMessages(PromptInput{Contract: "contract", UserMessage: "hello", Language: "en"})
	want := []providers.Message{
		{Role: providers.RoleSystem, Content: "contract"},
		{Role: providers.RoleUser, Content: "hello"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMessages_AllBlocksInOrder(t *testing.T) {
	cb := NewContextBuilder(20)
	got := cb.BuildMessages(PromptInput{
		Contract:      "contract",
		PastSummaries: []string{"s1", "s2"},
		MemoryContext: "memory block",
		History: []Message{
			{Role: RoleUser, Content: "earlier"},
			{Role: RoleAssistant, Content: "earlier reply"},
		},
		UserMessage: "مرحبا",
		Language:    "ar",
	})

	if len(got) != 7 {
		t.Fatalf("expected 7 messages, got %d: %+v", len(got), got)
	}
	if got[0].Content != "contract" {
		t.Fatalf("contract must be first, got %q", got[0].Content)
	}
	wantSummaries := pastSummariesHeader + "\n[Past session reflection 1]: s1\n\n[Past session reflection 2]: s2"
	if got[1].Content != wantSummaries {
		t.Fatalf("summaries block = %q", got[1].Content)
	}
	if got[2].Content != "memory block" {
		t.Fatalf("memory block = %q", got[2].Content)
	}
	if !strings.Contains(got[3].Content, "'ar'") || got[3].Role != providers.RoleSystem {
		t.Fatalf("expected language instruction, got %+v", got[3])
	}
	if got[4].Role != RoleUser || got[5].Role != RoleAssistant {
		t.Fatalf("history roles not preserved: %+v", got[4:6])
	}
	if got[6].Role != providers.RoleUser || got[6].Content != "مرحبا" {
		t.Fatalf("user turn must be last, got %+v", got[6])
	}
}

func TestBuildMessages_KeepsLastThreeSummaries(t *testing.T) {
	cb := NewContextBuilder(20)
	got := cb.BuildMessages(PromptInput{
		Contract:      "c",
		PastSummaries: []string{"a", "b", "c", "d"},
		UserMessage:   "hi",
	})
	block := got[1].Content
	if strings.Contains(block, ": a") {
		t.Fatalf("oldest summary should be dropped: %q", block)
	}
	if !strings.Contains(block, "[Past session reflection 1]: b") || !strings.Contains(block, "[Past session reflection 3]: d") {
		t.Fatalf("unexpected summaries block: %q", block)
	}
}

func TestBuildMessages_TruncatesHistoryToTail(t *testing.T) {
	history := make([]Message, 0, 30)
	for i := 0; i < 30; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		history = append(history, Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	cb := NewContextBuilder(20)
	got := cb.BuildMessages(PromptInput{Contract: "c", History: history, UserMessage: "now"})

	// contract + 20 history + user
	if len(got) != 22 {
		t.Fatalf("expected 22 messages, got %d", len(got))
	}
	if got[1].Content != "m10" || got[20].Content != "m29" {
		t.Fatalf("expected tail m10..m29, got %q..%q", got[1].Content, got[20].Content)
	}
	if len(history) != 30 || history[0].Content != "m0" {
		t.Fatalf("caller history mutated")
	}
}

func TestBuildMessages_OmitsEmptyOptionalBlocks(t *testing.T) {
	cb := NewContextBuilder(20)
	got := cb.BuildMessages(PromptInput{Contract: "c", MemoryContext: "   ", UserMessage: "hi", Language: ""})
	if len(got) != 2 {
		t.Fatalf("expected contract + user only, got %+v", got)
	}
}
