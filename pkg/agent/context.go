package agent

import (
	"fmt"
	"strings"

	"github.com/mindglow/mindglow/pkg/detect"
	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/providers"
)

const (
	DefaultMaxHistory   = 20
	DefaultMaxSummaries = 3

	pastSummariesHeader = "[Past session summaries — weave gently, never list them]"
)

// PromptInput is everything the assembler needs for one turn.
type PromptInput struct {
	Contract      string
	PastSummaries []string
	MemoryContext string
	History       []Message
	UserMessage   string
	Language      string
}

// ContextBuilder assembles the ordered message list sent to the model.
type ContextBuilder struct {
	MaxHistory   int
	MaxSummaries int
}

// NewContextBuilder keeps at most maxHistory trailing turns.
func NewContextBuilder(maxHistory int) *ContextBuilder {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &ContextBuilder{MaxHistory: maxHistory, MaxSummaries: DefaultMaxSummaries}
}

// BuildMessages emits, in order: the contract, the past-summaries block, the
// memory block, the language instruction, the trailing history window and
// the current user turn. Empty optional blocks are omitted.
func (cb *ContextBuilder) BuildMessages(in PromptInput) []providers.Message {
	maxHistory := cb.MaxHistory
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	maxSummaries := cb.MaxSummaries
	if maxSummaries <= 0 {
		maxSummaries = DefaultMaxSummaries
	}

	history := in.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]providers.Message, 0, len(history)+5)
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: in.Contract})

	if block := pastSummariesBlock(in.PastSummaries, maxSummaries); block != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: block})
	}
	if strings.TrimSpace(in.MemoryContext) != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: in.MemoryContext})
	}
	if lang := strings.TrimSpace(in.Language); lang != "" && lang != detect.DefaultLanguage {
		messages = append(messages, providers.Message{
			Role:    providers.RoleSystem,
			Content: fmt.Sprintf("The user is writing in '%s'. Respond in the same language.", lang),
		})
	}
	for _, m := range history {
		messages = append(messages, providers.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: in.UserMessage})

	logger.DebugCF("agent", "Prompt assembled",
		map[string]any{
			"messages":       len(messages),
			"history_used":   len(history),
			"history_total":  len(in.History),
			"past_summaries": len(in.PastSummaries),
			"has_memory":     in.MemoryContext != "",
			"language":       in.Language,
		})

	return messages
}

func pastSummariesBlock(summaries []string, limit int) string {
	if len(summaries) == 0 {
		return ""
	}
	if len(summaries) > limit {
		summaries = summaries[len(summaries)-limit:]
	}
	lines := make([]string, 0, len(summaries))
	for i, s := range summaries {
		lines = append(lines, fmt.Sprintf("[Past session reflection %d]: %s", i+1, s))
	}
	return pastSummariesHeader + "\n" + strings.Join(lines, "\n\n")
}
