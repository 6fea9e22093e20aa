package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/mindglow/mindglow/pkg/agent"
	"github.com/mindglow/mindglow/pkg/memory"
	"github.com/mindglow/mindglow/pkg/persona"
)

// JSON shapes of the HTTP API. They map onto the agent types at the edge so
// the pipeline never sees transport concerns.

type conversationHistoryJSON struct {
	Messages []agent.Message `json:"messages"`
}

type chatRequestJSON struct {
	Chatbot             *persona.Persona        `json:"chatbot"`
	UserInfo            agent.UserInfo          `json:"user_info"`
	Message             string                  `json:"message"`
	ConversationHistory conversationHistoryJSON `json:"conversation_history"`
	PastSummaries       []string                `json:"past_summaries"`
}

func (r chatRequestJSON) toAgent() (agent.ChatRequest, error) {
	if r.Chatbot == nil {
		return agent.ChatRequest{}, fmt.Errorf("%w: chatbot is required", agent.ErrInvalidRequest)
	}
	if strings.TrimSpace(r.UserInfo.UserID) == "" {
		return agent.ChatRequest{}, fmt.Errorf("%w: user_info.user_id is required", agent.ErrInvalidRequest)
	}
	return agent.ChatRequest{
		Persona:       *r.Chatbot,
		User:          r.UserInfo,
		Message:       r.Message,
		History:       r.ConversationHistory.Messages,
		PastSummaries: r.PastSummaries,
	}, nil
}

type storedMessageJSON struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Embedding []float32  `json:"embedding"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func toStoredItems(in []storedMessageJSON) []memory.StoredItem {
	out := make([]memory.StoredItem, 0, len(in))
	for _, m := range in {
		out = append(out, memory.StoredItem{
			Role:      m.Role,
			Content:   m.Content,
			Embedding: m.Embedding,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

// chatWithMemoryJSON accepts the chat fields inline with stored_messages, or
// nested under "request" next to "stored_messages_json".
type chatWithMemoryJSON struct {
	chatRequestJSON
	Request            *chatRequestJSON    `json:"request"`
	StoredMessages     []storedMessageJSON `json:"stored_messages"`
	StoredMessagesJSON []storedMessageJSON `json:"stored_messages_json"`
}

func (r chatWithMemoryJSON) parts() (chatRequestJSON, []storedMessageJSON) {
	req := r.chatRequestJSON
	if r.Request != nil {
		req = *r.Request
	}
	stored := r.StoredMessages
	if len(stored) == 0 {
		stored = r.StoredMessagesJSON
	}
	return req, stored
}

type semanticSearchRequestJSON struct {
	Query          string              `json:"query"`
	StoredMessages []storedMessageJSON `json:"stored_messages"`
	TopK           *int                `json:"top_k"`
	Threshold      *float64            `json:"threshold"`
}

type semanticSearchResultJSON struct {
	Content    string     `json:"content"`
	Role       string     `json:"role"`
	Similarity float64    `json:"similarity"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

type semanticSearchResponseJSON struct {
	Results        []semanticSearchResultJSON `json:"results"`
	QueryEmbedding []float32                  `json:"query_embedding"`
}

type summaryRequestJSON struct {
	Chatbot  *persona.Persona `json:"chatbot"`
	Messages []agent.Message  `json:"messages"`
}

type embedRequestJSON struct {
	Text string `json:"text"`
}

type embedResponseJSON struct {
	Embedding []float32 `json:"embedding"`
}

type healthJSON struct {
	Status   string   `json:"status"`
	Service  string   `json:"service"`
	Version  string   `json:"version"`
	Chatbots []string `json:"chatbots"`
}

type errorJSON struct {
	Detail string `json:"detail"`
}
