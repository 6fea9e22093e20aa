package agent

import (
	"errors"
	"time"

	"github.com/mindglow/mindglow/pkg/persona"
)

var (
	// ErrEmptyInput is returned when summarization receives no messages.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidRequest marks a request the pipeline refuses before any
	// provider call.
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one history entry. Callers own the history; the pipeline only
// reads it.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Language  string     `json:"language,omitempty"`
}

type UserInfo struct {
	UserID            string            `json:"user_id"`
	DisplayName       string            `json:"display_name,omitempty"`
	PreferredLanguage string            `json:"preferred_language,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type ChatRequest struct {
	Persona       persona.Persona
	User          UserInfo
	Message       string
	History       []Message
	PastSummaries []string
}

type ChatResponse struct {
	Reply            string    `json:"reply"`
	DetectedLanguage string    `json:"detected_language"`
	CrisisDetected   bool      `json:"crisis_detected"`
	CrisisResources  string    `json:"crisis_resources,omitempty"`
	Filtered         bool      `json:"response_was_filtered"`
	FilterReason     string    `json:"filter_log,omitempty"`
	Embedding        []float32 `json:"embedding,omitempty"`
	ReplyEmbedding   []float32 `json:"reply_embedding,omitempty"`
	Summary          string    `json:"summary,omitempty"`
}

// FilterAttempt is one generation attempt inside the retry loop. Index is
// 0-based.
type FilterAttempt struct {
	Index      int
	Text       string
	Violations []string
}

// ViolationLog records a reply accepted with violations after every retry
// was spent.
type ViolationLog struct {
	ID                  string          `json:"id"`
	Timestamp           time.Time       `json:"timestamp"`
	Persona             persona.Persona `json:"chatbot"`
	UserID              string          `json:"user_id"`
	OriginalResponse    string          `json:"original_response"`
	FilteredReason      string          `json:"filtered_reason"`
	RegeneratedResponse string          `json:"regenerated_response"`
	Violations          []string        `json:"violations"`
}

// CrisisLog records crisis indicators found in a user message.
type CrisisLog struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"user_id"`
	UserMessage string    `json:"user_message"`
	Indicators  []string  `json:"detected_indicators"`
	Language    string    `json:"language"`
}

// Result is the pipeline output. At most one of the logs is set.
type Result struct {
	Response     ChatResponse
	ViolationLog *ViolationLog
	CrisisLog    *CrisisLog
}
