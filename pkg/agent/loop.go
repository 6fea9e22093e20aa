// MindGlow - Non-directive reflection companion backend
// License: MIT
//
// Copyright (c) 2026 MindGlow contributors

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mindglow/mindglow/pkg/bus"
	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/memory"
	"github.com/mindglow/mindglow/pkg/persona"
)

const (
	DefaultMaxMemoryItems = 200
	DefaultMaxSessions    = 1000
	DefaultSessionIdle    = 24 * time.Hour

	fallbackReply = "I'm having trouble finding words right now. Could you give me a moment and try again?"
	helpText      = "Commands:\n" +
		"/persona [reflect|inner_learning]  show or switch the companion\n" +
		"/end                               close the session and keep a short summary\n" +
		"/reset                             forget this session entirely\n" +
		"/help                              show this message"
)

// Responder is the part of the Pipeline the loop depends on.
type Responder interface {
	GenerateWithMemory(ctx context.Context, req ChatRequest, stored []memory.StoredItem) (Result, error)
	SummarizeSession(ctx context.Context, p persona.Persona, messages []Message) (SessionSummary, error)
}

type LoopOptions struct {
	Persona        persona.Persona
	MaxHistory     int
	MaxSummaries   int
	MaxMemoryItems int
	// MaxSessions caps the sessions held in memory; the least recently
	// active one is evicted to make room.
	MaxSessions int
	// SessionIdle is how long a session may sit untouched before it is
	// dropped.
	SessionIdle time.Duration
	Now         func() time.Time
}

// AgentLoop serves chat frontends. It owns the per-session state the
// pipeline leaves to callers: the history window, embedded memory items and
// the summaries of closed sessions.
type AgentLoop struct {
	bus       *bus.MessageBus
	responder Responder
	opts      LoopOptions

	mu       sync.Mutex
	sessions map[string]*session
	running  atomic.Bool
}

type session struct {
	persona   persona.Persona
	history   []Message
	items     []memory.StoredItem
	summaries []string
	lastSeen  time.Time
}

// Turn is the loop's answer to one inbound message. Result is nil for
// commands and failures.
type Turn struct {
	Replies []bus.OutboundMessage
	Result  *Result
}

func NewAgentLoop(msgBus *bus.MessageBus, responder Responder, opts LoopOptions) (*AgentLoop, error) {
	if responder == nil {
		return nil, fmt.Errorf("agent loop: responder is required")
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.MaxSummaries <= 0 {
		opts.MaxSummaries = DefaultMaxSummaries
	}
	if opts.MaxMemoryItems <= 0 {
		opts.MaxMemoryItems = DefaultMaxMemoryItems
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = DefaultSessionIdle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AgentLoop{
		bus:       msgBus,
		responder: responder,
		opts:      opts,
		sessions:  make(map[string]*session),
	}, nil
}

// Run consumes inbound messages until ctx is cancelled or the bus closes.
// Messages are handled one at a time in arrival order.
func (al *AgentLoop) Run(ctx context.Context) error {
	if al.bus == nil {
		return fmt.Errorf("agent loop: bus is required")
	}
	al.running.Store(true)
	defer al.running.Store(false)

	for al.running.Load() {
		msg, ok := al.bus.ConsumeInbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			logger.InfoC("agent", "Inbound bus closed; agent loop exiting")
			return nil
		}

		turn, err := al.Process(ctx, msg)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		for _, out := range turn.Replies {
			al.bus.PublishOutbound(out)
		}
	}
	return nil
}

func (al *AgentLoop) Stop() {
	al.running.Store(false)
}

// ProcessDirect handles text typed into the local REPL.
func (al *AgentLoop) ProcessDirect(ctx context.Context, content, sessionKey string) (Turn, error) {
	return al.Process(ctx, bus.InboundMessage{
		Channel:    "cli",
		SenderID:   "local-user",
		ChatID:     "direct",
		Content:    content,
		SessionKey: sessionKey,
	})
}

// Process answers one message. On failure the returned Turn still carries a
// gentle fallback reply for the user.
func (al *AgentLoop) Process(ctx context.Context, msg bus.InboundMessage) (Turn, error) {
	key, err := resolveSessionKey(msg.SessionKey, msg.Channel, msg.ChatID, msg.SenderID)
	if err != nil {
		return Turn{}, err
	}

	logger.InfoCF("agent", "Processing message",
		map[string]any{
			"channel":     msg.Channel,
			"session":     key,
			"content_len": len(msg.Content),
		})

	if reply, handled := al.handleCommand(ctx, key, msg); handled {
		return Turn{Replies: []bus.OutboundMessage{al.notice(msg, reply)}}, nil
	}

	sess := al.snapshot(key)
	req := ChatRequest{
		Persona: sess.persona,
		User: UserInfo{
			UserID:      msg.SenderID,
			DisplayName: msg.SenderName,
		},
		Message:       msg.Content,
		History:       sess.history,
		PastSummaries: sess.summaries,
	}

	res, err := al.responder.GenerateWithMemory(ctx, req, sess.items)
	if err != nil {
		logger.ErrorCF("agent", "Failed to generate response",
			map[string]any{
				"channel": msg.Channel,
				"session": key,
				"error":   err.Error(),
			})
		if errors.Is(err, ErrInvalidRequest) {
			return Turn{}, err
		}
		return Turn{Replies: []bus.OutboundMessage{al.notice(msg, fallbackReply)}}, err
	}

	al.record(key, msg.Content, res.Response)

	replies := []bus.OutboundMessage{{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: res.Response.Reply,
		Kind:    bus.KindReply,
	}}
	if res.Response.CrisisDetected && res.Response.CrisisResources != "" {
		replies = append(replies, bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: res.Response.CrisisResources,
			Kind:    bus.KindResources,
		})
	}
	return Turn{Replies: replies, Result: &res}, nil
}

func (al *AgentLoop) notice(msg bus.InboundMessage, content string) bus.OutboundMessage {
	return bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: content, Kind: bus.KindNotice}
}

func (al *AgentLoop) sessionLocked(key string) *session {
	now := al.opts.Now()
	s, ok := al.sessions[key]
	if !ok {
		al.evictLocked(now)
		s = &session{persona: al.opts.Persona}
		al.sessions[key] = s
	}
	s.lastSeen = now
	return s
}

// evictLocked drops idle sessions, then the least recently active ones until
// there is room for one more.
func (al *AgentLoop) evictLocked(now time.Time) {
	cutoff := now.Add(-al.opts.SessionIdle)
	for key, s := range al.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(al.sessions, key)
		}
	}
	for len(al.sessions) >= al.opts.MaxSessions {
		var oldestKey string
		var oldest time.Time
		for key, s := range al.sessions {
			if oldestKey == "" || s.lastSeen.Before(oldest) {
				oldestKey, oldest = key, s.lastSeen
			}
		}
		delete(al.sessions, oldestKey)
		logger.DebugCF("agent", "Evicted least recent session", map[string]any{"session": oldestKey})
	}
}

// snapshot copies the session so the pipeline reads state no other turn can
// change underneath it.
func (al *AgentLoop) snapshot(key string) session {
	al.mu.Lock()
	defer al.mu.Unlock()
	s := al.sessionLocked(key)
	return session{
		persona:   s.persona,
		history:   append([]Message(nil), s.history...),
		items:     append([]memory.StoredItem(nil), s.items...),
		summaries: append([]string(nil), s.summaries...),
	}
}

func (al *AgentLoop) record(key, userMessage string, resp ChatResponse) {
	now := al.opts.Now().UTC()

	al.mu.Lock()
	defer al.mu.Unlock()
	s := al.sessionLocked(key)

	s.history = append(s.history,
		Message{Role: RoleUser, Content: userMessage, Timestamp: &now, Language: resp.DetectedLanguage},
		Message{Role: RoleAssistant, Content: resp.Reply, Timestamp: &now, Language: resp.DetectedLanguage},
	)
	if over := len(s.history) - al.opts.MaxHistory; over > 0 {
		s.history = append([]Message(nil), s.history[over:]...)
	}

	if len(resp.Embedding) > 0 {
		s.items = append(s.items, memory.StoredItem{Role: RoleUser, Content: userMessage, Embedding: resp.Embedding, Timestamp: &now})
	}
	if len(resp.ReplyEmbedding) > 0 {
		s.items = append(s.items, memory.StoredItem{Role: RoleAssistant, Content: resp.Reply, Embedding: resp.ReplyEmbedding, Timestamp: &now})
	}
	if over := len(s.items) - al.opts.MaxMemoryItems; over > 0 {
		s.items = append([]memory.StoredItem(nil), s.items[over:]...)
	}
}

func (al *AgentLoop) handleCommand(ctx context.Context, key string, msg bus.InboundMessage) (string, bool) {
	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, "/") {
		return "", false
	}

	parts := strings.Fields(content)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "/help":
		return helpText, true

	case "/persona":
		if len(args) == 0 {
			s := al.snapshot(key)
			return fmt.Sprintf("Current companion: %s", s.persona.Label()), true
		}
		p, err := persona.Parse(args[0])
		if err != nil {
			return fmt.Sprintf("Unknown companion %q. Choose reflect or inner_learning.", args[0]), true
		}
		al.mu.Lock()
		s := al.sessionLocked(key)
		changed := s.persona != p
		s.persona = p
		if changed {
			s.history = nil
		}
		al.mu.Unlock()
		return fmt.Sprintf("Switched to %s.", p.Label()), true

	case "/reset":
		al.mu.Lock()
		delete(al.sessions, key)
		al.mu.Unlock()
		return "This session has been cleared.", true

	case "/end":
		return al.endSession(ctx, key), true
	}

	return "", false
}

func (al *AgentLoop) endSession(ctx context.Context, key string) string {
	s := al.snapshot(key)
	if len(s.history) == 0 {
		return "There is nothing to close yet."
	}

	summary, err := al.responder.SummarizeSession(ctx, s.persona, s.history)
	if err != nil {
		logger.ErrorCF("agent", "Failed to summarize session",
			map[string]any{"session": key, "error": err.Error()})
		return "I couldn't close this session just now. Your conversation is still here."
	}

	al.mu.Lock()
	live := al.sessionLocked(key)
	live.summaries = append(live.summaries, summary.Summary)
	if over := len(live.summaries) - al.opts.MaxSummaries; over > 0 {
		live.summaries = append([]string(nil), live.summaries[over:]...)
	}
	live.history = nil
	al.mu.Unlock()

	logger.InfoCF("agent", "Session closed",
		map[string]any{"session": key, "language": summary.DetectedLanguage})
	return "Thank you for this time together. I'll carry a short note of what we explored into next time."
}

// SessionStats reports how many sessions are held in memory.
func (al *AgentLoop) SessionStats() map[string]any {
	al.mu.Lock()
	defer al.mu.Unlock()
	messages := 0
	for _, s := range al.sessions {
		messages += len(s.history)
	}
	return map[string]any{
		"sessions": len(al.sessions),
		"messages": messages,
		"running":  al.running.Load(),
	}
}
