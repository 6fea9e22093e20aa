package agent

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mindglow/mindglow/pkg/providers"
)

// scriptedProvider returns Replies in order and repeats the last one once
// the script runs out. Summary calls are answered with summaryReply.
type scriptedProvider struct {
	mu           sync.Mutex
	replies      []string
	summaryReply string
	calls        [][]providers.Message
	opts         []providers.CompletionOptions
	completeErr  error
	embedErr     error
	queryErr     error
	embedCalls   int
	embedInputs  [][]string
	vectors      map[string][]float32
}

func newScriptedProvider(replies ...string) *scriptedProvider {
	return &scriptedProvider{replies: replies, summaryReply: "The theme of rest was explored."}
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := append([]providers.Message(nil), messages...)
	p.calls = append(p.calls, snapshot)
	p.opts = append(p.opts, opts)
	if p.completeErr != nil {
		return "", p.completeErr
	}
	if len(messages) > 0 && strings.Contains(messages[0].Content, "neutral summarizer") {
		return p.summaryReply, nil
	}
	if len(p.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return reply, nil
}

// generationCalls counts non-summary completions.
func (p *scriptedProvider) generationCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if len(c) > 0 && !strings.Contains(c[0].Content, "neutral summarizer") {
			n++
		}
	}
	return n
}

func (p *scriptedProvider) summaryCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if len(c) > 0 && strings.Contains(c[0].Content, "neutral summarizer") {
			n++
		}
	}
	return n
}

func (p *scriptedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	queryErr := p.queryErr
	p.mu.Unlock()
	if queryErr != nil {
		return nil, queryErr
	}
	vecs, err := p.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *scriptedProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedCalls++
	p.embedInputs = append(p.embedInputs, append([]string(nil), texts...))
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := p.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (p *scriptedProvider) Dimension() int { return 2 }

type recordingSink struct {
	mu         sync.Mutex
	violations []ViolationLog
	crises     []CrisisLog
	err        error
}

func (s *recordingSink) RecordViolation(ctx context.Context, log ViolationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, log)
	return s.err
}

func (s *recordingSink) RecordCrisis(ctx context.Context, log CrisisLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crises = append(s.crises, log)
	return s.err
}
