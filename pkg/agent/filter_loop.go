// MindGlow - Non-directive reflection companion backend
// License: MIT
//
// Copyright (c) 2026 MindGlow contributors

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/persona"
	"github.com/mindglow/mindglow/pkg/providers"
)

// DefaultMaxFilterRetries is the number of regenerations after the first
// rejected reply.
const DefaultMaxFilterRetries = 2

// FilterState is the terminal state of a FilterLoop run.
type FilterState int

const (
	// Accepted means a candidate passed every catalogue.
	Accepted FilterState = iota
	// AcceptedWithViolation means retries ran out and the last candidate
	// was kept anyway.
	AcceptedWithViolation
)

func (s FilterState) String() string {
	if s == AcceptedWithViolation {
		return "accepted_with_violation"
	}
	return "accepted"
}

// FilterOutcome is the result of a FilterLoop run.
type FilterOutcome struct {
	Reply      string
	State      FilterState
	Filtered   bool
	Reason     string
	Violations []string
	Attempts   []FilterAttempt
}

// Original is the first attempt's text.
func (o FilterOutcome) Original() string {
	if len(o.Attempts) == 0 {
		return ""
	}
	return o.Attempts[0].Text
}

// FilterLoop generates a reply and regenerates it while it contains
// forbidden phrases, up to MaxRetries extra attempts.
type FilterLoop struct {
	Completer  providers.Completer
	Options    providers.CompletionOptions
	MaxRetries int
	// Observe, if set, is called after every attempt.
	Observe func(p persona.Persona, attempt FilterAttempt)
}

// Run drives attempts 0..MaxRetries. The caller's messages slice is never
// modified; rejected candidates and corrections are appended to a copy.
// A provider error aborts the loop.
func (f *FilterLoop) Run(ctx context.Context, messages []providers.Message, p persona.Persona) (FilterOutcome, error) {
	maxRetries := f.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	msgs := make([]providers.Message, len(messages), len(messages)+2*maxRetries)
	copy(msgs, messages)

	var out FilterOutcome
	for k := 0; k <= maxRetries; k++ {
		reply, err := f.Completer.Complete(ctx, msgs, f.Options)
		if err != nil {
			logger.ErrorCF("filter", "Completion failed",
				map[string]any{
					"attempt": k + 1,
					"persona": p.String(),
					"error":   err.Error(),
				})
			return FilterOutcome{}, fmt.Errorf("generate reply (attempt %d): %w", k+1, err)
		}

		violations := p.Violations(reply)
		attempt := FilterAttempt{Index: k, Text: reply, Violations: violations}
		out.Attempts = append(out.Attempts, attempt)
		if f.Observe != nil {
			f.Observe(p, attempt)
		}

		if len(violations) == 0 {
			out.Reply = reply
			out.State = Accepted
			logger.DebugCF("filter", "Reply accepted",
				map[string]any{
					"attempt": k + 1,
					"persona": p.String(),
				})
			return out, nil
		}

		if k < maxRetries {
			logger.InfoCF("filter", "Directive language detected; regenerating",
				map[string]any{
					"attempt":    k + 1,
					"max":        maxRetries + 1,
					"persona":    p.String(),
					"violations": violations,
				})
			msgs = append(msgs,
				providers.Message{Role: providers.RoleAssistant, Content: reply},
				providers.Message{Role: providers.RoleSystem, Content: p.Correction(violations)},
			)
			continue
		}

		out.Reply = reply
		out.State = AcceptedWithViolation
		out.Filtered = true
		out.Violations = violations
		out.Reason = fmt.Sprintf("Directives after %d attempts: %s", maxRetries+1, strings.Join(violations, ", "))
		logger.WarnCF("filter", "Retries exhausted; accepting reply with violations",
			map[string]any{
				"attempts":   maxRetries + 1,
				"persona":    p.String(),
				"violations": violations,
			})
	}
	return out, nil
}
