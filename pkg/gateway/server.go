// Package gateway exposes the pipeline over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mindglow/mindglow/pkg/agent"
	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/memory"
	"github.com/mindglow/mindglow/pkg/observability"
	"github.com/mindglow/mindglow/pkg/persona"
)

const (
	ServiceName    = "MindGlow AI"
	ServiceVersion = "1.0.0"

	maxBodyBytes    = 8 << 20
	shutdownTimeout = 10 * time.Second
)

// Engine is the pipeline surface the HTTP handlers call.
type Engine interface {
	GenerateResponse(ctx context.Context, req agent.ChatRequest, memoryContext string) (agent.Result, error)
	GenerateWithMemory(ctx context.Context, req agent.ChatRequest, stored []memory.StoredItem) (agent.Result, error)
	SearchMemory(ctx context.Context, req agent.SearchRequest) (agent.SearchResult, error)
	SummarizeSession(ctx context.Context, p persona.Persona, messages []agent.Message) (agent.SessionSummary, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Server struct {
	engine  Engine
	metrics *observability.Metrics
	handler http.Handler
}

func NewServer(engine Engine, metrics *observability.Metrics) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("gateway: engine is required")
	}
	s := &Server{engine: engine, metrics: metrics}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat-with-memory", s.handleChatWithMemory)
	mux.HandleFunc("POST /semantic-search", s.handleSemanticSearch)
	mux.HandleFunc("POST /summary", s.handleSummary)
	mux.HandleFunc("POST /embed", s.handleEmbed)
	mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	s.handler = withRecovery(withCORS(withMetrics(metrics, mux)))
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("gateway", "HTTP gateway listening", map[string]any{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	logger.InfoC("gateway", "HTTP gateway stopped")
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequestJSON
	if !decode(w, r, &body) {
		return
	}
	req, err := body.toAgent()
	if err != nil {
		writeError(w, err, "AI generation error")
		return
	}
	res, err := s.engine.GenerateResponse(r.Context(), req, "")
	if err != nil {
		writeError(w, err, "AI generation error")
		return
	}
	writeJSON(w, http.StatusOK, res.Response)
}

func (s *Server) handleChatWithMemory(w http.ResponseWriter, r *http.Request) {
	var body chatWithMemoryJSON
	if !decode(w, r, &body) {
		return
	}
	chat, stored := body.parts()
	req, err := chat.toAgent()
	if err != nil {
		writeError(w, err, "AI generation error")
		return
	}
	res, err := s.engine.GenerateWithMemory(r.Context(), req, toStoredItems(stored))
	if err != nil {
		writeError(w, err, "AI generation error")
		return
	}
	writeJSON(w, http.StatusOK, res.Response)
}

func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	var body semanticSearchRequestJSON
	if !decode(w, r, &body) {
		return
	}
	topK := memory.DefaultTopK
	if body.TopK != nil {
		topK = *body.TopK
		if topK < 1 || topK > memory.MaxTopK {
			writeError(w, fmt.Errorf("%w: top_k must be within [1, %d]", agent.ErrInvalidRequest, memory.MaxTopK), "Embedding error")
			return
		}
	}

	res, err := s.engine.SearchMemory(r.Context(), agent.SearchRequest{
		Query:     body.Query,
		Items:     toStoredItems(body.StoredMessages),
		TopK:      topK,
		Threshold: body.Threshold,
	})
	if err != nil {
		writeError(w, err, "Embedding error")
		return
	}

	out := semanticSearchResponseJSON{
		Results:        make([]semanticSearchResultJSON, 0, len(res.Matches)),
		QueryEmbedding: res.QueryEmbedding,
	}
	for _, m := range res.Matches {
		out.Results = append(out.Results, semanticSearchResultJSON{
			Content:    m.Item.Content,
			Role:       m.Item.Role,
			Similarity: m.Similarity,
			Timestamp:  m.Item.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var body summaryRequestJSON
	if !decode(w, r, &body) {
		return
	}
	if len(body.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorJSON{Detail: "No messages to summarize"})
		return
	}
	if body.Chatbot == nil {
		writeError(w, fmt.Errorf("%w: chatbot is required", agent.ErrInvalidRequest), "Summary error")
		return
	}
	out, err := s.engine.SummarizeSession(r.Context(), *body.Chatbot, body.Messages)
	if err != nil {
		writeError(w, err, "Summary error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var body embedRequestJSON
	if !decode(w, r, &body) {
		return
	}
	vec, err := s.engine.Embed(r.Context(), body.Text)
	if err != nil {
		writeError(w, err, "Embedding error")
		return
	}
	writeJSON(w, http.StatusOK, embedResponseJSON{Embedding: vec})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	chatbots := make([]string, 0, len(persona.All))
	for _, p := range persona.All {
		chatbots = append(chatbots, p.String())
	}
	writeJSON(w, http.StatusOK, healthJSON{
		Status:   "healthy",
		Service:  ServiceName,
		Version:  ServiceVersion,
		Chatbots: chatbots,
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		detail := "invalid JSON body: " + err.Error()
		if errors.Is(err, io.EOF) {
			detail = "request body is required"
		}
		writeJSON(w, http.StatusBadRequest, errorJSON{Detail: detail})
		return false
	}
	return true
}

// writeError maps pipeline errors onto status codes. Caller mistakes are
// 400; anything else is a 500 carrying prefix.
func writeError(w http.ResponseWriter, err error, prefix string) {
	switch {
	case errors.Is(err, agent.ErrInvalidRequest), errors.Is(err, agent.ErrEmptyInput):
		writeJSON(w, http.StatusBadRequest, errorJSON{Detail: stripSentinel(err)})
	default:
		logger.ErrorCF("gateway", "Request failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorJSON{Detail: prefix + ": " + err.Error()})
	}
}

func stripSentinel(err error) string {
	msg := err.Error()
	for _, prefix := range []string{agent.ErrInvalidRequest.Error() + ": ", agent.ErrEmptyInput.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnCF("gateway", "Failed to write response", map[string]any{"error": err.Error()})
	}
}
