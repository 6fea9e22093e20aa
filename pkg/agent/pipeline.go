package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mindglow/mindglow/pkg/config"
	"github.com/mindglow/mindglow/pkg/detect"
	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/memory"
	"github.com/mindglow/mindglow/pkg/observability"
	"github.com/mindglow/mindglow/pkg/persona"
	"github.com/mindglow/mindglow/pkg/providers"
)

// AuditSink receives safety records after a request completes. Sink errors
// are logged and never fail the request.
type AuditSink interface {
	RecordViolation(ctx context.Context, log ViolationLog) error
	RecordCrisis(ctx context.Context, log CrisisLog) error
}

// PipelineConfig is the explicit configuration of a Pipeline.
type PipelineConfig struct {
	Provider  providers.Provider
	Language  detect.LanguageDetector
	Resources ResourceTable

	Model              string
	Temperature        float64
	MaxTokens          int
	MaxFilterRetries   int
	SummaryTemperature float64

	MaxHistory          int
	MaxPastSummaries    int
	TopK                int
	SimilarityThreshold float64
	ItemCharBudget      int

	Audit   AuditSink
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Now     func() time.Time
}

// PipelineConfigFrom copies the tunables out of cfg.
func PipelineConfigFrom(cfg *config.Config) PipelineConfig {
	return PipelineConfig{
		Model:               cfg.Generation.Model,
		Temperature:         cfg.Generation.Temperature,
		MaxTokens:           cfg.Generation.MaxTokens,
		MaxFilterRetries:    cfg.Generation.MaxFilterRetries,
		SummaryTemperature:  cfg.Generation.SummaryTemperature,
		MaxHistory:          cfg.Memory.MaxContextMessages,
		MaxPastSummaries:    cfg.Memory.MaxPastSummaries,
		TopK:                cfg.Memory.TopK,
		SimilarityThreshold: cfg.Memory.SimilarityThreshold,
		ItemCharBudget:      cfg.Memory.ItemCharBudget,
	}
}

// Pipeline runs detect → crisis or (assemble → filter loop) → embed →
// summarize for one request. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	cfg        PipelineConfig
	completer  providers.Completer
	embedder   providers.Embedder
	builder    *ContextBuilder
	filter     *FilterLoop
	crisis     *CrisisHandler
	summarizer *Summarizer
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	now        func() time.Time
}

// NewPipeline fills unset tunables with their defaults. A nil Language gets
// a lingua detector over detect.DefaultLanguages, loaded on first use.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("pipeline: provider is required")
	}
	if cfg.Language == nil {
		lang, err := detect.NewLinguaDetector(detect.LinguaOptions{MinRelativeDistance: detect.DefaultMinRelativeDistance})
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		cfg.Language = lang
	}
	if cfg.Resources == nil {
		cfg.Resources = DefaultResources()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.MaxFilterRetries < 0 {
		cfg.MaxFilterRetries = DefaultMaxFilterRetries
	}
	if cfg.TopK < 1 {
		cfg.TopK = memory.DefaultTopK
	}
	if cfg.ItemCharBudget < 1 {
		cfg.ItemCharBudget = memory.DefaultItemCharBudget
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NoopTracer()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Pipeline{
		cfg:     cfg,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
		now:     cfg.Now,
	}
	p.completer = &instrumentedCompleter{next: cfg.Provider, metrics: cfg.Metrics, tracer: cfg.Tracer}
	p.embedder = &instrumentedEmbedder{Embedder: cfg.Provider, metrics: cfg.Metrics, tracer: cfg.Tracer}
	p.builder = NewContextBuilder(cfg.MaxHistory)
	if cfg.MaxPastSummaries > 0 {
		p.builder.MaxSummaries = cfg.MaxPastSummaries
	}

	opts := providers.CompletionOptions{Model: cfg.Model, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	p.filter = &FilterLoop{
		Completer:  p.completer,
		Options:    opts,
		MaxRetries: cfg.MaxFilterRetries,
		Observe: func(ps persona.Persona, a FilterAttempt) {
			p.metrics.FilterAttempt(ps.String(), len(a.Violations) > 0)
		},
	}
	p.crisis = &CrisisHandler{
		Completer: p.completer,
		Options:   opts,
		Builder:   p.builder,
		Resources: cfg.Resources,
		Now:       cfg.Now,
	}
	p.summarizer = &Summarizer{
		Completer:   p.completer,
		Language:    cfg.Language,
		Model:       cfg.Model,
		Temperature: cfg.SummaryTemperature,
	}
	return p, nil
}

// Validate rejects requests that cannot be answered.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	for i, m := range r.History {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: history[%d] has role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}

// GenerateResponse answers one chat request. memoryContext is a rendered
// memory block or "".
func (p *Pipeline) GenerateResponse(ctx context.Context, req ChatRequest, memoryContext string) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	start := p.now()
	ctx, span := p.tracer.Start(ctx, "pipeline.generate", attribute.String("persona", req.Persona.String()))
	defer span.End()

	lang := p.cfg.Language.Detect(req.Message)
	span.SetAttributes(attribute.String("language", lang))

	var (
		res     Result
		err     error
		outcome = "normal"
	)
	if indicators := detect.DetectCrisis(req.Message); len(indicators) > 0 {
		outcome = "crisis"
		res, err = p.crisisResponse(ctx, req, lang, indicators, memoryContext)
	} else {
		res, err = p.normalResponse(ctx, req, lang, memoryContext)
	}
	if err != nil {
		outcome = "error"
		observability.RecordError(span, err)
	}
	p.metrics.ObserveRequest(req.Persona.String(), outcome, p.now().Sub(start))
	if err != nil {
		return Result{}, err
	}

	p.audit(ctx, res)
	logger.InfoCF("agent", "Response generated",
		map[string]any{
			"persona":   req.Persona.String(),
			"user_id":   req.User.UserID,
			"language":  lang,
			"outcome":   outcome,
			"filtered":  res.Response.Filtered,
			"reply_len": len(res.Response.Reply),
		})
	return res, nil
}

func (p *Pipeline) crisisResponse(ctx context.Context, req ChatRequest, lang string, indicators []string, memoryContext string) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.crisis", attribute.Int("indicators", len(indicators)))
	defer span.End()
	p.metrics.Crisis(lang)

	out, err := p.crisis.Handle(ctx, req, lang, indicators, memoryContext)
	if err != nil {
		observability.RecordError(span, err)
		return Result{}, err
	}
	vecs, err := p.embedPair(ctx, req.Message, out.Reply)
	if err != nil {
		return Result{}, err
	}

	log := out.Log
	return Result{
		Response: ChatResponse{
			Reply:            out.Reply,
			DetectedLanguage: lang,
			CrisisDetected:   true,
			CrisisResources:  out.Resources,
			Embedding:        vecs[0],
			ReplyEmbedding:   vecs[1],
		},
		CrisisLog: &log,
	}, nil
}

func (p *Pipeline) normalResponse(ctx context.Context, req ChatRequest, lang, memoryContext string) (Result, error) {
	messages := p.builder.BuildMessages(PromptInput{
		Contract:      req.Persona.Contract(),
		PastSummaries: req.PastSummaries,
		MemoryContext: memoryContext,
		History:       req.History,
		UserMessage:   req.Message,
		Language:      lang,
	})

	fctx, span := p.tracer.Start(ctx, "pipeline.filter_loop")
	out, err := p.filter.Run(fctx, messages, req.Persona)
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("attempts", len(out.Attempts)),
		attribute.String("state", out.State.String()),
	)
	span.End()

	var vlog *ViolationLog
	if out.Filtered {
		p.metrics.FilterExhaustedInc(req.Persona.String())
		vlog = &ViolationLog{
			ID:                  uuid.NewString(),
			Timestamp:           p.now().UTC(),
			Persona:             req.Persona,
			UserID:              req.User.UserID,
			OriginalResponse:    out.Original(),
			FilteredReason:      strings.Join(out.Violations, ", "),
			RegeneratedResponse: out.Reply,
			Violations:          out.Violations,
		}
	}

	vecs, err := p.embedPair(ctx, req.Message, out.Reply)
	if err != nil {
		return Result{}, err
	}

	summary, err := p.summarizer.SummarizeExchange(ctx, req.Persona, req.Message, out.Reply, lang)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Response: ChatResponse{
			Reply:            out.Reply,
			DetectedLanguage: lang,
			Filtered:         out.Filtered,
			FilterReason:     out.Reason,
			Embedding:        vecs[0],
			ReplyEmbedding:   vecs[1],
			Summary:          summary,
		},
		ViolationLog: vlog,
	}, nil
}

// embedPair embeds the user message and reply in one batched call.
func (p *Pipeline) embedPair(ctx context.Context, message, reply string) ([][]float32, error) {
	vecs, err := p.embedder.EmbedMany(ctx, []string{message, reply})
	if err != nil {
		return nil, fmt.Errorf("embed exchange: %w", err)
	}
	if len(vecs) != 2 {
		return nil, fmt.Errorf("embed exchange: %w: got %d vectors for 2 inputs", providers.ErrGeneration, len(vecs))
	}
	return vecs, nil
}

// GenerateWithMemory ranks stored against the message and injects the
// winners. Any memory failure is logged and the request proceeds without
// memory.
func (p *Pipeline) GenerateWithMemory(ctx context.Context, req ChatRequest, stored []memory.StoredItem) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	return p.GenerateResponse(ctx, req, p.memoryContext(ctx, req.Message, stored))
}

func (p *Pipeline) memoryContext(ctx context.Context, query string, stored []memory.StoredItem) (block string) {
	if len(stored) == 0 {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			p.degrade(fmt.Errorf("panic: %v", r))
			block = ""
		}
	}()

	ctx, span := p.tracer.Start(ctx, "pipeline.memory", attribute.Int("candidates", len(stored)))
	defer span.End()

	queryVec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		p.degrade(err)
		return ""
	}
	threshold := p.cfg.SimilarityThreshold
	matches := memory.Rank(queryVec, stored, memory.RankOptions{TopK: p.cfg.TopK, Threshold: &threshold})
	span.SetAttributes(attribute.Int("matches", len(matches)))
	return memory.BuildContext(matches, p.cfg.ItemCharBudget)
}

func (p *Pipeline) degrade(err error) {
	p.metrics.MemoryDegradedInc()
	logger.WarnCF("agent", "Memory retrieval failed; continuing without memory",
		map[string]any{"error": err.Error()})
}

// SearchRequest asks for the stored items most similar to Query. Zero TopK
// or nil Threshold use the configured values.
type SearchRequest struct {
	Query     string
	Items     []memory.StoredItem
	TopK      int
	Threshold *float64
}

// SearchResult carries the ranked matches and the query vector, so callers
// can store the query as a new item without embedding it twice.
type SearchResult struct {
	Matches        []memory.Match
	QueryEmbedding []float32
}

// SearchMemory embeds the query and ranks req.Items against it.
func (p *Pipeline) SearchMemory(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return SearchResult{}, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if req.TopK < 0 || req.TopK > memory.MaxTopK {
		return SearchResult{}, fmt.Errorf("%w: top_k must be within [1, %d]", ErrInvalidRequest, memory.MaxTopK)
	}
	topK := req.TopK
	if topK == 0 {
		topK = p.cfg.TopK
	}
	threshold := p.cfg.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.search", attribute.Int("candidates", len(req.Items)))
	defer span.End()

	queryVec, err := p.embedder.Embed(ctx, req.Query)
	if err != nil {
		observability.RecordError(span, err)
		return SearchResult{}, fmt.Errorf("embed query: %w", err)
	}
	matches := memory.Rank(queryVec, req.Items, memory.RankOptions{TopK: topK, Threshold: &threshold})
	return SearchResult{Matches: memory.Rounded(matches), QueryEmbedding: queryVec}, nil
}

// SummarizeSession writes a neutral summary of a finished session.
func (p *Pipeline) SummarizeSession(ctx context.Context, ps persona.Persona, messages []Message) (SessionSummary, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.summarize_session", attribute.Int("messages", len(messages)))
	defer span.End()
	out, err := p.summarizer.SummarizeSession(ctx, ps, messages)
	if err != nil {
		observability.RecordError(span, err)
	}
	return out, err
}

// Embed returns the embedding of one text.
func (p *Pipeline) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return vec, nil
}

// DetectLanguage exposes the configured detector.
func (p *Pipeline) DetectLanguage(text string) string {
	return p.cfg.Language.Detect(text)
}

func (p *Pipeline) audit(ctx context.Context, res Result) {
	sink := p.cfg.Audit
	if sink == nil {
		return
	}
	if res.ViolationLog != nil {
		if err := sink.RecordViolation(ctx, *res.ViolationLog); err != nil {
			logger.ErrorCF("agent", "Failed to record violation log",
				map[string]any{"id": res.ViolationLog.ID, "error": err.Error()})
		}
	}
	if res.CrisisLog != nil {
		if err := sink.RecordCrisis(ctx, *res.CrisisLog); err != nil {
			logger.ErrorCF("agent", "Failed to record crisis log",
				map[string]any{"id": res.CrisisLog.ID, "error": err.Error()})
		}
	}
}

type instrumentedCompleter struct {
	next    providers.Completer
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

func (c *instrumentedCompleter) Name() string { return c.next.Name() }

func (c *instrumentedCompleter) Complete(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (string, error) {
	ctx, span := c.tracer.Start(ctx, "provider.complete",
		attribute.String("provider", c.next.Name()),
		attribute.Int("messages", len(messages)))
	defer span.End()
	out, err := c.next.Complete(ctx, messages, opts)
	c.metrics.ProviderCall("complete", err)
	observability.RecordError(span, err)
	return out, err
}

type instrumentedEmbedder struct {
	providers.Embedder
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

func (e *instrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := e.tracer.Start(ctx, "provider.embed", attribute.Int("inputs", 1))
	defer span.End()
	out, err := e.Embedder.Embed(ctx, text)
	e.metrics.ProviderCall("embed", err)
	observability.RecordError(span, err)
	return out, err
}

func (e *instrumentedEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := e.tracer.Start(ctx, "provider.embed", attribute.Int("inputs", len(texts)))
	defer span.End()
	out, err := e.Embedder.EmbedMany(ctx, texts)
	e.metrics.ProviderCall("embed", err)
	observability.RecordError(span, err)
	return out, err
}
