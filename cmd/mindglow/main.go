// MindGlow - Non-directive reflection companion backend
// License: MIT
//
// Copyright (c) 2026 MindGlow contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mindglow/mindglow/pkg/agent"
	"github.com/mindglow/mindglow/pkg/audit"
	"github.com/mindglow/mindglow/pkg/config"
	"github.com/mindglow/mindglow/pkg/detect"
	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/observability"
	"github.com/mindglow/mindglow/pkg/providers"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "mindglow"

var configPath = config.DefaultPath()

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func main() {
	defer logger.Sync()
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(debug bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)
	return cfg, nil
}

// stack is everything a command needs to run the pipeline.
type stack struct {
	cfg      *config.Config
	pipeline *agent.Pipeline
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	audit    *audit.Store
	shutdown func(context.Context) error
}

func (s *stack) Close(ctx context.Context) {
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			logger.WarnCF("main", "Trace exporter shutdown failed", map[string]any{"error": err.Error()})
		}
	}
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			logger.WarnCF("main", "Audit store close failed", map[string]any{"error": err.Error()})
		}
	}
}

// buildStack wires provider, tracer, audit store and pipeline from cfg.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	if err := providers.ValidateProviderConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	resources, err := agent.LoadResources(cfg.CrisisResourcesPath())
	if err != nil {
		return nil, err
	}

	tracer, shutdown, err := observability.NewTracer(ctx, observability.TraceConfig{
		ServiceName:    appName,
		ServiceVersion: version,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.TraceSampling,
		Insecure:       cfg.Observability.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	s := &stack{
		cfg:      cfg,
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		tracer:   tracer,
		shutdown: shutdown,
	}

	pcfg := agent.PipelineConfigFrom(cfg)
	pcfg.Provider = provider
	pcfg.Resources = resources
	pcfg.Metrics = s.metrics
	pcfg.Tracer = tracer

	loadStart := time.Now()
	pcfg.Language, err = detect.NewLinguaDetector(detect.LinguaOptions{
		Languages:           cfg.Language.Languages,
		MinRelativeDistance: cfg.Language.MinRelativeDistance,
		Preload:             true,
	})
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("init language detection: %w", err)
	}
	logger.DebugCF("main", "Language models loaded", map[string]any{
		"languages": []string(cfg.Language.Languages),
		"took":      time.Since(loadStart).String(),
	})

	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.AuditPath())
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		s.audit = store
		pcfg.Audit = store
	}

	s.pipeline, err = agent.NewPipeline(pcfg)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	logger.InfoCF("main", "Pipeline ready",
		map[string]any{
			"provider": provider.Name(),
			"model":    cfg.Generation.Model,
			"audit":    cfg.Audit.Enabled,
			"tracing":  cfg.Observability.OTLPEndpoint != "",
		})
	return s, nil
}
