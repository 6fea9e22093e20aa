package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mindglow/mindglow/pkg/agent"
	"github.com/mindglow/mindglow/pkg/audit"
	"github.com/mindglow/mindglow/pkg/bus"
	"github.com/mindglow/mindglow/pkg/channels"
	"github.com/mindglow/mindglow/pkg/gateway"
	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/persona"
)

// runServe starts the HTTP gateway, the audit sweeper and any enabled chat
// channels, and blocks until SIGINT or SIGTERM.
func runServe(debug bool) error {
	cfg, err := loadConfig(debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		st.Close(closeCtx)
	}()

	srv, err := gateway.NewServer(st.pipeline, st.metrics)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.ListenAddr())
	})
	fmt.Printf("✓ HTTP gateway on http://%s (health: /health, metrics: /metrics)\n", cfg.ListenAddr())

	if st.audit != nil {
		sweeper, err := audit.NewSweeper(st.audit, cfg.Audit.SweepCron, cfg.Audit.RetentionDays)
		if err != nil {
			return err
		}
		g.Go(func() error { return sweeper.Run(gctx) })
		fmt.Printf("✓ Audit log at %s (retention %d days)\n", cfg.AuditPath(), cfg.Audit.RetentionDays)
	}

	if cfg.Channels.Discord.Enabled {
		if err := startChannels(gctx, g, st, cfg.Channels.Discord.Persona); err != nil {
			return err
		}
	}

	err = g.Wait()
	fmt.Println("\nShutting down...")
	if err != nil {
		return err
	}
	fmt.Println("✓ MindGlow stopped")
	return nil
}

func startChannels(ctx context.Context, g *errgroup.Group, st *stack, personaName string) error {
	p, err := persona.Parse(defaultString(personaName, persona.Reflect.String()))
	if err != nil {
		return fmt.Errorf("channels.discord.persona: %w", err)
	}

	msgBus := bus.NewMessageBus()
	loop, err := agent.NewAgentLoop(msgBus, st.pipeline, agent.LoopOptions{
		Persona:      p,
		MaxHistory:   st.cfg.Memory.MaxContextMessages,
		MaxSummaries: st.cfg.Memory.MaxPastSummaries,
		MaxSessions:  st.cfg.Channels.MaxSessions,
		SessionIdle:  time.Duration(st.cfg.Channels.SessionIdleMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}
	manager, err := channels.NewManager(st.cfg, msgBus)
	if err != nil {
		return fmt.Errorf("init channels: %w", err)
	}
	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	fmt.Printf("✓ Channels enabled: %v (persona %s)\n", manager.GetEnabledChannels(), p)

	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		loop.Stop()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := manager.StopAll(stopCtx)
		msgBus.Close()
		if dropped := msgBus.DroppedInbound() + msgBus.DroppedOutbound(); dropped > 0 {
			logger.WarnCF("main", "Bus dropped messages", map[string]any{"dropped": dropped})
		}
		return err
	})
	return nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
