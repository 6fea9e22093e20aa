// MindGlow - Non-directive reflection companion backend
// License: MIT
//
// Copyright (c) 2026 MindGlow contributors

package channels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mindglow/mindglow/pkg/bus"
	"github.com/mindglow/mindglow/pkg/config"
	"github.com/mindglow/mindglow/pkg/logger"
)

// Manager owns the enabled chat adapters and delivers outbound bus
// messages to the adapter named on each message.
type Manager struct {
	bus *bus.MessageBus

	mu       sync.RWMutex
	channels map[string]Channel

	stopDispatch context.CancelFunc
	dispatchWG   sync.WaitGroup
}

// NewManager builds the adapters enabled in cfg. An enabled adapter with
// missing credentials is a configuration error.
func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{bus: messageBus, channels: make(map[string]Channel)}

	discordCfg := cfg.Channels.Discord
	if !discordCfg.Enabled {
		logger.InfoC("channels", "No chat adapters enabled")
		return m, nil
	}
	if strings.TrimSpace(discordCfg.Token) == "" {
		return nil, fmt.Errorf("channels.discord.token is required when discord is enabled")
	}
	discord, err := NewDiscordChannel(discordCfg, messageBus)
	if err != nil {
		return nil, fmt.Errorf("initialize discord adapter: %w", err)
	}
	m.channels[discord.Name()] = discord

	logger.InfoCF("channels", "Chat adapters initialized", map[string]any{
		"adapters": m.GetEnabledChannels(),
	})
	return m, nil
}

// RegisterChannel adds an adapter before StartAll.
func (m *Manager) RegisterChannel(name string, channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = channel
}

// GetEnabledChannels returns adapter names in sorted order.
func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) snapshot() map[string]Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Channel, len(m.channels))
	for name, ch := range m.channels {
		out[name] = ch
	}
	return out
}

// StartAll starts every adapter and the outbound dispatcher. If any adapter
// fails, the ones already started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	adapters := m.snapshot()
	if len(adapters) == 0 {
		logger.WarnC("channels", "No chat adapters to start")
		return nil
	}

	var started []Channel
	var errs error
	for name, ch := range adapters {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Adapter failed to start", map[string]any{"channel": name, "error": err.Error()})
			errs = errors.Join(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		started = append(started, ch)
	}
	if errs != nil {
		for _, ch := range started {
			if err := ch.Stop(ctx); err != nil {
				logger.WarnCF("channels", "Rollback stop failed", map[string]any{"channel": ch.Name(), "error": err.Error()})
			}
		}
		return fmt.Errorf("start chat adapters: %w", errs)
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.stopDispatch != nil {
		m.stopDispatch()
	}
	m.stopDispatch = cancel
	m.mu.Unlock()

	m.dispatchWG.Add(1)
	go func() {
		defer m.dispatchWG.Done()
		m.dispatch(dispatchCtx)
	}()

	logger.InfoCF("channels", "Chat adapters started", map[string]any{"count": len(started)})
	return nil
}

// StopAll halts the dispatcher, waits for it to drain its current send, and
// stops every adapter. Adapter errors are logged, not returned.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	if m.stopDispatch != nil {
		m.stopDispatch()
		m.stopDispatch = nil
	}
	m.mu.Unlock()
	m.dispatchWG.Wait()

	for name, ch := range m.snapshot() {
		if err := ch.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Adapter failed to stop", map[string]any{"channel": name, "error": err.Error()})
		}
	}
	logger.InfoC("channels", "Chat adapters stopped")
	return nil
}

func (m *Manager) dispatch(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			if ctx.Err() == nil {
				logger.InfoC("channels", "Outbound bus closed")
			}
			return
		}
		// The REPL renders its own replies.
		if msg.Channel == "cli" || msg.Channel == "system" {
			continue
		}

		m.mu.RLock()
		ch, found := m.channels[msg.Channel]
		m.mu.RUnlock()
		if !found {
			logger.WarnCF("channels", "No adapter for outbound message", map[string]any{"channel": msg.Channel})
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Outbound send failed", map[string]any{
				"channel": msg.Channel,
				"kind":    msg.Kind,
				"error":   err.Error(),
			})
		}
	}
}
