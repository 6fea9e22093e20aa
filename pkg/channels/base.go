package channels

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mindglow/mindglow/pkg/bus"
)

// Channel is a chat frontend that feeds the message bus.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// BaseChannel carries the allowlist and bus plumbing shared by adapters.
type BaseChannel struct {
	bus       *bus.MessageBus
	running   atomic.Bool
	name      string
	allowList []string
}

func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		bus:       msgBus,
		name:      name,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

// IsAllowed reports whether senderID may talk to the companion. An empty
// allowlist admits everyone. Compound ids ("123456|username") match on either
// part.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		candidate := strings.TrimSpace(strings.TrimPrefix(allowed, "@"))
		if candidate == "" {
			continue
		}
		if candidate == senderID || candidate == idPart || (userPart != "" && candidate == userPart) {
			return true
		}
	}

	return false
}

// HandleMessage publishes an allowed message. The session key pins history
// to one sender in one chat.
func (c *BaseChannel) HandleMessage(senderID, senderName, chatID, content string, metadata map[string]string) bool {
	if !c.IsAllowed(senderID) {
		return false
	}

	return c.bus.PublishInbound(bus.InboundMessage{
		Channel:    c.name,
		SenderID:   senderID,
		SenderName: senderName,
		ChatID:     chatID,
		Content:    content,
		SessionKey: fmt.Sprintf("%s:%s:%s", c.name, chatID, senderID),
		Metadata:   metadata,
	})
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}
