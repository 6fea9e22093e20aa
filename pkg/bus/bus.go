package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultBufferSize = 100
	publishTimeout    = 100 * time.Millisecond
)

// MessageBus connects channel adapters to the channel loop. Publishing never
// blocks for longer than publishTimeout; messages that cannot be queued in
// time are dropped and counted.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	closed   bool
	dropped  droppedCounters
	mu       sync.RWMutex
}

type droppedCounters struct {
	inbound  atomic.Uint64
	outbound atomic.Uint64
}

func NewMessageBus() *MessageBus {
	return NewMessageBusSize(defaultBufferSize)
}

func NewMessageBusSize(size int) *MessageBus {
	if size < 1 {
		size = defaultBufferSize
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, size),
		outbound: make(chan OutboundMessage, size),
	}
}

func (mb *MessageBus) PublishInbound(msg InboundMessage) bool {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return false
	}
	if publish(mb.inbound, msg) {
		return true
	}
	mb.dropped.inbound.Add(1)
	return false
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return consume(ctx, mb.inbound)
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) bool {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return false
	}
	if publish(mb.outbound, msg) {
		return true
	}
	mb.dropped.outbound.Add(1)
	return false
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return consume(ctx, mb.outbound)
}

func publish[T any](ch chan T, msg T) bool {
	select {
	case ch <- msg:
		return true
	default:
	}
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case ch <- msg:
		return true
	case <-timer.C:
		return false
	}
}

func consume[T any](ctx context.Context, ch chan T) (T, bool) {
	var zero T
	select {
	case msg, ok := <-ch:
		if !ok {
			return zero, false
		}
		return msg, true
	case <-ctx.Done():
		return zero, false
	}
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound)
	close(mb.outbound)
}

func (mb *MessageBus) DroppedInbound() uint64 {
	return mb.dropped.inbound.Load()
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.dropped.outbound.Load()
}
