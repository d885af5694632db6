package bus

import (
	"context"
	"sync"

	"github.com/yungbote/coursebuilder-backend/internal/realtime"
)

// MemoryBus delivers messages in-process. Used when Redis is not configured
// and in tests.
type MemoryBus struct {
	mu   sync.RWMutex
	subs []func(realtime.Message)
	sent []realtime.Message
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(ctx context.Context, msg realtime.Message) error {
	b.mu.Lock()
	b.sent = append(b.sent, msg)
	subs := append([]func(realtime.Message){}, b.subs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	b.mu.Lock()
	b.subs = append(b.subs, onMsg)
	b.mu.Unlock()
	return nil
}

// Sent returns a copy of every published message.
func (b *MemoryBus) Sent() []realtime.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]realtime.Message{}, b.sent...)
}

func (b *MemoryBus) Close() error { return nil }
