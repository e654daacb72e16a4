package providers

import (
	"context"
	"sync"
)

// DynamicProvider wraps an LLMProvider and allows atomic replacement at
// runtime, e.g. when a config hub pushes new credentials. In-flight calls
// keep the provider they started with; only new calls see the replacement.
type DynamicProvider struct {
	mu    sync.RWMutex
	inner LLMProvider
}

// NewDynamicProvider wraps an initial provider.
func NewDynamicProvider(inner LLMProvider) *DynamicProvider {
	return &DynamicProvider{inner: inner}
}

// Swap replaces the underlying provider. Safe to call concurrently with Chat.
func (d *DynamicProvider) Swap(p LLMProvider) {
	d.mu.Lock()
	d.inner = p
	d.mu.Unlock()
}

// Inner returns the current underlying provider.
func (d *DynamicProvider) Inner() LLMProvider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inner
}

func (d *DynamicProvider) Chat(ctx context.Context, req ChatRequest) (*LLMResponse, error) {
	return d.Inner().Chat(ctx, req)
}

func (d *DynamicProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	return d.Inner().ChatStream(ctx, req)
}

func (d *DynamicProvider) DefaultModel() string {
	return d.Inner().DefaultModel()
}
