package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/harun/agentcore/pkg/llm"
)

// Provider sends a normalized chat request to one LLM vendor.
type Provider interface {
	Name() string
	Call(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Profile holds what is needed to construct a provider.
type Profile struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// Constructor builds a provider from a profile.
type Constructor func(p Profile) (Provider, error)

// Registry maps provider names to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns a registry with the built-in backends registered.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	r.Register("openai", func(p Profile) (Provider, error) { return NewOpenAIProvider(p), nil })
	r.Register("anthropic", func(p Profile) (Provider, error) { return NewAnthropicProvider(p), nil })
	r.Register("gemini", func(p Profile) (Provider, error) { return NewGeminiProvider(context.Background(), p) })
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[strings.ToLower(name)] = ctor
}

// New constructs the provider named by the profile.
func (r *Registry) New(p Profile) (Provider, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[strings.ToLower(p.Provider)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", p.Provider)
	}
	if p.APIKey == "" {
		return nil, fmt.Errorf("provider %s: api key is required", p.Provider)
	}
	return ctor(p)
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
