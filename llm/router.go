package llm

import (
	"fmt"
	"sync"
)

// Known provider names. The router accepts arbitrary names; these are the
// ones the CLI knows how to construct.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Router maps provider names to clients. It is safe for concurrent use.
type Router struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{clients: make(map[string]Client)}
}

// Register adds or replaces the client for a provider.
func (r *Router) Register(provider string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[provider] = c
}

// Client returns the client registered for provider.
func (r *Router) Client(provider string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no client registered for provider %q", provider)
	}
	return c, nil
}

// Providers returns the registered provider names.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
