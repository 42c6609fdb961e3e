package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/streamrelay/types"
)

// ProviderRegistry is a thread-safe registry of adapters keyed by name, with
// an optional default used for bare model ids.
type ProviderRegistry struct {
	providers       map[string]Provider
	defaultProvider string
	mu              sync.RWMutex
}

// NewProviderRegistry creates an empty ProviderRegistry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under name, replacing any previous entry.
func (r *ProviderRegistry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *ProviderRegistry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// SetDefault designates an existing registered provider as the default.
func (r *ProviderRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.defaultProvider = name
	return nil
}

// List returns the sorted names of all registered providers.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a model id to a provider and the model name to send.
// "anthropic/claude-sonnet-4" selects the anthropic provider; a bare
// "gpt-4o" goes to the default provider. An empty model lets the provider
// apply its own default.
func (r *ProviderRegistry) Resolve(modelID string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, model, ok := strings.Cut(modelID, "/"); ok {
		if p, found := r.providers[name]; found {
			return p, model, nil
		}
	}
	if r.defaultProvider == "" {
		return nil, "", types.NewConfigurationError("", fmt.Sprintf("no provider for model %q and no default provider set", modelID))
	}
	p, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, "", types.NewConfigurationError("", fmt.Sprintf("default provider %q not found in registry", r.defaultProvider))
	}
	return p, modelID, nil
}
