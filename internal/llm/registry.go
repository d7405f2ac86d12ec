package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

type entry struct {
	gen          Generator
	defaultModel string
}

// Registry resolves "provider" or "provider:model" selectors to a generator
// and concrete model name.
type Registry struct {
	entries         map[string]entry
	defaultProvider string
}

// NewRegistry creates an empty registry. defaultProvider is used for empty
// selectors.
func NewRegistry(defaultProvider string) *Registry {
	return &Registry{
		entries:         make(map[string]entry),
		defaultProvider: defaultProvider,
	}
}

// Register adds a generator with the model used when a selector names only
// the provider.
func (r *Registry) Register(g Generator, defaultModel string) {
	r.entries[g.Name()] = entry{gen: g, defaultModel: defaultModel}
}

// Resolve returns the generator and model for a selector. OpenRouter model
// ids contain slashes, so only the first colon separates provider from model.
func (r *Registry) Resolve(selector string) (Generator, string, error) {
	selector = strings.TrimSpace(selector)
	provider, model, _ := strings.Cut(selector, ":")
	if provider == "" {
		provider = r.defaultProvider
	}
	e, ok := r.entries[strings.ToLower(provider)]
	if !ok {
		return nil, "", fmt.Errorf("unknown model provider %q (available: %s)", provider, strings.Join(r.Names(), ", "))
	}
	if model == "" {
		model = e.defaultModel
	}
	return e.gen, model, nil
}

// Names returns registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProviderStatus describes one registered provider.
type ProviderStatus struct {
	Name         string `json:"name"`
	DefaultModel string `json:"defaultModel"`
	Available    bool   `json:"available"`
	Default      bool   `json:"default"`
	// Models is filled by Catalog for providers that can enumerate them.
	Models []string `json:"models,omitempty"`
}

// ModelLister is implemented by generators that can enumerate their models.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// Status reports availability for every registered provider. Providers with
// credentials report Configured; local providers are checked with Ready.
func (r *Registry) Status(ctx context.Context) []ProviderStatus {
	var out []ProviderStatus
	for _, name := range r.Names() {
		e := r.entries[name]
		available := true
		switch g := e.gen.(type) {
		case interface{ Configured() bool }:
			available = g.Configured()
		case interface{ Ready(context.Context) bool }:
			available = g.Ready(ctx)
		}
		out = append(out, ProviderStatus{
			Name:         name,
			DefaultModel: e.defaultModel,
			Available:    available,
			Default:      name == r.defaultProvider,
		})
	}
	return out
}

// Catalog is Status plus the model list of every available provider that
// implements ModelLister. Listing failures leave Models empty.
func (r *Registry) Catalog(ctx context.Context) []ProviderStatus {
	out := r.Status(ctx)
	for i := range out {
		if !out[i].Available {
			continue
		}
		lister, ok := r.entries[out[i].Name].gen.(ModelLister)
		if !ok {
			continue
		}
		models, err := lister.Models(ctx)
		if err != nil {
			slog.Warn("listing models failed", "provider", out[i].Name, "error", err)
			continue
		}
		out[i].Models = models
	}
	return out
}
