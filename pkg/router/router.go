// Package router resolves the configured generator model into an ordered
// chain of LLM providers to try.
package router

import (
	"fmt"

	"github.com/pario-ai/recallwatch/pkg/config"
)

// Route represents a resolved provider and model to try.
type Route struct {
	Provider config.ProviderConfig
	Model    string
}

// Router resolves model names or aliases to ordered provider+model chains.
type Router struct {
	cfg       config.GeneratorConfig
	providers map[string]config.ProviderConfig
}

// New creates a Router from the generator configuration.
func New(cfg config.GeneratorConfig) *Router {
	idx := make(map[string]config.ProviderConfig, len(cfg.Providers))
	for _, p := range cfg.Providers {
		idx[p.Name] = p
	}
	return &Router{cfg: cfg, providers: idx}
}

// Resolve returns an ordered list of routes for model. An empty model means
// the configured generator model.
// If the model matches a configured route, the route's targets are returned.
// Otherwise, the first provider is used with the model name as given.
func (r *Router) Resolve(model string) ([]Route, error) {
	if len(r.cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	if model == "" {
		model = r.cfg.Model
	}

	for _, route := range r.cfg.Routes {
		if route.Model != model {
			continue
		}
		var routes []Route
		for _, target := range route.Targets {
			provider, ok := r.providers[target.Provider]
			if !ok {
				continue // skip unknown providers
			}
			m := target.Model
			if m == "" {
				m = model
			}
			routes = append(routes, Route{Provider: provider, Model: m})
		}
		if len(routes) == 0 {
			return nil, fmt.Errorf("route %q: all providers unknown", model)
		}
		return routes, nil
	}

	if model == "" {
		return nil, fmt.Errorf("no model configured")
	}
	return []Route{{Provider: r.cfg.Providers[0], Model: model}}, nil
}
