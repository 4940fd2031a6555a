package adapters

import (
	"fmt"
	"strings"

	"github.com/ppiankov/rehost/internal/model"
)

// Adapter holds the provider-specific parts of an OPDS import
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter serves the given feed URL
	CanHandle(feedURL string) bool

	// ShapeLink adjusts a link before it is attached to a work
	ShapeLink(link model.Link) model.Link

	// RightsURI decides the default rights status of the work's downloads
	RightsURI(work *model.Work) (model.RightsStatus, error)

	// ImproveDescriptions reports whether alternate entries should be
	// fetched for better descriptions
	ImproveDescriptions() bool
}

// Registry manages provider adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry() *Registry {
	registry := &Registry{}
	registry.Register(NewFeedbooksAdapter())
	registry.generic = NewGenericAdapter()
	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the feed URL, falling back to generic OPDS
func (r *Registry) FindAdapter(feedURL string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(feedURL) {
			return adapter
		}
	}
	return r.generic
}

// Lookup returns the adapter with the given name
func (r *Registry) Lookup(name string) (Adapter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, adapter := range r.adapters {
		if adapter.Name() == name {
			return adapter, nil
		}
	}
	if r.generic.Name() == name {
		return r.generic, nil
	}
	return nil, fmt.Errorf("unknown provider: %s (supported: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists the registered adapters, generic last
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters)+1)
	for _, adapter := range r.adapters {
		names = append(names, adapter.Name())
	}
	return append(names, r.generic.Name())
}

// ShapeLinks applies the adapter's link shaping to every link of a work
func ShapeLinks(a Adapter, links []model.Link) []model.Link {
	out := make([]model.Link, len(links))
	for i, l := range links {
		out[i] = a.ShapeLink(l)
	}
	return out
}
