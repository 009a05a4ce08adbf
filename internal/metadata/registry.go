package metadata

import (
	"sort"
	"sync"
)

type Registry struct {
	mu        sync.RWMutex
	global    AuthConfig
	endpoints map[string]*Endpoint // keyed by endpoint key
	routes    map[string]*Endpoint // keyed by route
	models    map[string]*Model    // keyed by model name
}

func NewRegistry() *Registry {
	return &Registry{
		endpoints: make(map[string]*Endpoint),
		routes:    make(map[string]*Endpoint),
		models:    make(map[string]*Model),
	}
}

// Resolve returns the servable endpoint registered under route, or nil.
// Endpoints without a data source never resolve.
func (r *Registry) Resolve(route string) *Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep := r.routes[route]
	if ep == nil || !ep.Valid() {
		return nil
	}
	return ep
}

// AllEndpoints returns all endpoints sorted by key.
func (r *Registry) AllEndpoints() []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	endpoints := make([]*Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		endpoints = append(endpoints, ep)
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].Key < endpoints[j].Key })
	return endpoints
}

// GetModel returns the model with the given name, or nil.
func (r *Registry) GetModel(name string) *Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[name]
}

// AllModels returns all registered models sorted by name.
func (r *Registry) AllModels() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}

// GlobalAuth returns the process-wide auth settings.
func (r *Registry) GlobalAuth() AuthConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.global
}

// AuthFor returns the effective auth settings for an endpoint.
func (r *Registry) AuthFor(ep *Endpoint) AuthConfig {
	return EffectiveAuth(r.GlobalAuth(), ep.Auth)
}

// Load replaces everything in the registry. Route uniqueness is checked by
// the loader before this is called.
func (r *Registry) Load(global AuthConfig, endpoints []*Endpoint, models []*Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.global = global
	r.endpoints = make(map[string]*Endpoint, len(endpoints))
	r.routes = make(map[string]*Endpoint, len(endpoints))
	for _, ep := range endpoints {
		r.endpoints[ep.Key] = ep
		if ep.Route != "" {
			r.routes[ep.Route] = ep
		}
	}

	r.models = make(map[string]*Model, len(models))
	for _, m := range models {
		r.models[m.Name] = m
	}
}
