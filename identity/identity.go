// Package identity abstracts external sign-in providers. The engine sees
// only the Provider interface: hand it the artifact obtained from the
// provider's front-channel flow, get back a verified identity or an error.
package identity

import (
	"context"
	"errors"
	"sync"
)

// Errors returned by providers and the registry.
var (
	ErrUnknownProvider = errors.New("identity: unknown provider")
	ErrInvalidArtifact = errors.New("identity: invalid artifact")
)

// Identity is the provider's verified view of a user.
type Identity struct {
	ProviderID    string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// Provider exchanges a front-channel artifact (an ID token, an auth code
// already swapped upstream, a provider session reference) for a verified
// identity.
type Provider interface {
	Name() string
	Exchange(ctx context.Context, artifact string) (*Identity, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds or replaces a provider. A nil provider removes the entry.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
