package payment

import (
	"fmt"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
)

// Registry resolves a provider adapter by name.
type Registry struct {
	providers map[model.Provider]adapter.PaymentProvider
}

func NewRegistry(providers ...adapter.PaymentProvider) *Registry {
	r := &Registry{providers: make(map[model.Provider]adapter.PaymentProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name model.Provider) (adapter.PaymentProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q is not configured", domain.ErrInvalidArgument, name)
	}
	return p, nil
}
