package fetcher

import (
	"context"
	"fmt"

	"Sentinel6G/internal/domain"
)

// Strategy is one way of retrieving a source payload (plain HTTP, headless
// browser). Attempt classifies what it got against want.
type Strategy interface {
	Kind() domain.StrategyKind
	Attempt(ctx context.Context, url string, want domain.PayloadKind) Outcome
}

// Registry holds at most one Strategy per kind. The orchestrator walks the
// escalation ladder through it, so an unregistered kind is a rung it skips.
type Registry struct {
	byKind map[domain.StrategyKind]Strategy
}

// NewRegistry indexes strategies by the kind each reports. A later strategy
// of the same kind wins.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{byKind: make(map[domain.StrategyKind]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register installs strategy under its Kind.
func (r *Registry) Register(strategy Strategy) {
	if r.byKind == nil {
		r.byKind = map[domain.StrategyKind]Strategy{}
	}
	r.byKind[strategy.Kind()] = strategy
}

// Resolve looks up the strategy for kind.
func (r *Registry) Resolve(kind domain.StrategyKind) (Strategy, error) {
	if strategy, ok := r.byKind[kind]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("no %s strategy registered", kind)
}
