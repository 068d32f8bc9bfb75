package embed

import (
	"context"

	"github.com/prowlhq/kgraph/log"
)

// DegradingProvider tries a remote provider and silently falls back to a
// deterministic local one when the remote call fails. The degradation is
// recorded, never surfaced as an error. With no remote configured it is a
// plain pass-through to the fallback.
type DegradingProvider struct {
	remote   Provider // may be nil
	fallback Provider
}

// NewDegradingProvider wires the two strategies together. remote may be nil
// when no credential is configured; fallback must not be nil.
func NewDegradingProvider(remote, fallback Provider) *DegradingProvider {
	return &DegradingProvider{remote: remote, fallback: fallback}
}

// Dimension returns the fallback's dimension; both strategies are constructed
// with the same value.
func (p *DegradingProvider) Dimension() int { return p.fallback.Dimension() }

// Embed returns a vector and whether the call degraded to the fallback.
func (p *DegradingProvider) Embed(ctx context.Context, text string) ([]float32, bool, error) {
	if p.remote != nil {
		vec, err := p.remote.Embed(ctx, text)
		if err == nil {
			return vec, false, nil
		}
		log.Warn("remote embedding failed, using hash fallback: %v", err)
	}

	vec, err := p.fallback.Embed(ctx, text)
	degraded := p.remote != nil
	return vec, degraded, err
}
