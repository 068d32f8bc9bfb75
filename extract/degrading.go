package extract

import (
	"context"

	"github.com/prowlhq/kgraph/log"
)

// DegradingProvider tries the remote extraction strategy and falls back to
// pattern matching when it fails. Each chunk degrades independently; one
// chunk's fallback does not affect another chunk's attempt.
type DegradingProvider struct {
	remote   Provider // may be nil
	fallback Provider
}

// NewDegradingProvider wires the two strategies together. remote may be nil
// when no model is configured; fallback must not be nil.
func NewDegradingProvider(remote, fallback Provider) *DegradingProvider {
	return &DegradingProvider{remote: remote, fallback: fallback}
}

// Extract returns the extraction and whether this call degraded to the
// fallback.
func (p *DegradingProvider) Extract(ctx context.Context, text string) (Result, bool, error) {
	if p.remote != nil {
		result, err := p.remote.Extract(ctx, text)
		if err == nil {
			return result, false, nil
		}
		log.Warn("remote extraction failed, using pattern fallback: %v", err)
	}

	result, err := p.fallback.Extract(ctx, text)
	degraded := p.remote != nil
	return result, degraded, err
}
