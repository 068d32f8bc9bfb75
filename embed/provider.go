// Package embed turns text into fixed-length vectors. A remote provider calls
// an OpenAI-compatible embeddings endpoint; a deterministic hash provider is
// always available as a fallback. The DegradingProvider combines the two so a
// remote outage never surfaces as an error.
package embed

import "context"

// DefaultDimension is the vector dimensionality used when none is configured.
const DefaultDimension = 384

// Provider produces a fixed-length vector for a piece of text.
type Provider interface {
	// Embed returns a vector of exactly Dimension() values.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed output vector length.
	Dimension() int
}
