package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// HashProvider derives a vector from the SHA-256 digest of the text: each
// 2-byte big-endian window of the digest becomes one value normalized into
// [-1,1], zero-padded or truncated to the configured dimension. Every call
// succeeds and the same text always yields the same vector, across process
// restarts.
type HashProvider struct {
	dim int
}

// NewHashProvider creates a HashProvider with the given dimension. A
// non-positive dimension falls back to DefaultDimension.
func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashProvider{dim: dim}
}

// Dimension returns the fixed output vector length.
func (p *HashProvider) Dimension() int { return p.dim }

// Embed hashes the text into a deterministic vector. It never fails.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	digest := sha256.Sum256([]byte(text))

	vec := make([]float32, 0, p.dim)
	for i := 0; i+2 <= len(digest) && len(vec) < p.dim; i += 2 {
		val := binary.BigEndian.Uint16(digest[i : i+2])
		vec = append(vec, float32(val)/65535.0*2-1)
	}
	for len(vec) < p.dim {
		vec = append(vec, 0)
	}
	return vec, nil
}
