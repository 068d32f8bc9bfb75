package kg

import "fmt"

// Chunker splits document text into overlapping fixed-size windows. Identical
// input and configuration always produce identical chunk boundaries, which is
// what makes re-ingestion idempotent.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Overlap must be strictly less than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d", ErrConfiguration, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into ordered windows of at most size runes where every
// window after the first starts overlap runes before the previous window's
// end. Text shorter than one window yields exactly one chunk. Empty text
// yields a single empty chunk; callers validate emptiness before chunking.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Join reverses Split by dropping each chunk's leading overlap, reconstructing
// the original text exactly.
func (c *Chunker) Join(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	out := []rune(chunks[0])
	for _, chunk := range chunks[1:] {
		runes := []rune(chunk)
		if len(runes) > c.overlap {
			out = append(out, runes[c.overlap:]...)
		}
	}
	return string(out)
}
