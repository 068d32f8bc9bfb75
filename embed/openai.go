package embed

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider embeds text through an OpenAI-compatible embeddings endpoint
// (OpenRouter works via the base URL). Any response that does not yield a
// numeric vector of the configured dimension is reported as an error so the
// caller can degrade to the hash fallback.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	dim     int
	timeout time.Duration
}

// OpenAIOptions configures the remote embedding provider.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string // optional, defaults to the OpenAI endpoint
	Model   string
	Dim     int
	Timeout time.Duration // per-call timeout, 0 means no bound
}

// NewOpenAIProvider creates the remote provider.
func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	dim := opts.Dim
	if dim <= 0 {
		dim = DefaultDimension
	}
	model := opts.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		dim:     dim,
		timeout: opts.Timeout,
	}
}

// Dimension returns the fixed output vector length.
func (p *OpenAIProvider) Dimension() int { return p.dim }

// Embed calls the remote embeddings endpoint once. No retries; a timeout,
// non-2xx status or malformed response is returned as an error.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contains no vectors")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != p.dim {
		return nil, fmt.Errorf("embedding has dimension %d, want %d", len(vec), p.dim)
	}
	return vec, nil
}
