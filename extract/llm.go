package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/prowlhq/kgraph/kg"
)

// extractionPrompt asks for both entities and relations in one structured
// answer so a chunk costs a single completion.
const extractionPrompt = `Extract entities and the relations between them from the following text.
Allowed entity types: %s.
Return only a JSON object with this structure:
{
  "entities": [
    {"name": "entity_name", "type": "ENTITY_TYPE"}
  ],
  "relations": [
    {"source": "entity_name", "target": "entity_name", "type": "RELATION_TYPE", "confidence": 0.9}
  ]
}
Relations may only reference entities listed in "entities". Extract at most %d entities.

Text: %s
`

// defaultLLMConfidence is assigned when the model omits a confidence value.
const defaultLLMConfidence = 0.9

var allowedTypes = []string{
	string(kg.EntityPerson),
	string(kg.EntityOrganization),
	string(kg.EntityConcept),
	string(kg.EntityTechnology),
	string(kg.EntityOther),
}

// LLMProvider extracts entities and relations by prompting a language model.
// Output that does not parse as the expected JSON is an extraction failure
// for that chunk, reported as an error so the caller can degrade.
type LLMProvider struct {
	model       llms.Model
	maxEntities int
	timeout     time.Duration
}

// NewLLMProvider creates the remote extraction provider.
func NewLLMProvider(model llms.Model, maxEntities int, timeout time.Duration) *LLMProvider {
	if maxEntities <= 0 {
		maxEntities = DefaultMaxEntities
	}
	return &LLMProvider{model: model, maxEntities: maxEntities, timeout: timeout}
}

type llmEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type llmRelation struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
}

type llmExtraction struct {
	Entities  []llmEntity   `json:"entities"`
	Relations []llmRelation `json:"relations"`
}

// Extract prompts the model once and parses its structured answer.
func (p *LLMProvider) Extract(ctx context.Context, text string) (Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(extractionPrompt, strings.Join(allowedTypes, ", "), p.maxEntities, text)
	response, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt, llms.WithTemperature(0.1))
	if err != nil {
		return Result{}, fmt.Errorf("extraction request failed: %w", err)
	}

	var parsed llmExtraction
	if err := json.Unmarshal([]byte(stripFences(response)), &parsed); err != nil {
		return Result{}, fmt.Errorf("extraction response did not parse: %w", err)
	}

	raw := Result{}
	for _, e := range parsed.Entities {
		raw.Entities = append(raw.Entities, Entity{Text: e.Name, Type: kg.EntityType(e.Type)})
	}
	for _, r := range parsed.Relations {
		confidence := defaultLLMConfidence
		if r.Confidence != nil {
			confidence = *r.Confidence
		}
		raw.Relations = append(raw.Relations, Relation{
			Source:     r.Source,
			Target:     r.Target,
			Type:       r.Type,
			Confidence: confidence,
		})
	}

	return normalize(raw, p.maxEntities), nil
}

// stripFences removes a markdown code fence around a JSON answer, a shape
// several models produce even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
