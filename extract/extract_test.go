package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/prowlhq/kgraph/kg"
)

type mockLLM struct {
	response string
	err      error
}

func (m *mockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{Content: m.response},
		},
	}, nil
}

func (m *mockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestLLMProvider_ParsesStructuredAnswer(t *testing.T) {
	model := &mockLLM{response: `{
		"entities": [
			{"name": "Marie Curie", "type": "PERSON"},
			{"name": "Sorbonne University", "type": "ORGANIZATION"}
		],
		"relations": [
			{"source": "Marie Curie", "target": "Sorbonne University", "type": "WORKS_AT", "confidence": 0.8}
		]
	}`}
	p := NewLLMProvider(model, 10, 0)

	result, err := p.Extract(context.Background(), "Marie Curie taught at Sorbonne University.")
	require.NoError(t, err)

	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Marie Curie", result.Entities[0].Text)
	assert.Equal(t, kg.EntityPerson, result.Entities[0].Type)
	require.Len(t, result.Relations, 1)
	assert.Equal(t, "WORKS_AT", result.Relations[0].Type)
	assert.Equal(t, 0.8, result.Relations[0].Confidence)
}

func TestLLMProvider_FencedAnswer(t *testing.T) {
	model := &mockLLM{response: "```json\n{\"entities\":[{\"name\":\"Go\",\"type\":\"TECHNOLOGY\"}],\"relations\":[]}\n```"}
	p := NewLLMProvider(model, 10, 0)

	result, err := p.Extract(context.Background(), "Go is a language.")
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, kg.EntityTechnology, result.Entities[0].Type)
}

func TestLLMProvider_MalformedAnswerIsError(t *testing.T) {
	model := &mockLLM{response: "I could not find any entities, sorry."}
	p := NewLLMProvider(model, 10, 0)

	_, err := p.Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestLLMProvider_ModelFailureIsError(t *testing.T) {
	model := &mockLLM{err: errors.New("rate limited")}
	p := NewLLMProvider(model, 10, 0)

	_, err := p.Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestLLMProvider_NormalizesOutput(t *testing.T) {
	model := &mockLLM{response: `{
		"entities": [
			{"name": " Ada Lovelace ", "type": "PERSON"},
			{"name": "Ada Lovelace", "type": "PERSON"},
			{"name": "", "type": "PERSON"},
			{"name": "London", "type": "LOCATION"}
		],
		"relations": [
			{"source": "Ada Lovelace", "target": "London", "type": "lived_in", "confidence": 1.7},
			{"source": "Ada Lovelace", "target": "Charles Babbage", "type": "KNOWS"}
		]
	}`}
	p := NewLLMProvider(model, 10, 0)

	result, err := p.Extract(context.Background(), "text")
	require.NoError(t, err)

	// Duplicate and empty entities dropped, unknown type mapped to OTHER.
	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Ada Lovelace", result.Entities[0].Text)
	assert.Equal(t, kg.EntityOther, result.Entities[1].Type)

	// Out-of-range confidence clamped; relation to an entity not in the
	// batch dropped.
	require.Len(t, result.Relations, 1)
	assert.Equal(t, 1.0, result.Relations[0].Confidence)
	assert.Equal(t, "LIVED_IN", result.Relations[0].Type)
}

func TestLLMProvider_DefaultConfidence(t *testing.T) {
	model := &mockLLM{response: `{
		"entities": [
			{"name": "A", "type": "CONCEPT"},
			{"name": "B", "type": "CONCEPT"}
		],
		"relations": [{"source": "A", "target": "B", "type": "USES"}]
	}`}
	p := NewLLMProvider(model, 10, 0)

	result, err := p.Extract(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, result.Relations, 1)
	assert.Equal(t, defaultLLMConfidence, result.Relations[0].Confidence)
}

func TestLLMProvider_MaxEntitiesCap(t *testing.T) {
	model := &mockLLM{response: `{
		"entities": [
			{"name": "A", "type": "CONCEPT"},
			{"name": "B", "type": "CONCEPT"},
			{"name": "C", "type": "CONCEPT"}
		],
		"relations": [{"source": "A", "target": "C", "type": "USES", "confidence": 0.5}]
	}`}
	p := NewLLMProvider(model, 2, 0)

	result, err := p.Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)
	// The relation references the truncated entity C and is dropped.
	assert.Empty(t, result.Relations)
}

func TestPatternProvider_NeverFails(t *testing.T) {
	p := NewPatternProvider(10)

	for _, text := range []string{"", "lowercase only text", "!!!", "12345"} {
		result, err := p.Extract(context.Background(), text)
		assert.NoError(t, err)
		assert.Empty(t, result.Entities)
		assert.Empty(t, result.Relations)
	}
}

func TestPatternProvider_CapitalizedSequences(t *testing.T) {
	p := NewPatternProvider(10)

	result, err := p.Extract(context.Background(),
		"Grace Hopper worked with Acme Systems on early compilers.")
	require.NoError(t, err)

	byText := map[string]kg.EntityType{}
	for _, e := range result.Entities {
		byText[e.Text] = e.Type
	}
	assert.Equal(t, kg.EntityPerson, byText["Grace Hopper"])
	assert.Equal(t, kg.EntityOrganization, byText["Acme Systems"])
}

func TestPatternProvider_CuratedTerms(t *testing.T) {
	p := NewPatternProvider(10)

	result, err := p.Extract(context.Background(),
		"We use machine learning models deployed on kubernetes clusters.")
	require.NoError(t, err)

	byText := map[string]kg.EntityType{}
	for _, e := range result.Entities {
		byText[e.Text] = e.Type
	}
	assert.Equal(t, kg.EntityConcept, byText["Machine Learning"])
	assert.Equal(t, kg.EntityTechnology, byText["Kubernetes"])
}

func TestPatternProvider_RelationsReferenceOwnEntities(t *testing.T) {
	p := NewPatternProvider(10)

	result, err := p.Extract(context.Background(),
		"John Smith of Initech Corp studies machine learning and deep learning.")
	require.NoError(t, err)
	require.NotEmpty(t, result.Relations)

	known := map[string]bool{}
	for _, e := range result.Entities {
		known[e.Text] = true
	}
	for _, r := range result.Relations {
		assert.True(t, known[r.Source], "relation source %q not in entity set", r.Source)
		assert.True(t, known[r.Target], "relation target %q not in entity set", r.Target)
		assert.Equal(t, "RELATED_TO", r.Type)
		assert.Equal(t, fallbackConfidence, r.Confidence)
	}
}

func TestPatternProvider_Deterministic(t *testing.T) {
	p := NewPatternProvider(10)
	text := "Alan Turing and Alonzo Church shaped the theory of the algorithm."

	first, err := p.Extract(context.Background(), text)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Extract(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

type failingProvider struct{}

func (failingProvider) Extract(context.Context, string) (Result, error) {
	return Result{}, errors.New("upstream policy rejection")
}

func TestDegradingProvider_FallsBackPerCall(t *testing.T) {
	p := NewDegradingProvider(failingProvider{}, NewPatternProvider(10))

	result, degraded, err := p.Extract(context.Background(), "Ada Lovelace wrote about the algorithm.")
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.NotEmpty(t, result.Entities)
}

func TestDegradingProvider_NoRemote(t *testing.T) {
	p := NewDegradingProvider(nil, NewPatternProvider(10))

	_, degraded, err := p.Extract(context.Background(), "plain text")
	require.NoError(t, err)
	assert.False(t, degraded)
}
