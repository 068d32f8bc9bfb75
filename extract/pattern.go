package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/prowlhq/kgraph/kg"
)

// fallbackConfidence is the fixed score for heuristic co-occurrence relations.
const fallbackConfidence = 0.30

// capitalizedSeq matches capitalized multi-word sequences, the surface shape
// of names of people and organizations.
var capitalizedSeq = regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)+\b`)

// orgSuffixes mark a capitalized sequence as an organization.
var orgSuffixes = []string{
	"Inc", "Corp", "Corporation", "Ltd", "LLC", "Company",
	"University", "Institute", "Labs", "Laboratories",
	"Foundation", "Group", "Systems", "Technologies",
}

// curatedTerm is a known technology or concept with its canonical display
// form. Ordered so extraction output is deterministic.
type curatedTerm struct {
	display string
	typ     kg.EntityType
}

var curatedTerms = []curatedTerm{
	{"Machine Learning", kg.EntityConcept},
	{"Deep Learning", kg.EntityConcept},
	{"Artificial Intelligence", kg.EntityConcept},
	{"Neural Network", kg.EntityConcept},
	{"Natural Language Processing", kg.EntityConcept},
	{"Cloud Computing", kg.EntityConcept},
	{"Microservices", kg.EntityConcept},
	{"Algorithm", kg.EntityConcept},
	{"Knowledge Graph", kg.EntityConcept},
	{"Kubernetes", kg.EntityTechnology},
	{"Docker", kg.EntityTechnology},
	{"PostgreSQL", kg.EntityTechnology},
	{"Redis", kg.EntityTechnology},
	{"TensorFlow", kg.EntityTechnology},
	{"PyTorch", kg.EntityTechnology},
	{"Python", kg.EntityTechnology},
	{"JavaScript", kg.EntityTechnology},
	{"Blockchain", kg.EntityTechnology},
	{"GraphQL", kg.EntityTechnology},
	{"Elasticsearch", kg.EntityTechnology},
}

// PatternProvider is the deterministic offline extraction strategy. It finds
// candidate entities through surface patterns and links entities co-occurring
// in the same chunk with generic low-confidence RELATED_TO relations. It
// never fails; entity-free text yields an empty result.
type PatternProvider struct {
	maxEntities int
}

// NewPatternProvider creates the fallback provider.
func NewPatternProvider(maxEntities int) *PatternProvider {
	if maxEntities <= 0 {
		maxEntities = DefaultMaxEntities
	}
	return &PatternProvider{maxEntities: maxEntities}
}

// Extract scans the text for entity candidates. The returned error is always
// nil; it exists only to satisfy the Provider contract.
func (p *PatternProvider) Extract(_ context.Context, text string) (Result, error) {
	var raw Result

	for _, match := range capitalizedSeq.FindAllString(text, -1) {
		raw.Entities = append(raw.Entities, Entity{Text: match, Type: classifySequence(match)})
	}

	lower := strings.ToLower(text)
	for _, term := range curatedTerms {
		if containsTerm(lower, strings.ToLower(term.display)) {
			raw.Entities = append(raw.Entities, Entity{Text: term.display, Type: term.typ})
		}
	}

	result := normalize(raw, p.maxEntities)

	// Co-occurrence within one chunk is the only relation signal available
	// offline.
	for i := range result.Entities {
		for j := i + 1; j < len(result.Entities); j++ {
			result.Relations = append(result.Relations, Relation{
				Source:     result.Entities[i].Text,
				Target:     result.Entities[j].Text,
				Type:       "RELATED_TO",
				Confidence: fallbackConfidence,
			})
		}
	}

	return result, nil
}

func classifySequence(s string) kg.EntityType {
	words := strings.Fields(s)
	last := words[len(words)-1]
	for _, suffix := range orgSuffixes {
		if last == suffix {
			return kg.EntityOrganization
		}
	}
	return kg.EntityPerson
}

// containsTerm reports a word-boundary match of term inside lowercased text.
func containsTerm(lower, term string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordChar(lower[start-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
