package extract

import (
	"strings"

	"github.com/prowlhq/kgraph/kg"
)

func entityKey(text string, typ kg.EntityType) string {
	return strings.ToLower(strings.TrimSpace(text)) + "|" + string(typ)
}

// normalize enforces the extraction contract on raw provider output: entity
// text is trimmed and non-empty, types map onto the known enumeration,
// entities are deduplicated by (normalized text, type) and capped at
// maxEntities, confidences are clamped into [0,1], and relations that
// reference an entity absent from the kept set are dropped.
func normalize(raw Result, maxEntities int) Result {
	if maxEntities <= 0 {
		maxEntities = DefaultMaxEntities
	}

	var out Result
	seen := make(map[string]bool)
	kept := make(map[string]bool) // lowercased text of kept entities

	for _, e := range raw.Entities {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		typ := kg.NormalizeEntityType(string(e.Type))
		key := entityKey(text, typ)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Entities = append(out.Entities, Entity{Text: text, Type: typ, Metadata: e.Metadata})
		kept[strings.ToLower(text)] = true
		if len(out.Entities) >= maxEntities {
			break
		}
	}

	for _, r := range raw.Relations {
		source := strings.TrimSpace(r.Source)
		target := strings.TrimSpace(r.Target)
		if !kept[strings.ToLower(source)] || !kept[strings.ToLower(target)] {
			continue
		}
		typ := strings.TrimSpace(r.Type)
		if typ == "" {
			typ = "RELATED_TO"
		}
		out.Relations = append(out.Relations, Relation{
			Source:     source,
			Target:     target,
			Type:       strings.ToUpper(typ),
			Confidence: kg.ClampConfidence(r.Confidence),
		})
	}

	return out
}
