package graph

import (
	"regexp"
	"strings"
)

var sentenceSplitPattern = regexp.MustCompile(`[。！？!?;；\n]`)

// Relation is one sentence-level co-occurrence edge before persistence,
// matching the (source, target, relation_type, evidence) tuple graph_service
// returns from extract_relations_from_text.
type Relation struct {
	Source       string
	Target       string
	RelationType string
	Evidence     string
}

// InferRelationType matches graph_service.infer_relation_type: a small set
// of lexical triggers (Chinese and English) picks the edge label, falling
// back to co_occurs when nothing matches.
func InferRelationType(sentence string) string {
	lowered := strings.ToLower(sentence)
	switch {
	case strings.Contains(sentence, "属于") || strings.Contains(sentence, "是一种") || strings.Contains(lowered, " is a "):
		return "is_a"
	case strings.Contains(sentence, "包括") || strings.Contains(sentence, "包含") ||
		strings.Contains(lowered, " consist of ") || strings.Contains(lowered, " includes "):
		return "contains"
	case strings.Contains(sentence, "依赖") || strings.Contains(sentence, "基于") || strings.Contains(lowered, " depends on "):
		return "depends_on"
	case strings.Contains(sentence, "导致") || strings.Contains(sentence, "造成") || strings.Contains(lowered, " causes "):
		return "causes"
	default:
		return "co_occurs"
	}
}

// ExtractRelations matches graph_service.extract_relations_from_text:
// splits text into sentences, extracts up to 8 entities per sentence, and
// emits one relation per entity pair with the source/target canonically
// ordered by normalized name so (a,b) and (b,a) collapse to one edge.
func ExtractRelations(text string) []Relation {
	var relations []Relation
	for _, sentence := range sentenceSplitPattern.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		entities := ExtractEntities(sentence, 8)
		if len(entities) < 2 {
			continue
		}
		relationType := InferRelationType(sentence)
		evidence := sentence
		if runes := []rune(evidence); len(runes) > 240 {
			evidence = string(runes[:240])
		}
		for i := 0; i < len(entities); i++ {
			for j := i + 1; j < len(entities); j++ {
				source, target := entities[i], entities[j]
				if NormalizeEntity(source) == NormalizeEntity(target) {
					continue
				}
				if NormalizeEntity(source) > NormalizeEntity(target) {
					source, target = target, source
				}
				relations = append(relations, Relation{
					Source: source, Target: target, RelationType: relationType, Evidence: evidence,
				})
			}
		}
	}
	return relations
}
