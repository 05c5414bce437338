package hybrid

import (
	"context"
	"strings"

	"kbagent/internal/graph"
	"kbagent/internal/store"
	"kbagent/internal/tokenize"
)

var noiseTerms = map[string]struct{}{
	"几个": {}, "多少": {}, "哪些": {}, "怎么": {}, "请问": {}, "一下": {},
}

// Analysis is the output of spec.md §4.7.1: the derived term sets every
// channel in §4.7.2 consumes.
type Analysis struct {
	Intents          Intents
	ContextualQuery  string
	KeywordQueries   []string
	KeywordTermSet   map[string]struct{}
	QueryFocusTerms  []string
	AnchorTermSet    map[string]struct{}
	QueryEntities    []string
	ContextEntities  []string
}

// Analyze runs the query-analysis/term-derivation pipeline of spec.md
// §4.7.1 against every entity known in libraryIDs.
func Analyze(ctx context.Context, s *store.Store, libraryIDs []string, query string, historyContext []string) (*Analysis, error) {
	intents := DetectIntents(query)

	queryEntities := graph.ExtractEntities(query, 12)

	var contextEntities []string
	if intents.Coreference || intents.Alias || len(queryEntities) == 0 {
		var historyEntities []string
		for _, msg := range historyContext {
			historyEntities = append(historyEntities, graph.ExtractEntities(msg, 4)...)
		}
		if n := len(historyEntities); n > 2 {
			historyEntities = historyEntities[n-2:]
		}
		contextEntities = historyEntities
	}

	contextualQuery := query
	added := 0
	present := func(s, sub string) bool { return strings.Contains(s, sub) }
	for _, e := range contextEntities {
		if added >= 3 {
			break
		}
		if !present(contextualQuery, e) {
			contextualQuery = contextualQuery + " " + e
			added++
		}
	}

	var allEntities []store.KnowledgeEntity
	for _, libID := range libraryIDs {
		ents, err := s.ListEntities(ctx, libID)
		if err != nil {
			return nil, err
		}
		allEntities = append(allEntities, ents...)
	}

	byNameOrAlias := make(map[string]*store.KnowledgeEntity)
	for i := range allEntities {
		e := &allEntities[i]
		byNameOrAlias[e.Name] = e
		byNameOrAlias[strings.ToLower(e.DisplayName)] = e
		for _, a := range e.Aliases {
			byNameOrAlias[strings.ToLower(a)] = e
		}
	}

	keywordSet := make(map[string]struct{})
	addKeyword := func(term string) {
		term = strings.TrimSpace(term)
		norm := tokenize.Normalize(term)
		if norm == "" {
			return
		}
		if _, noise := noiseTerms[norm]; noise {
			return
		}
		keywordSet[term] = struct{}{}
	}

	addKeyword(query)
	addKeyword(contextualQuery)
	for _, e := range queryEntities {
		addKeyword(e)
		if match, ok := byNameOrAlias[strings.ToLower(graph.NormalizeEntity(e))]; ok {
			addKeyword(match.DisplayName)
			for _, a := range match.Aliases {
				addKeyword(a)
			}
		}
	}
	for _, tok := range tokenize.CutForSearch(contextualQuery) {
		addKeyword(tok)
	}
	if intents.Count && intents.Roster {
		for _, n := range rosterNouns {
			addKeyword(n)
		}
	}

	keywordQueries := make([]string, 0, len(keywordSet))
	for k := range keywordSet {
		if len(keywordQueries) >= 64 {
			break
		}
		keywordQueries = append(keywordQueries, k)
	}

	keywordTermSet := make(map[string]struct{}, len(keywordQueries))
	for _, k := range keywordQueries {
		keywordTermSet[tokenize.Normalize(k)] = struct{}{}
	}

	var queryFocusTerms []string
	for _, tok := range tokenize.CutForSearch(query) {
		if _, noise := noiseTerms[tok]; noise {
			continue
		}
		queryFocusTerms = append(queryFocusTerms, tok)
		if len(queryFocusTerms) >= 8 {
			break
		}
	}

	anchorCap := 12
	if intents.Roster {
		anchorCap = 16
	}
	anchorSet := make(map[string]struct{})
	for _, e := range queryEntities {
		anchorSet[graph.NormalizeEntity(e)] = struct{}{}
		if len(anchorSet) >= anchorCap {
			break
		}
	}
	for _, e := range contextEntities {
		if len(anchorSet) >= anchorCap {
			break
		}
		anchorSet[graph.NormalizeEntity(e)] = struct{}{}
	}
	for _, t := range queryFocusTerms {
		if len(anchorSet) >= anchorCap {
			break
		}
		anchorSet[t] = struct{}{}
	}

	return &Analysis{
		Intents: intents, ContextualQuery: contextualQuery,
		KeywordQueries: keywordQueries, KeywordTermSet: keywordTermSet,
		QueryFocusTerms: queryFocusTerms, AnchorTermSet: anchorSet,
		QueryEntities: queryEntities, ContextEntities: contextEntities,
	}, nil
}

func toSet(terms []string) map[string]struct{} {
	out := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		out[t] = struct{}{}
	}
	return out
}

// overlapRatio returns the fraction of terms (normalized) present in text,
// the shared primitive behind keyword_overlap/anchor_overlap/focus_overlap.
func overlapRatio(terms map[string]struct{}, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	hit := 0
	for term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}
