// Query-time graph expansion (C5): maps query terms to graph entities,
// walks weighted neighbors, and optionally mines aliases/roster terms.
//
// Grounded on _examples/original_source/backend/app/services/graph_service.py's
// expand_query_with_graph / mine_aliases_for_entity / mine_roster_terms, and
// on the teacher's graph/edges.go neighbor-walk idiom (generalized from a
// single stats session's variable graph to a library's entity graph).
package graph

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"kbagent/internal/store"
	"kbagent/internal/tokenize"
)

// relationWeight is the roster-mining edge multiplier table from spec.md
// §4.5: "contains=1.25, is_a=1.10, depends_on=1.00, causes=0.90,
// co_occurs=0.75".
var relationWeight = map[string]float64{
	"contains":   1.25,
	"is_a":       1.10,
	"depends_on": 1.00,
	"causes":     0.90,
	"co_occurs":  0.75,
}

// Expansion is the output of Expand, matching spec.md §4.5's
// `{expanded_terms, matched_entities}` return shape.
type Expansion struct {
	ExpandedTerms   []string
	MatchedEntities []store.KnowledgeEntity
}

// Expand runs spec.md §4.5 steps 1-4: extract candidates from the query,
// fuzzy-match them to graph entities (direct, then title-stem), walk their
// neighbors by weight, and return the matched-union-neighbors set ranked by
// frequency and capped at maxTerms.
func Expand(ctx context.Context, s *store.Store, libraryIDs []string, query string, maxTerms int) (*Expansion, error) {
	candidates := ExtractEntities(query, maxTerms)
	if len(candidates) == 0 {
		return &Expansion{}, nil
	}

	entitiesByLib := make(map[string][]store.KnowledgeEntity, len(libraryIDs))
	for _, libID := range libraryIDs {
		ents, err := s.ListEntities(ctx, libID)
		if err != nil {
			return nil, err
		}
		entitiesByLib[libID] = ents
	}

	matchedByID := make(map[string]store.KnowledgeEntity)
	var matchedLibs []string
	for _, cand := range candidates {
		norm := NormalizeEntity(cand)
		for _, libID := range libraryIDs {
			ents := entitiesByLib[libID]
			if e := matchExact(ents, norm); e != nil {
				matchedByID[e.ID] = *e
				matchedLibs = append(matchedLibs, libID)
				continue
			}
			if e := matchFuzzy(ents, norm); e != nil {
				matchedByID[e.ID] = *e
				matchedLibs = append(matchedLibs, libID)
				continue
			}
			if stem := stripTitleSuffix(cand); stem != "" {
				stemNorm := NormalizeEntity(stem)
				if e := matchExact(ents, stemNorm); e != nil {
					matchedByID[e.ID] = *e
					matchedLibs = append(matchedLibs, libID)
				}
			}
		}
	}

	neighborFreq := make(map[string]int)
	neighborDisplay := make(map[string]string)
	for i, libID := range matchedLibs {
		matchedIDs := make([]string, 0, len(matchedByID))
		for id := range matchedByID {
			matchedIDs = append(matchedIDs, id)
		}
		_ = i
		for _, id := range matchedIDs {
			neighbors, err := s.NeighborsOf(ctx, libID, id)
			if err != nil {
				continue
			}
			if len(neighbors) > 80 {
				neighbors = neighbors[:80]
			}
			for _, n := range neighbors {
				neighborFreq[n.Name] += n.Frequency
				neighborDisplay[n.Name] = n.DisplayName
			}
		}
	}

	type scored struct {
		name string
		freq int
	}
	var merged []scored
	seen := make(map[string]struct{})
	for _, e := range matchedByID {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		merged = append(merged, scored{name: e.DisplayName, freq: e.Frequency})
	}
	for name, freq := range neighborFreq {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		merged = append(merged, scored{name: neighborDisplay[name], freq: freq})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].freq > merged[j].freq })

	terms := make([]string, 0, maxTerms)
	for _, m := range merged {
		if len(terms) >= maxTerms {
			break
		}
		terms = append(terms, m.name)
	}

	matched := make([]store.KnowledgeEntity, 0, len(matchedByID))
	for _, e := range matchedByID {
		matched = append(matched, e)
	}
	return &Expansion{ExpandedTerms: terms, MatchedEntities: matched}, nil
}

func matchExact(entities []store.KnowledgeEntity, norm string) *store.KnowledgeEntity {
	for i := range entities {
		if entities[i].Name == norm {
			return &entities[i]
		}
	}
	return nil
}

// matchFuzzy performs an ILIKE-style substring match against display_name,
// matching spec.md §4.5 step 2's "exact, then ILIKE-fuzzy on display_name".
func matchFuzzy(entities []store.KnowledgeEntity, norm string) *store.KnowledgeEntity {
	if norm == "" {
		return nil
	}
	lowered := strings.ToLower(norm)
	for i := range entities {
		dn := strings.ToLower(entities[i].DisplayName)
		if strings.Contains(dn, lowered) || strings.Contains(lowered, dn) {
			return &entities[i]
		}
	}
	return nil
}

func stripTitleSuffix(cand string) string {
	for _, suffix := range titleSuffixes {
		if strings.HasSuffix(cand, suffix) {
			return strings.TrimSuffix(cand, suffix)
		}
	}
	return ""
}

var (
	quotedNickname   = regexp.MustCompile(`[“"']([\x{4e00}-\x{9fff}]{2,5})[”"']`)
	addressNickname  = regexp.MustCompile(`([\x{4e00}-\x{9fff}]{2,5})(兄|哥|姐|叔|伯|公|爷)`)
	reportingVerbPat = regexp.MustCompile(`(叫|称|喊)([\x{4e00}-\x{9fff}]{2,5})`)
)

var nicknameBlacklist = map[string]struct{}{
	"什么": {}, "这个": {}, "那个": {}, "一下": {}, "的话": {},
}

// MineAliases matches spec.md §4.5's alias-mining path, triggered on
// alias-intent queries: scans up to 120 chunks containing anchorNames, runs
// nickname-candidate patterns, and returns validated candidates by
// frequency.
func MineAliases(ctx context.Context, s *store.Store, libraryIDs []string, anchorNames []string) ([]string, error) {
	if len(anchorNames) == 0 {
		return nil, nil
	}
	hits, err := s.SubstringSearch(ctx, libraryIDs, anchorNames, 120)
	if err != nil {
		return nil, err
	}

	freq := make(map[string]int)
	for _, h := range hits {
		for _, m := range quotedNickname.FindAllStringSubmatch(h.Chunk.Content, -1) {
			considerNickname(freq, m[1])
		}
		for _, m := range addressNickname.FindAllStringSubmatch(h.Chunk.Content, -1) {
			considerNickname(freq, m[1])
		}
		for _, m := range reportingVerbPat.FindAllStringSubmatch(h.Chunk.Content, -1) {
			considerNickname(freq, m[2])
		}
	}

	type scored struct {
		name string
		freq int
	}
	var ranked []scored
	for name, f := range freq {
		ranked = append(ranked, scored{name, f})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].freq > ranked[j].freq })

	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.name)
	}
	return out, nil
}

func considerNickname(freq map[string]int, cand string) {
	runes := []rune(cand)
	if len(runes) < 2 || len(runes) > 5 {
		return
	}
	if _, blocked := nicknameBlacklist[cand]; blocked {
		return
	}
	if tokenize.IsStopword(NormalizeEntity(cand)) {
		return
	}
	freq[cand]++
}

// MineRoster matches spec.md §4.5's roster-mining path, triggered on
// roster-intent queries: weights each graph neighbor of the seed entities
// by max(1, weight) x relation_weight[relation_type] and returns the top
// neighbors excluding seeds and stopwords.
func MineRoster(ctx context.Context, s *store.Store, libraryID string, seedEntityIDs []string) ([]string, error) {
	seedSet := make(map[string]struct{}, len(seedEntityIDs))
	for _, id := range seedEntityIDs {
		seedSet[id] = struct{}{}
	}

	relations, err := s.ListRelations(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	entities, err := s.ListEntities(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.KnowledgeEntity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	weighted := make(map[string]float64)
	display := make(map[string]string)
	for _, r := range relations {
		_, sourceIsSeed := seedSet[r.SourceEntityID]
		_, targetIsSeed := seedSet[r.TargetEntityID]
		if !sourceIsSeed && !targetIsSeed {
			continue
		}
		neighborID := r.TargetEntityID
		if targetIsSeed {
			neighborID = r.SourceEntityID
		}
		if _, isSeed := seedSet[neighborID]; isSeed {
			continue
		}
		neighbor, ok := byID[neighborID]
		if !ok || tokenize.IsStopword(neighbor.Name) {
			continue
		}
		w := float64(r.Weight)
		if w < 1 {
			w = 1
		}
		mult, ok := relationWeight[r.RelationType]
		if !ok {
			mult = relationWeight["co_occurs"]
		}
		weighted[neighbor.Name] += w * mult
		display[neighbor.Name] = neighbor.DisplayName
	}

	type scored struct {
		name string
		w    float64
	}
	var ranked []scored
	for name, w := range weighted {
		ranked = append(ranked, scored{name, w})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].w > ranked[j].w })

	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, display[r.name])
	}
	return out, nil
}
