// Three-channel candidate generation (spec.md §4.7.2), grounded on the
// teacher's rag/query_hybrid.go dual-channel (semantic + BM25) merge shape,
// generalized here to the vector/keyword/graph triple over a chunk store.
package hybrid

import (
	"context"
	"sort"
	"strings"

	"kbagent/internal/graph"
	"kbagent/internal/retrievalprofile"
	"kbagent/internal/store"
	"kbagent/internal/tokenize"
)

const snippetLen = 500

func snippetOf(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLen {
		return content
	}
	return string(runes[:snippetLen])
}

// effectiveTopK is `max(top_k, summary_min_chunks)` in summary mode and
// top_k otherwise.
func effectiveTopK(topK int, cfg retrievalprofile.Config, summaryMode bool) int {
	eff := topK
	if summaryMode && cfg.SummaryMinChunks > eff {
		eff = cfg.SummaryMinChunks
	}
	return eff
}

func expandFactor(cfg retrievalprofile.Config, summaryMode bool) int {
	if summaryMode {
		return cfg.SummaryExpandFactor
	}
	return 1
}

func clampMultiplier(m, cap int, summaryMode bool) int {
	if summaryMode {
		return m
	}
	if m > cap {
		return cap
	}
	return m
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// vectorChannel issues the cosine-distance rank query and scores each hit
// per spec.md §4.7.2: `0.85 x similarity + 0.15 x 1/(rank+1)`.
func vectorChannel(ctx context.Context, s *store.Store, libraryIDs []string, queryVec []float32, topK int, cfg retrievalprofile.Config, summaryMode bool) ([]store.VectorHit, int, error) {
	mult := clampMultiplier(cfg.VectorCandidateMultiplier, 3, summaryMode) * expandFactor(cfg, summaryMode)
	limit := maxInt(topK*mult, effectiveTopK(topK, cfg, summaryMode)*2, 16)
	hits, err := s.VectorSearch(ctx, libraryIDs, queryVec, limit)
	return hits, limit, err
}

func scoreVector(similarity float64, rank int) float64 {
	return 0.85*similarity + 0.15*(1.0/float64(rank+1))
}

// keywordChannel issues the substring OR-filter and scores local relevance
// per spec.md §4.7.2's `local = 0.52*keyword_overlap + 0.32*anchor_overlap
// + count_boost + roster_boost` formula, discarding non-positive locals.
func keywordChannel(ctx context.Context, s *store.Store, libraryIDs []string, analysis *Analysis, topK int, cfg retrievalprofile.Config, summaryMode bool) ([]scoredKeywordHit, error) {
	scanLimit := 5000
	if analysis.Intents.Count {
		scanLimit = 360
	}
	if analysis.Intents.Roster {
		scanLimit = 900
	}

	hits, err := s.SubstringSearch(ctx, libraryIDs, analysis.KeywordQueries, scanLimit)
	if err != nil {
		return nil, err
	}

	var scored []scoredKeywordHit
	for _, h := range hits {
		keywordOverlap := overlapRatio(analysis.KeywordTermSet, h.Chunk.Content)
		anchorOverlap := overlapRatio(analysis.AnchorTermSet, h.Chunk.Content)

		local := 0.52*keywordOverlap + 0.32*anchorOverlap
		hasCount := false
		hasRoster := false
		if analysis.Intents.Count && HasCountSignal(h.Chunk.Content, []string{"人", "徒弟", "位", "名"}) {
			local += 0.10
			hasCount = true
		}
		if analysis.Intents.Roster && HasRosterSignal(h.Chunk.Content) {
			local += 0.10
			hasRoster = true
		}
		if local <= 0 {
			continue
		}
		scored = append(scored, scoredKeywordHit{
			hit: h, local: local, keywordOverlap: keywordOverlap, anchorOverlap: anchorOverlap,
			hasCount: hasCount, hasRoster: hasRoster,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].local > scored[j].local })

	mult := clampMultiplier(cfg.KeywordCandidateMultiplier, 3, summaryMode) * expandFactor(cfg, summaryMode)
	keep := maxInt(topK*mult, effectiveTopK(topK, cfg, summaryMode)*2, 20)
	if keep < len(scored) {
		scored = scored[:keep]
	}
	return scored, nil
}

type scoredKeywordHit struct {
	hit            store.SubstringHit
	local          float64
	keywordOverlap float64
	anchorOverlap  float64
	hasCount       bool
	hasRoster      bool
}

// graphChannel builds a term set from graph-expansion results only (no
// overlap with the keyword channel, per spec.md §4.7.2) and scores hits
// with `sparse_score = graph_channel_weight x (0.55*hit_ratio +
// 0.35*1/(rank+1) + 0.10*entity_overlap)`, applying `graph_only_penalty`
// when a hit carries neither keyword nor entity overlap.
func graphChannel(ctx context.Context, s *store.Store, libraryIDs []string, expandedTerms []string, matchedEntities []string, keywordTerms map[string]struct{}, topK int, cfg retrievalprofile.Config, summaryMode bool) ([]scoredGraphHit, error) {
	if len(expandedTerms) == 0 {
		return nil, nil
	}

	graphOnlyTerms := make([]string, 0, len(expandedTerms))
	for _, t := range expandedTerms {
		norm := tokenize.Normalize(t)
		if _, dup := keywordTerms[norm]; dup {
			continue
		}
		graphOnlyTerms = append(graphOnlyTerms, t)
	}
	if len(graphOnlyTerms) == 0 {
		return nil, nil
	}

	mult := clampMultiplier(cfg.GraphCandidateMultiplier, 4, summaryMode) * expandFactor(cfg, summaryMode)
	limit := maxInt(topK*mult, effectiveTopK(topK, cfg, summaryMode)*3, 20)

	hits, err := s.SubstringSearch(ctx, libraryIDs, graphOnlyTerms, limit)
	if err != nil {
		return nil, err
	}

	termSet := toSet(graphOnlyTerms)
	entitySet := toSet(matchedEntities)

	var scored []scoredGraphHit
	for rank, h := range hits {
		hitRatio := overlapRatio(termSet, h.Chunk.Content)
		entityOverlap := overlapRatio(entitySet, h.Chunk.Content)
		sparse := cfg.GraphChannelWeight * (0.55*hitRatio + 0.35*(1.0/float64(rank+1)) + 0.10*entityOverlap)

		keywordOverlap := overlapRatio(keywordTerms, h.Chunk.Content)
		if keywordOverlap == 0 && entityOverlap == 0 {
			sparse *= cfg.GraphOnlyPenalty
		}
		scored = append(scored, scoredGraphHit{
			hit: h, score: sparse, hitRatio: hitRatio, entityOverlap: entityOverlap,
		})
	}
	return scored, nil
}

type scoredGraphHit struct {
	hit           store.SubstringHit
	score         float64
	hitRatio      float64
	entityOverlap float64
}

// graphTermsForAnalysis wraps graph.Expand plus the optional alias/roster
// mining branches of spec.md §4.5 into the term list the graph channel
// consumes.
func graphTermsForAnalysis(ctx context.Context, s *store.Store, libraryIDs []string, query string, analysis *Analysis, cfg retrievalprofile.Config) ([]string, []string, error) {
	expansion, err := graph.Expand(ctx, s, libraryIDs, query, cfg.RAGGraphMaxTerms)
	if err != nil {
		return nil, nil, err
	}
	terms := append([]string{}, expansion.ExpandedTerms...)
	matchedNames := make([]string, 0, len(expansion.MatchedEntities))
	matchedIDs := make([]string, 0, len(expansion.MatchedEntities))
	for _, e := range expansion.MatchedEntities {
		matchedNames = append(matchedNames, e.DisplayName)
		matchedIDs = append(matchedIDs, e.ID)
	}

	if analysis.Intents.Alias && cfg.AliasIntentEnabled && len(matchedNames) > 0 {
		aliases, err := graph.MineAliases(ctx, s, libraryIDs, matchedNames)
		if err == nil {
			for _, a := range aliases {
				if len(terms) >= cfg.AliasMiningMaxTerms {
					break
				}
				terms = append(terms, a)
			}
		}
	}

	if analysis.Intents.Roster && len(libraryIDs) > 0 && len(matchedIDs) > 0 {
		roster, err := graph.MineRoster(ctx, s, libraryIDs[0], matchedIDs)
		if err == nil {
			terms = append(terms, roster...)
		}
	}

	return terms, matchedNames, nil
}

func lowerContains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
