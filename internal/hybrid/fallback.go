// Keyword fallback search and the weak-primary-result expansion check
// (spec.md §4.7.5).
package hybrid

import (
	"context"
	"sort"

	"kbagent/internal/retrievalprofile"
	"kbagent/internal/store"
)

// keywordFallbackSearch is the last-resort substring scan of spec.md
// §4.7.5: OR-filter over anchor ∪ keyword terms, rescored with the
// keyword-channel formula, floor-scored so survivors clear
// rag_min_item_score, capped at keyword_fallback_max_chunks.
func keywordFallbackSearch(ctx context.Context, s *store.Store, libraryIDs []string, analysis *Analysis, cfg retrievalprofile.Config) ([]Hit, error) {
	terms := make([]string, 0, len(analysis.AnchorTermSet)+len(analysis.KeywordQueries))
	seen := make(map[string]struct{})
	for t := range analysis.AnchorTermSet {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			terms = append(terms, t)
		}
	}
	for _, t := range analysis.KeywordQueries {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	scanLimit := cfg.KeywordFallbackScanLimit
	if scanLimit <= 0 {
		scanLimit = 8000
	}
	hits, err := s.SubstringSearch(ctx, libraryIDs, terms, scanLimit)
	if err != nil {
		return nil, err
	}

	type scored struct {
		hit   store.SubstringHit
		local float64
	}
	var rescored []scored
	for _, h := range hits {
		keywordOverlap := overlapRatio(analysis.KeywordTermSet, h.Chunk.Content)
		anchorOverlap := overlapRatio(analysis.AnchorTermSet, h.Chunk.Content)
		local := 0.52*keywordOverlap + 0.32*anchorOverlap
		if analysis.Intents.Count && HasCountSignal(h.Chunk.Content, []string{"人", "徒弟", "位", "名"}) {
			local += 0.10
		}
		if analysis.Intents.Roster && HasRosterSignal(h.Chunk.Content) {
			local += 0.10
		}
		if local < cfg.KeywordFallbackMinScore {
			continue
		}
		rescored = append(rescored, scored{hit: h, local: local})
	}

	sort.SliceStable(rescored, func(i, j int) bool { return rescored[i].local > rescored[j].local })

	maxChunks := cfg.KeywordFallbackMaxChunks
	if maxChunks <= 0 {
		maxChunks = 240
	}
	if len(rescored) > maxChunks {
		rescored = rescored[:maxChunks]
	}

	out := make([]Hit, 0, len(rescored))
	for _, r := range rescored {
		floor := r.local
		if floor < 0.16 {
			floor = 0.16
		}
		out = append(out, Hit{
			ChunkID: r.hit.Chunk.ID, FileID: r.hit.Chunk.FileID, LibraryID: r.hit.Chunk.LibraryID,
			FileName: r.hit.FileName, Snippet: snippetOf(r.hit.Chunk.Content), Score: floor,
			Source: "keyword_fallback",
		})
	}
	return out, nil
}

// shouldExpandToKeywordFallback implements spec.md §4.7.5's
// `_should_expand_to_keyword_fallback`: even when the primary gate
// succeeds, weak anchor coverage, missing count/roster evidence, or a thin
// lexical showing among the top 8 triggers a supplemental fallback merge.
func shouldExpandToKeywordFallback(hits []Hit, analysis *Analysis, cfg retrievalprofile.Config) bool {
	if len(hits) == 0 {
		return true
	}

	window := hits
	if len(window) > 8 {
		window = window[:8]
	}

	if len(analysis.AnchorTermSet) > 0 {
		anyAnchor := false
		for _, h := range window {
			if h.AnchorOverlap > 0 {
				anyAnchor = true
				break
			}
		}
		if !anyAnchor {
			return true
		}
	}

	if analysis.Intents.Count || analysis.Intents.Roster {
		anyEvidence := false
		for _, h := range window {
			if h.KeywordOverlap > 0 && (analysis.Intents.Count || analysis.Intents.Roster) {
				anyEvidence = true
				break
			}
		}
		if !anyEvidence {
			return true
		}
	}

	strongLexical := 0
	for _, h := range window {
		if h.KeywordOverlap > 0 {
			strongLexical++
		}
	}
	if strongLexical <= 1 && hits[0].Score < cfg.RAGMinTop1Score+0.05 {
		return true
	}

	return false
}

// mergeKeywordFallback appends fallback hits after the primary list,
// deduplicated by chunk_id and capped at keyword_fallback_max_chunks,
// preserving the primary list's order for shared ids (spec.md §8 scenario
// 8: merging [{a},{b}] with [{b},{c}] yields [a,b,c]).
func mergeKeywordFallback(primary, fallback []Hit, maxChunks int) []Hit {
	seen := make(map[string]struct{}, len(primary))
	out := make([]Hit, 0, len(primary)+len(fallback))
	for _, h := range primary {
		if _, ok := seen[h.ChunkID]; ok {
			continue
		}
		seen[h.ChunkID] = struct{}{}
		out = append(out, h)
	}
	for _, h := range fallback {
		if _, ok := seen[h.ChunkID]; ok {
			continue
		}
		seen[h.ChunkID] = struct{}{}
		out = append(out, h)
		if maxChunks > 0 && len(out) >= maxChunks {
			break
		}
	}
	return out
}
