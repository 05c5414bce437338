// Score fusion (spec.md §4.7.3): merges the three channels by chunk_id,
// then applies the anchor/focus-overlap refinement and penalty pass.
package hybrid

import (
	"sort"
	"strings"

	"kbagent/internal/store"
)

// fuse merges vector, keyword, and graph channel results into one
// candidate map keyed by chunk_id, summing scores and tracking the maximum
// observed overlap signal per record on collision, per spec.md §4.7.3.
func fuse(vectorHits []store.VectorHit, keywordHits []scoredKeywordHit, graphHits []scoredGraphHit) map[string]*candidate {
	candidates := make(map[string]*candidate)

	for rank, h := range vectorHits {
		c := ensureCandidate(candidates, h.Chunk.ID, h.Chunk.FileID, h.Chunk.LibraryID, h.FileName, h.Chunk.Content)
		c.addSource("vector")
		c.hasVector = true
		if h.Similarity > c.vectorSimilarity {
			c.vectorSimilarity = h.Similarity
		}
		c.score += scoreVector(h.Similarity, rank)
	}

	for _, kh := range keywordHits {
		h := kh.hit
		c := ensureCandidate(candidates, h.Chunk.ID, h.Chunk.FileID, h.Chunk.LibraryID, h.FileName, h.Chunk.Content)
		c.addSource("keyword")
		if kh.keywordOverlap > c.keywordOverlap {
			c.keywordOverlap = kh.keywordOverlap
		}
		if kh.anchorOverlap > c.anchorOverlap {
			c.anchorOverlap = kh.anchorOverlap
		}
		if kh.hasCount {
			c.hasCount = true
		}
		if kh.hasRoster {
			c.hasRoster = true
		}
		c.score += kh.local
	}

	for _, gh := range graphHits {
		h := gh.hit
		c := ensureCandidate(candidates, h.Chunk.ID, h.Chunk.FileID, h.Chunk.LibraryID, h.FileName, h.Chunk.Content)
		c.addSource("graph")
		if gh.hitRatio > c.graphOverlap {
			c.graphOverlap = gh.hitRatio
		}
		if gh.entityOverlap > c.entityOverlap {
			c.entityOverlap = gh.entityOverlap
		}
		c.score += gh.score
	}

	return candidates
}

// refine applies spec.md §4.7.3's post-fusion focus-overlap boost and
// anchor-penalty pass, mutating each candidate's score in place.
func refine(candidates map[string]*candidate, analysis *Analysis, summaryMode bool) {
	hasAnchors := len(analysis.AnchorTermSet) > 0
	for _, c := range candidates {
		c.focusOverlap = overlapRatio(toSet(analysis.QueryFocusTerms), c.content)

		refined := 0.20*c.focusOverlap + 0.24*c.anchorOverlap
		if analysis.Intents.Count && c.hasCount {
			refined += 0.10
		}
		if analysis.Intents.Roster && c.hasRoster {
			refined += 0.10
		}
		c.score += refined

		if hasAnchors && c.anchorOverlap == 0 && !summaryMode {
			c.score *= 0.72
		}
	}
}

// sortedHits converts the candidate map into Hit records sorted by score
// descending, the shape every downstream stage (gate, diversity) consumes.
func sortedHits(candidates map[string]*candidate) []Hit {
	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		sources := make([]string, 0, len(c.sources))
		for s := range c.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)

		entities := make([]string, 0, len(c.matchedEntities))
		for e := range c.matchedEntities {
			entities = append(entities, e)
		}
		sort.Strings(entities)

		hits = append(hits, Hit{
			ChunkID: c.chunkID, FileID: c.fileID, LibraryID: c.libraryID, FileName: c.fileName,
			Snippet: snippetOf(c.content), Score: c.score, Source: strings.Join(sources, "_"),
			VectorSimilarity: c.vectorSimilarity, KeywordOverlap: c.keywordOverlap,
			GraphOverlap: c.graphOverlap, EntityOverlap: c.entityOverlap,
			AnchorOverlap: c.anchorOverlap, QueryFocusOverlap: c.focusOverlap,
			MatchedEntities: entities,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}
