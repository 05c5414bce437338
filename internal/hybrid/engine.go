// Engine ties spec.md §4.7.1-§4.7.6 together: query analysis, three-channel
// candidate generation, fusion, acceptance gating, relaxation/fallback, and
// summary-mode diversity selection.
package hybrid

import (
	"context"

	"go.uber.org/zap"

	"kbagent/internal/store"
)

// Embedder abstracts C2 so this package doesn't import it directly (the
// embedding service itself may depend on a remote LLM client; keeping the
// dependency inverted avoids a cycle).
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine is the hybrid retrieval core (C7).
type Engine struct {
	store    *store.Store
	embedder Embedder
	logger   *zap.Logger
}

// NewEngine constructs the hybrid retrieval engine.
func NewEngine(s *store.Store, embedder Embedder, logger *zap.Logger) *Engine {
	return &Engine{store: s, embedder: embedder, logger: logger}
}

// Search runs the full spec.md §4.7 pipeline and returns the accepted,
// diversified hit list — or nil if the library set is empty (spec.md §8:
// "if input library_ids is empty, the engine returns []"), or if no gate
// (primary, relaxed, or keyword-fallback) accepts the candidates.
func (e *Engine) Search(ctx context.Context, req Request) ([]Hit, error) {
	if len(req.LibraryIDs) == 0 {
		return nil, nil
	}

	cfg := req.Profile
	analysis, err := Analyze(ctx, e.store, req.LibraryIDs, req.Query, req.HistoryContext)
	if err != nil {
		return nil, err
	}
	summaryMode := analysis.Intents.Summary && cfg.SummaryIntentEnabled

	queryVec, err := e.embedder.EmbedQuery(ctx, analysis.ContextualQuery)
	if err != nil {
		return nil, err
	}

	graphTerms, matchedEntityNames, err := graphTermsForAnalysis(ctx, e.store, req.LibraryIDs, req.Query, analysis, cfg)
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	vectorHits, _, err := vectorChannel(ctx, e.store, req.LibraryIDs, queryVec, topK, cfg, summaryMode)
	if err != nil {
		return nil, err
	}
	keywordHits, err := keywordChannel(ctx, e.store, req.LibraryIDs, analysis, topK, cfg, summaryMode)
	if err != nil {
		return nil, err
	}
	graphHits, err := graphChannel(ctx, e.store, req.LibraryIDs, graphTerms, matchedEntityNames, analysis.KeywordTermSet, topK, cfg, summaryMode)
	if err != nil {
		return nil, err
	}

	candidates := fuse(vectorHits, keywordHits, graphHits)
	for _, name := range matchedEntityNames {
		norm := name
		for _, c := range candidates {
			if lowerContains(c.content, norm) {
				c.matchedEntities[norm] = struct{}{}
			}
		}
	}
	refine(candidates, analysis, summaryMode)
	hits := sortedHits(candidates)
	hits = pruneByItemScore(hits, cfg.RAGMinItemScore)

	accepted := isRetrievalHit(hits, cfg)
	if !accepted && cfg.FallbackRelaxEnabled {
		relaxedCfg := relax(cfg)
		relaxedHits := pruneByItemScore(hits, relaxedCfg.RAGMinItemScore)
		if isRetrievalHit(relaxedHits, relaxedCfg) {
			accepted = true
			hits = relaxedHits
		} else if summaryMode || analysis.Intents.Count || analysis.Intents.Roster {
			if hasLenientHitSignals(relaxedHits, analysis.Intents) {
				accepted = true
				hits = relaxedHits
			}
		}
	}

	if !accepted {
		fallbackHits, err := keywordFallbackSearch(ctx, e.store, req.LibraryIDs, analysis, cfg)
		if err != nil {
			return nil, err
		}
		if len(fallbackHits) == 0 {
			return nil, nil
		}
		hits = fallbackHits
	} else if shouldExpandToKeywordFallback(hits, analysis, cfg) {
		fallbackHits, err := keywordFallbackSearch(ctx, e.store, req.LibraryIDs, analysis, cfg)
		if err == nil && len(fallbackHits) > 0 {
			hits = mergeKeywordFallback(hits, fallbackHits, cfg.KeywordFallbackMaxChunks)
		}
	}

	eff := effectiveTopK(topK, cfg, summaryMode)
	selected := selectTopK(hits, eff, summaryMode, cfg.SummaryMinFiles, cfg.SummaryPerFileCap)

	// Invariant (spec.md §8): never return a chunk outside the input set.
	allowed := toSet(req.LibraryIDs)
	out := selected[:0:0]
	for _, h := range selected {
		if _, ok := allowed[h.LibraryID]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}
