// Acceptance gate (spec.md §4.7.4): decides whether a sorted candidate list
// is surfaced at all, so the downstream generator never silently answers
// from noise.
package hybrid

import "kbagent/internal/retrievalprofile"

// pruneByItemScore drops candidates scoring below rag_min_item_score before
// the gate runs, per spec.md §4.7.4's final sentence.
func pruneByItemScore(hits []Hit, minItemScore float64) []Hit {
	out := hits[:0:0]
	for _, h := range hits {
		if h.Score >= minItemScore {
			out = append(out, h)
		}
	}
	return out
}

// isRetrievalHit implements spec.md §4.7.4's three-condition acceptance
// gate over a score-descending hit list. Monotone in rag_min_top1_score:
// lowering the threshold can only relax condition 1 and the condition-3
// bonus branch, never tighten them (spec.md §8 invariant).
func isRetrievalHit(hits []Hit, cfg retrievalprofile.Config) bool {
	if len(hits) == 0 {
		return false
	}

	top1 := hits[0].Score
	if top1 < cfg.RAGMinTop1Score {
		return false
	}

	supportCount := 0
	for _, h := range hits {
		if h.Score >= cfg.RAGMinSupportScore {
			supportCount++
		}
	}
	if supportCount < cfg.RAGMinSupportCount && top1 < cfg.RAGMinTop1Score+0.15 {
		return false
	}

	window := cfg.RAGMinSupportCount
	if window < 3 {
		window = 3
	}
	if window > len(hits) {
		window = len(hits)
	}

	var topVectorSim float64
	var anySignal, graphSignal bool
	for _, h := range hits[:window] {
		if h.KeywordOverlap > 0 || h.EntityOverlap > 0 || h.AnchorOverlap > 0 || h.QueryFocusOverlap > 0 {
			anySignal = true
		}
		if h.GraphOverlap > 0 {
			graphSignal = true
		}
		if h.VectorSimilarity > topVectorSim {
			topVectorSim = h.VectorSimilarity
		}
	}

	switch {
	case anySignal:
		return true
	case graphSignal && topVectorSim >= cfg.VectorSemanticMin:
		return true
	case topVectorSim >= cfg.VectorSemanticMin && top1 >= cfg.RAGMinTop1Score+0.08:
		return true
	default:
		return false
	}
}

// relax builds the relaxed runtime config spec.md §4.7.5 describes:
// subtract the fallback_*_relax deltas from the thresholds and floor
// rag_min_support_count's reduction at 1.
func relax(cfg retrievalprofile.Config) retrievalprofile.Config {
	relaxed := cfg
	relaxed.RAGMinTop1Score -= cfg.FallbackTop1Relax
	relaxed.RAGMinSupportScore -= cfg.FallbackSupportRelax
	relaxed.RAGMinItemScore -= cfg.FallbackItemRelax
	if relaxed.RAGMinTop1Score < 0 {
		relaxed.RAGMinTop1Score = 0
	}
	if relaxed.RAGMinSupportScore < 0 {
		relaxed.RAGMinSupportScore = 0
	}
	if relaxed.RAGMinItemScore < 0 {
		relaxed.RAGMinItemScore = 0
	}
	relaxed.RAGMinSupportCount--
	if relaxed.RAGMinSupportCount < 1 {
		relaxed.RAGMinSupportCount = 1
	}
	return relaxed
}

// hasLenientHitSignals implements spec.md §4.7.5's `_has_lenient_hit_signals`
// used during the relaxed gate pass for summary/count/roster intents: a
// looser acceptance criterion than the strict condition 3 above.
func hasLenientHitSignals(hits []Hit, intents Intents) bool {
	if len(hits) == 0 {
		return false
	}
	window := hits
	if len(window) > 8 {
		window = window[:8]
	}
	for _, h := range window {
		secondary := h.KeywordOverlap > 0 || h.EntityOverlap > 0 || h.GraphOverlap > 0 || h.VectorSimilarity > 0
		if h.QueryFocusOverlap >= 0.22 && secondary {
			return true
		}
		if intents.Roster && h.KeywordOverlap >= 0.15 {
			return true
		}
	}
	return false
}
