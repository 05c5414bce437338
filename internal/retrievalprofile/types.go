// Package retrievalprofile implements C6: the named bundles of retrieval
// knobs spec.md §4.6 describes, resolved per library/session and clamped to
// safe ranges before the hybrid engine (C7) ever sees them.
//
// Grounded on
// _examples/original_source/backend/app/services/retrieval_profile_service.py's
// DEFAULT_RETRIEVAL_PROFILES and build_runtime_retrieval_config.
package retrievalprofile

// Config holds every knob the hybrid retrieval engine consults. Field names
// mirror retrieval_profile_service.py's config dict keys so a profile's
// stored JSON round-trips without translation.
type Config struct {
	RAGMinTop1Score    float64 `json:"rag_min_top1_score"`
	RAGMinSupportScore float64 `json:"rag_min_support_score"`
	RAGMinSupportCount int     `json:"rag_min_support_count"`
	RAGMinItemScore    float64 `json:"rag_min_item_score"`

	RAGGraphMaxTerms  int     `json:"rag_graph_max_terms"`
	GraphChannelWeight float64 `json:"graph_channel_weight"`
	GraphOnlyPenalty  float64 `json:"graph_only_penalty"`
	VectorSemanticMin float64 `json:"vector_semantic_min"`

	AliasIntentEnabled   bool `json:"alias_intent_enabled"`
	AliasMiningMaxTerms  int  `json:"alias_mining_max_terms"`
	CoReferenceEnabled   bool `json:"co_reference_enabled"`

	VectorCandidateMultiplier  int `json:"vector_candidate_multiplier"`
	KeywordCandidateMultiplier int `json:"keyword_candidate_multiplier"`
	GraphCandidateMultiplier   int `json:"graph_candidate_multiplier"`

	FallbackRelaxEnabled  bool    `json:"fallback_relax_enabled"`
	FallbackTop1Relax     float64 `json:"fallback_top1_relax"`
	FallbackSupportRelax  float64 `json:"fallback_support_relax"`
	FallbackItemRelax     float64 `json:"fallback_item_relax"`

	SummaryIntentEnabled bool `json:"summary_intent_enabled"`
	SummaryExpandFactor  int  `json:"summary_expand_factor"`
	SummaryMinChunks     int  `json:"summary_min_chunks"`
	SummaryPerFileCap    int  `json:"summary_per_file_cap"`
	SummaryMinFiles      int  `json:"summary_min_files"`

	KeywordFallbackExpandOnWeakHits bool    `json:"keyword_fallback_expand_on_weak_hits"`
	KeywordFallbackMaxChunks        int     `json:"keyword_fallback_max_chunks"`
	KeywordFallbackMinScore         float64 `json:"keyword_fallback_min_score"`
	KeywordFallbackScanLimit        int     `json:"keyword_fallback_scan_limit"`
}

// clampFloat bounds a float field to [lo, hi].
func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp enforces the bounds build_runtime_retrieval_config applies to every
// profile before it reaches the hybrid engine, regardless of what a client
// submitted for a custom profile.
func (c Config) Clamp() Config {
	c.RAGMinTop1Score = clampFloat(c.RAGMinTop1Score, 0.0, 1.5)
	c.RAGMinSupportScore = clampFloat(c.RAGMinSupportScore, 0.0, 1.5)
	c.RAGMinSupportCount = clampInt(c.RAGMinSupportCount, 1, 8)
	c.RAGMinItemScore = clampFloat(c.RAGMinItemScore, 0.0, 1.5)

	c.RAGGraphMaxTerms = clampInt(c.RAGGraphMaxTerms, 4, 40)
	c.GraphChannelWeight = clampFloat(c.GraphChannelWeight, 0.1, 1.2)
	c.GraphOnlyPenalty = clampFloat(c.GraphOnlyPenalty, 0.1, 1.0)
	c.VectorSemanticMin = clampFloat(c.VectorSemanticMin, 0.0, 1.0)

	c.AliasMiningMaxTerms = clampInt(c.AliasMiningMaxTerms, 0, 24)

	c.VectorCandidateMultiplier = clampInt(c.VectorCandidateMultiplier, 2, 20)
	c.KeywordCandidateMultiplier = clampInt(c.KeywordCandidateMultiplier, 2, 20)
	c.GraphCandidateMultiplier = clampInt(c.GraphCandidateMultiplier, 2, 24)

	c.FallbackTop1Relax = clampFloat(c.FallbackTop1Relax, 0.0, 0.30)
	c.FallbackSupportRelax = clampFloat(c.FallbackSupportRelax, 0.0, 0.30)
	c.FallbackItemRelax = clampFloat(c.FallbackItemRelax, 0.0, 0.20)

	c.SummaryExpandFactor = clampInt(c.SummaryExpandFactor, 1, 8)
	c.SummaryMinChunks = clampInt(c.SummaryMinChunks, 4, 24)
	c.SummaryPerFileCap = clampInt(c.SummaryPerFileCap, 1, 6)
	c.SummaryMinFiles = clampInt(c.SummaryMinFiles, 1, 10)

	c.KeywordFallbackMaxChunks = clampInt(c.KeywordFallbackMaxChunks, 20, 800)
	c.KeywordFallbackMinScore = clampFloat(c.KeywordFallbackMinScore, 0.0, 1.5)
	c.KeywordFallbackScanLimit = clampInt(c.KeywordFallbackScanLimit, 200, 20000)

	return c
}
