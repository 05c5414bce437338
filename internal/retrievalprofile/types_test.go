package retrievalprofile

import "testing"

func TestClampBoundsOutOfRangeValues(t *testing.T) {
	raw := Config{
		RAGMinTop1Score:          5.0,
		RAGMinSupportScore:       -1.0,
		RAGMinSupportCount:       100,
		RAGMinItemScore:          -0.5,
		RAGGraphMaxTerms:         1,
		GraphChannelWeight:       5.0,
		GraphOnlyPenalty:         -1.0,
		VectorSemanticMin:        9.0,
		AliasMiningMaxTerms:      -5,
		VectorCandidateMultiplier:  0,
		KeywordCandidateMultiplier: 999,
		GraphCandidateMultiplier:   999,
		FallbackTop1Relax:       9.0,
		FallbackSupportRelax:    9.0,
		FallbackItemRelax:       9.0,
		SummaryExpandFactor:     0,
		SummaryMinChunks:        0,
		SummaryPerFileCap:       999,
		SummaryMinFiles:         0,
		KeywordFallbackMaxChunks: 1,
		KeywordFallbackMinScore:  9.0,
		KeywordFallbackScanLimit: 1,
	}

	clamped := raw.Clamp()

	checks := []struct {
		name string
		got  float64
		lo   float64
		hi   float64
	}{
		{"RAGMinTop1Score", clamped.RAGMinTop1Score, 0.0, 1.5},
		{"RAGMinSupportScore", clamped.RAGMinSupportScore, 0.0, 1.5},
		{"RAGMinItemScore", clamped.RAGMinItemScore, 0.0, 1.5},
		{"GraphChannelWeight", clamped.GraphChannelWeight, 0.1, 1.2},
		{"GraphOnlyPenalty", clamped.GraphOnlyPenalty, 0.1, 1.0},
		{"VectorSemanticMin", clamped.VectorSemanticMin, 0.0, 1.0},
		{"FallbackTop1Relax", clamped.FallbackTop1Relax, 0.0, 0.30},
		{"FallbackSupportRelax", clamped.FallbackSupportRelax, 0.0, 0.30},
		{"FallbackItemRelax", clamped.FallbackItemRelax, 0.0, 0.20},
		{"KeywordFallbackMinScore", clamped.KeywordFallbackMinScore, 0.0, 1.5},
	}
	for _, c := range checks {
		if c.got < c.lo || c.got > c.hi {
			t.Errorf("%s = %v, want within [%v, %v]", c.name, c.got, c.lo, c.hi)
		}
	}

	intChecks := []struct {
		name string
		got  int
		lo   int
		hi   int
	}{
		{"RAGMinSupportCount", clamped.RAGMinSupportCount, 1, 8},
		{"RAGGraphMaxTerms", clamped.RAGGraphMaxTerms, 4, 40},
		{"AliasMiningMaxTerms", clamped.AliasMiningMaxTerms, 0, 24},
		{"VectorCandidateMultiplier", clamped.VectorCandidateMultiplier, 2, 20},
		{"KeywordCandidateMultiplier", clamped.KeywordCandidateMultiplier, 2, 20},
		{"GraphCandidateMultiplier", clamped.GraphCandidateMultiplier, 2, 24},
		{"SummaryExpandFactor", clamped.SummaryExpandFactor, 1, 8},
		{"SummaryMinChunks", clamped.SummaryMinChunks, 4, 24},
		{"SummaryPerFileCap", clamped.SummaryPerFileCap, 1, 6},
		{"SummaryMinFiles", clamped.SummaryMinFiles, 1, 10},
		{"KeywordFallbackMaxChunks", clamped.KeywordFallbackMaxChunks, 20, 800},
		{"KeywordFallbackScanLimit", clamped.KeywordFallbackScanLimit, 200, 20000},
	}
	for _, c := range intChecks {
		if c.got < c.lo || c.got > c.hi {
			t.Errorf("%s = %v, want within [%v, %v]", c.name, c.got, c.lo, c.hi)
		}
	}
}

func TestClampIsIdempotent(t *testing.T) {
	once := generalDefault.Clamp()
	twice := once.Clamp()
	if once != twice {
		t.Errorf("Clamp() is not idempotent: %+v != %+v", once, twice)
	}
}
