package hybrid

import (
	"testing"

	"kbagent/internal/retrievalprofile"
)

func TestScoreVectorMonotonicity(t *testing.T) {
	if !(scoreVector(0.75, 0) > scoreVector(0.15, 0)) {
		t.Errorf("scoreVector(0.75,0)=%v should exceed scoreVector(0.15,0)=%v",
			scoreVector(0.75, 0), scoreVector(0.15, 0))
	}
	if !(scoreVector(0.5, 0) > scoreVector(0.5, 5)) {
		t.Errorf("a lower rank should score at least as high for equal similarity")
	}
}

func TestHasCountSignal(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		unitHints []string
		want      bool
	}{
		{
			name:      "age mention is not a roster count",
			text:      "那老僧说，我今年二百七十岁，还未曾见过你这般手段。",
			unitHints: []string{"人", "徒弟"},
			want:      false,
		},
		{
			name:      "roster headcount matches",
			text:      "唐僧有三个人一起去取经。",
			unitHints: []string{"人"},
			want:      true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCountSignal(tt.text, tt.unitHints); got != tt.want {
				t.Errorf("HasCountSignal(%q, %v) = %v, want %v", tt.text, tt.unitHints, got, tt.want)
			}
		})
	}
}

func TestIsRetrievalHitPseudoHitRejection(t *testing.T) {
	cfg := retrievalprofile.Config{
		RAGMinTop1Score:    0.30,
		RAGMinSupportScore: 0.18,
		RAGMinSupportCount: 2,
		VectorSemanticMin:  0.20,
	}
	hits := []Hit{
		{Score: 0.41, VectorSimilarity: 0.06},
		{Score: 0.27, VectorSimilarity: 0.05},
	}
	if isRetrievalHit(hits, cfg) {
		t.Errorf("isRetrievalHit() = true for pseudo-hits with zero overlap and low vector similarity, want false")
	}
}

func TestIsRetrievalHitMonotoneInThreshold(t *testing.T) {
	hits := []Hit{
		{Score: 0.5, KeywordOverlap: 0.4},
		{Score: 0.3, KeywordOverlap: 0.2},
	}
	strict := retrievalprofile.Config{RAGMinTop1Score: 0.45, RAGMinSupportScore: 0.18, RAGMinSupportCount: 1}
	lenient := strict
	lenient.RAGMinTop1Score = 0.1

	if isRetrievalHit(hits, strict) && !isRetrievalHit(hits, lenient) {
		t.Errorf("lowering rag_min_top1_score turned an accepted set into a rejected one")
	}
}

func TestMergeKeywordFallbackDedup(t *testing.T) {
	primary := []Hit{{ChunkID: "a"}, {ChunkID: "b"}}
	fallback := []Hit{{ChunkID: "b"}, {ChunkID: "c"}}
	merged := mergeKeywordFallback(primary, fallback, 0)

	want := []string{"a", "b", "c"}
	if len(merged) != len(want) {
		t.Fatalf("mergeKeywordFallback() len = %d, want %d", len(merged), len(want))
	}
	for i, h := range merged {
		if h.ChunkID != want[i] {
			t.Errorf("mergeKeywordFallback()[%d] = %q, want %q", i, h.ChunkID, want[i])
		}
	}
}

func TestSelectTopKSummaryDiversity(t *testing.T) {
	hits := []Hit{
		{ChunkID: "a1", FileID: "A", Score: 0.9},
		{ChunkID: "a2", FileID: "A", Score: 0.8},
		{ChunkID: "a3", FileID: "A", Score: 0.7},
		{ChunkID: "b1", FileID: "B", Score: 0.6},
		{ChunkID: "b2", FileID: "B", Score: 0.5},
		{ChunkID: "c1", FileID: "C", Score: 0.4},
	}
	selected := selectTopK(hits, 4, true, 3, 2)

	seenFiles := map[string]bool{}
	for _, h := range selected {
		seenFiles[h.FileID] = true
	}
	for _, f := range []string{"A", "B", "C"} {
		if !seenFiles[f] {
			t.Errorf("selectTopK() missing a chunk from file %q, got files %v", f, seenFiles)
		}
	}
}
