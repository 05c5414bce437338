package contextwindow

import (
	"strings"
	"testing"

	"kbagent/internal/hybrid"
)

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 1 {
		t.Errorf("EstimateTokens(\"\") = %d, want minimum of 1", got)
	}
	ascii := EstimateTokens(strings.Repeat("a", 40))
	if ascii != 10 {
		t.Errorf("EstimateTokens(40 ascii chars) = %d, want 10", ascii)
	}
}

func TestTrimHitsRespectsMinKeepFloor(t *testing.T) {
	hits := make([]hybrid.Hit, 8)
	for i := range hits {
		hits[i] = hybrid.Hit{ChunkID: string(rune('a' + i)), Snippet: strings.Repeat("x", 2000), FileName: "f.md"}
	}
	budget := Budget{Available: 10}

	kept := TrimHits(hits, budget, false)
	if len(kept) < 5 {
		t.Errorf("TrimHits() kept %d hits, want at least the min_keep floor of 5", len(kept))
	}
}

func TestTrimHistoryKeepsMostRecent(t *testing.T) {
	history := []HistoryMessage{
		{Role: "user", Content: "1"},
		{Role: "assistant", Content: "2"},
		{Role: "user", Content: "3"},
	}
	trimmed := TrimHistory(history, 2)
	if len(trimmed) != 2 || trimmed[0].Content != "2" || trimmed[1].Content != "3" {
		t.Errorf("TrimHistory() = %+v, want the last 2 messages", trimmed)
	}
}

func TestComputeBudgetNeverBelowFloor(t *testing.T) {
	budget := ComputeBudget(0, 999999, nil, "hello", false)
	if budget.Available < 256 {
		t.Errorf("ComputeBudget().Available = %d, want >= 256", budget.Available)
	}
}
