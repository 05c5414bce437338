package hybrid

import (
	"context"
	"strings"
	"testing"

	"kbagent/internal/tokenize"
)

func TestOverlapRatioHitRatio(t *testing.T) {
	terms := toSet([]string{
		tokenize.Normalize("猪八戒"),
		tokenize.Normalize("悟能"),
		tokenize.Normalize("沙僧"),
	})
	content := "猪八戒也叫悟能，是取经队伍的重要成员。"

	if ratio := overlapRatio(terms, content); ratio <= 0 {
		t.Errorf("overlapRatio() = %v, want > 0", ratio)
	}
}

// TestAnalyzeAliasCoreferenceContextCarryOver exercises spec.md §8 scenario
// 5: an alias-intent query containing a coreference pronoun ("他") must pull
// the last entities mined from history_context into contextual_query, so
// the embedding/keyword channels still have something concrete to search
// for even though the query itself never names its subject.
func TestAnalyzeAliasCoreferenceContextCarryOver(t *testing.T) {
	query := "孙悟空还叫过他什么外号？"
	history := []string{"外号是：猪八戒。", "外号是：八戒。"}

	analysis, err := Analyze(context.Background(), nil, nil, query, history)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if !analysis.Intents.Alias {
		t.Errorf("Analyze() Intents.Alias = false, want true for query %q", query)
	}
	if !analysis.Intents.Coreference {
		t.Errorf("Analyze() Intents.Coreference = false, want true for query %q", query)
	}
	if len(analysis.ContextEntities) == 0 {
		t.Fatalf("Analyze() ContextEntities is empty, want entities mined from history_context")
	}
	if !strings.Contains(analysis.ContextualQuery, "猪八戒") && !strings.Contains(analysis.ContextualQuery, "八戒") {
		t.Errorf("Analyze() ContextualQuery = %q, want it to contain 猪八戒 or 八戒", analysis.ContextualQuery)
	}
}
