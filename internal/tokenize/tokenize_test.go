package tokenize

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "hello   world", "hello world"},
		{"lowercases latin", "HELLO", "hello"},
		{"keeps cjk as-is", "北京大学", "北京大学"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsStopword(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", true},
		{"chinese stopword", "这个", true},
		{"single char blacklist", "的", true},
		{"real token", "北京大学", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStopword(tt.in); got != tt.want {
				t.Errorf("IsStopword(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCutForSearchDropsShortAndStopwordTokens(t *testing.T) {
	tokens := CutForSearch("北京大学 is a 的 great university")
	for _, tok := range tokens {
		if len([]rune(tok)) < 2 {
			t.Errorf("CutForSearch() returned a single-character token %q", tok)
		}
		if IsStopword(tok) {
			t.Errorf("CutForSearch() returned a stopword token %q", tok)
		}
	}
}
