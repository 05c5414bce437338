package ingest

import (
	"strings"
	"testing"
)

func TestChunkTextOverlap(t *testing.T) {
	content := strings.Repeat("a", 120)
	chunks := ChunkText(content, 50, 10)

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, c := range chunks {
		if i < len(chunks)-1 && len([]rune(c)) != 50 {
			t.Errorf("chunk %d has length %d, want 50", i, len([]rune(c)))
		}
	}
	joined := chunks[len(chunks)-1]
	if !strings.HasSuffix(content, joined[len(joined)-10:]) {
		t.Errorf("final chunk does not align with source content tail")
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("", 500, 80); chunks != nil {
		t.Errorf("ChunkText(\"\") = %v, want nil", chunks)
	}
}

func TestChunkTextDefaultsOnInvalidParams(t *testing.T) {
	content := strings.Repeat("x", 10)
	chunks := ChunkText(content, 0, -1)
	if len(chunks) != 1 || chunks[0] != content {
		t.Errorf("ChunkText with invalid params = %v, want single chunk %q", chunks, content)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("hello", 10); got != "hello" {
		t.Errorf("TruncateRunes() = %q, want %q", got, "hello")
	}
	if got := TruncateRunes("你好世界测试", 3); got != "你好世" {
		t.Errorf("TruncateRunes() = %q, want %q", got, "你好世")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"parent traversal", "../../etc/passwd", "etcpasswd"},
		{"unsafe chars", "a;b|c.txt", "abc.txt"},
		{"empty becomes file", "...", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
