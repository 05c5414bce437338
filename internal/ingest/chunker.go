// Package ingest implements the file-ingestion half of C3/C4: chunking
// policy, content hashing, and the sync_directory/upload pipelines that
// populate the chunk store and trigger a graph rebuild.
//
// Grounded on rag/document_chunk.go's sentence-aware/overlap chunking idiom
// (generalized here to spec.md §4.3's simpler fixed character window, since
// the spec fixes chunk_size=500/overlap=80 rather than leaving it
// token-adaptive) and on web/format/markdown.go for stripping Markdown
// syntax out of .md files before chunking.
package ingest

import "unicode/utf8"

// DefaultChunkSize and DefaultOverlap match spec.md §4.3's chunking policy:
// "character-based sliding window, default size 500, overlap 80."
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 80
)

// ChunkText splits content into a contiguous, zero-indexed prefix of
// character windows of size chunkSize with the trailing overlap chars of
// each window repeated at the start of the next, per spec.md §4.3.
func ChunkText(content string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := chunkSize - overlap
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// TruncateRunes trims s to at most n runes without splitting a multi-byte
// rune.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
